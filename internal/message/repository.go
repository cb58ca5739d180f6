package message

import (
	"context"
	"database/sql"
)

// Repository is the append-only message store collaborator. The pipeline
// inserts new rows and reads history; it never mutates rows besides the
// read/archive flags.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (sender_id, recipient_id, subject, content, message_type, priority)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		m.SenderID, m.RecipientID, m.Subject, m.Content, m.MessageType, m.Priority,
	).Scan(&m.ID, &m.CreatedAt)
}

// ListConversation returns the most recent direct messages between two users,
// newest first.
func (r *Repository) ListConversation(ctx context.Context, a, b string, limit int) ([]*Message, error) {
	query := `
		SELECT id, sender_id, COALESCE(recipient_id, ''), subject, content,
		       message_type, priority, is_read, is_archived, created_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at DESC
		LIMIT $3
	`
	return r.list(ctx, query, a, b, limit)
}

// ListBroadcast returns the most recent broadcast messages, newest first.
func (r *Repository) ListBroadcast(ctx context.Context, limit int) ([]*Message, error) {
	query := `
		SELECT id, sender_id, COALESCE(recipient_id, ''), subject, content,
		       message_type, priority, is_read, is_archived, created_at
		FROM messages
		WHERE recipient_id IS NULL
		ORDER BY created_at DESC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

func (r *Repository) MarkRead(ctx context.Context, id int, userID string) error {
	query := `UPDATE messages SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`
	_, err := r.db.ExecContext(ctx, query, id, userID)
	return err
}

// ListUserIDs returns every known user, used to fan broadcast notification
// decisions out across the team.
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Subject, &m.Content,
			&m.MessageType, &m.Priority, &m.IsRead, &m.IsArchived, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
