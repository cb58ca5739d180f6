package message

import "time"

// Priority values as stored on the message row. Only Urgent changes how a
// push notification presents; the rest matter for threshold filtering and UI
// badges.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// PriorityRank orders priorities for threshold comparison. Unknown values
// rank as normal.
func PriorityRank(p string) int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

type Message struct {
	ID          int       `json:"id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name,omitempty"`
	RecipientID string    `json:"recipient_id,omitempty"` // empty = broadcast
	Subject     string    `json:"subject"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	Priority    string    `json:"priority"`
	IsRead      bool      `json:"is_read"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
}
