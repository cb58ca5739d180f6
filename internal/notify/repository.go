package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PreferenceRepository reads the stored notification preferences: one row per
// user with the muted scope keys and the minimum priority worth a push.
type PreferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	var mutedJSON []byte
	var threshold string
	query := `SELECT muted_scopes, priority_threshold FROM notification_preferences WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&mutedJSON, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		// No stored row means nothing muted and no threshold.
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("preference lookup: %w", err)
	}

	var muted []string
	if len(mutedJSON) > 0 {
		if err := json.Unmarshal(mutedJSON, &muted); err != nil {
			return Preferences{}, fmt.Errorf("preference lookup: decode muted_scopes: %w", err)
		}
	}

	prefs := Preferences{MutedScopes: map[string]bool{}, PriorityThreshold: threshold}
	for _, scope := range muted {
		prefs.MutedScopes[scope] = true
	}
	return prefs, nil
}
