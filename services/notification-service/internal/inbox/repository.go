// Package inbox records consumed event ids so redelivered Kafka messages are handled once.
package inbox

import (
	"context"

	"github.com/interviewdesk/platform/libs/db"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Seen reports whether eventID was already recorded.
func (r *Repository) Seen(ctx context.Context, q db.Querier, eventID string) (bool, error) {
	var seen bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inbox_events WHERE event_id = $1)`, eventID).Scan(&seen)
	return seen, err
}

// Record inserts eventID and returns false when it was already present.
func (r *Repository) Record(ctx context.Context, q db.Querier, eventID string, eventType string) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
