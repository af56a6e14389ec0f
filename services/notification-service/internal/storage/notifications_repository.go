package storage

import (
	"context"
	"encoding/json"

	"github.com/interviewdesk/platform/libs/db"
	"github.com/interviewdesk/platform/libs/outbox"
	"github.com/interviewdesk/platform/services/notification-service/internal/inbox"
	"github.com/jackc/pgx/v5"
)

type Notification struct {
	EventID       string
	EventType     string
	BookingID     string
	ScheduleID    string
	CandidateID   string
	Channel       string
	Recipient     string
	Subject       string
	Payload       map[string]any
	Status        string
	FailureReason string
	ProviderID    string
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, q db.Querier, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO notifications (event_id, event_type, booking_id, schedule_id, candidate_id, channel,
			recipient, subject, payload, status, failure_reason, provider_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''))
	`, n.EventID, n.EventType, n.BookingID, n.ScheduleID, n.CandidateID, n.Channel,
		n.Recipient, n.Subject, payload, n.Status, n.FailureReason, n.ProviderID)
	return err
}

// Store persists a processed event atomically: inbox entry, notification row and the
// outcome event land in one transaction.
type Store struct {
	pool          *db.Pool
	inbox         *inbox.Repository
	notifications *Repository
	outbox        *outbox.Repository
}

func NewStore(pool *db.Pool, inboxRepo *inbox.Repository, notifications *Repository, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, inbox: inboxRepo, notifications: notifications, outbox: outboxRepo}
}

func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	return s.inbox.Seen(ctx, s.pool, eventID)
}

// Save returns false without writing anything when the event was recorded concurrently.
func (s *Store) Save(ctx context.Context, n Notification, evt outbox.Event) (bool, error) {
	saved := false
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		fresh, err := s.inbox.Record(ctx, tx, n.EventID, n.EventType)
		if err != nil || !fresh {
			return err
		}
		if err := s.notifications.Insert(ctx, tx, n); err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
		saved = true
		return nil
	})
	return saved, err
}
