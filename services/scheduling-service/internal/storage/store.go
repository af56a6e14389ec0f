// Package storage is the PostgreSQL implementation of the scheduling ports.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/interviewdesk/platform/libs/db"
	"github.com/interviewdesk/platform/libs/outbox"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/scheduling"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/timeslot"
	"github.com/jackc/pgx/v5"
)

type Store struct {
	pool       *db.Pool
	schedules  *ScheduleRepository
	bookings   *BookingRepository
	candidates *CandidateRepository
	outbox     *outbox.Repository
}

func NewStore(pool *db.Pool, candidates *CandidateRepository, outboxRepo *outbox.Repository) *Store {
	return &Store{
		pool:       pool,
		schedules:  NewScheduleRepository(),
		bookings:   NewBookingRepository(),
		candidates: candidates,
		outbox:     outboxRepo,
	}
}

func (s *Store) GetSchedule(ctx context.Context, id string) (model.Schedule, error) {
	return s.schedules.Get(ctx, s.pool, id)
}

func (s *Store) ListSchedules(ctx context.Context, candidateID string) ([]model.ScheduleView, error) {
	return s.schedules.ListByCandidate(ctx, s.pool, candidateID)
}

func (s *Store) ListOpenSchedules(ctx context.Context, candidateID string, from time.Time) ([]model.Schedule, error) {
	return s.schedules.ListOpen(ctx, s.pool, candidateID, from)
}

func (s *Store) ListBookings(ctx context.Context, candidateID string) ([]model.BookingView, error) {
	return s.bookings.ListByCandidate(ctx, s.pool, candidateID)
}

func (s *Store) InTx(ctx context.Context, fn func(scheduling.Tx) error) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{store: s, tx: tx})
	})
}

type pgTx struct {
	store *Store
	tx    pgx.Tx
}

func (t *pgTx) LockCandidate(ctx context.Context, candidateID string) error {
	return t.store.candidates.Lock(ctx, t.tx, candidateID)
}

func (t *pgTx) ListActiveKeys(ctx context.Context, candidateID string) ([]timeslot.Key, error) {
	return t.store.schedules.ListActiveKeys(ctx, t.tx, candidateID)
}

func (t *pgTx) InsertSchedules(ctx context.Context, schedules []model.Schedule) ([]model.Schedule, error) {
	return t.store.schedules.InsertMany(ctx, t.tx, schedules)
}

func (t *pgTx) GetScheduleForUpdate(ctx context.Context, id string) (model.Schedule, error) {
	return t.store.schedules.GetForUpdate(ctx, t.tx, id)
}

func (t *pgTx) UpdateSchedule(ctx context.Context, s model.Schedule) (model.Schedule, error) {
	return t.store.schedules.Update(ctx, t.tx, s)
}

func (t *pgTx) ReleaseBlockedBy(ctx context.Context, blockerID string) ([]model.Schedule, error) {
	return t.store.schedules.ReleaseBlockedBy(ctx, t.tx, blockerID)
}

func (t *pgTx) BlockSameDay(ctx context.Context, blocker model.Schedule) ([]model.Schedule, error) {
	return t.store.schedules.BlockSameDay(ctx, t.tx, blocker)
}

func (t *pgTx) GetActiveBookingForUpdate(ctx context.Context, scheduleID string) (model.Booking, error) {
	return t.store.bookings.GetActiveByScheduleForUpdate(ctx, t.tx, scheduleID)
}

func (t *pgTx) InsertBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	return t.store.bookings.Create(ctx, t.tx, b)
}

func (t *pgTx) CancelBooking(ctx context.Context, bookingID string, reason *string) (model.Booking, error) {
	return t.store.bookings.Cancel(ctx, t.tx, bookingID, reason)
}

func (t *pgTx) AddEvent(ctx context.Context, evt outbox.Event) error {
	if err := t.store.outbox.Insert(ctx, t.tx, evt); err != nil {
		return fmt.Errorf("insert outbox event %s: %w", evt.EventType, err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to model.ErrNotFound and passes other errors through.
func notFound(err error) error {
	if db.IsNoRows(err) {
		return model.ErrNotFound
	}
	return err
}

var (
	_ scheduling.Store              = (*Store)(nil)
	_ scheduling.Tx                 = (*pgTx)(nil)
	_ scheduling.CandidateDirectory = (*CandidateRepository)(nil)
)
