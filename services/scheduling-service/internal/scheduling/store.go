package scheduling

import (
	"context"
	"time"

	"github.com/interviewdesk/platform/libs/outbox"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/timeslot"
)

// Store is the read side of slot and booking persistence plus the transaction entry
// point. Lookups return model.ErrNotFound for missing rows.
type Store interface {
	GetSchedule(ctx context.Context, id string) (model.Schedule, error)
	// ListSchedules orders by date, then start time.
	ListSchedules(ctx context.Context, candidateID string) ([]model.ScheduleView, error)
	// ListOpenSchedules returns available slots dated on or after from.
	ListOpenSchedules(ctx context.Context, candidateID string, from time.Time) ([]model.Schedule, error)
	// ListBookings orders by confirmation time, newest first.
	ListBookings(ctx context.Context, candidateID string) ([]model.BookingView, error)
	// InTx commits when fn returns nil and rolls back every write otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the write side; every mutation of slots, bookings and the outbox goes through it.
type Tx interface {
	// LockCandidate serializes bulk creation per candidate.
	LockCandidate(ctx context.Context, candidateID string) error
	ListActiveKeys(ctx context.Context, candidateID string) ([]timeslot.Key, error)
	InsertSchedules(ctx context.Context, schedules []model.Schedule) ([]model.Schedule, error)
	GetScheduleForUpdate(ctx context.Context, id string) (model.Schedule, error)
	UpdateSchedule(ctx context.Context, s model.Schedule) (model.Schedule, error)
	// ReleaseBlockedBy turns every slot blocked by blockerID back to available.
	ReleaseBlockedBy(ctx context.Context, blockerID string) ([]model.Schedule, error)
	// BlockSameDay blocks the blocker's candidate's other available slots on its day.
	BlockSameDay(ctx context.Context, blocker model.Schedule) ([]model.Schedule, error)
	GetActiveBookingForUpdate(ctx context.Context, scheduleID string) (model.Booking, error)
	InsertBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, reason *string) (model.Booking, error)
	AddEvent(ctx context.Context, evt outbox.Event) error
}

// CandidateDirectory answers whether a candidate exists.
type CandidateDirectory interface {
	GetCandidate(ctx context.Context, id string) (model.Candidate, error)
}

// AccessChecker decides whether a staff member may act on a candidate's schedule.
type AccessChecker interface {
	CanAccess(ctx context.Context, candidateID, staffEmail string) (bool, error)
}
