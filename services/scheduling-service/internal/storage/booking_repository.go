package storage

import (
	"context"

	"github.com/interviewdesk/platform/libs/db"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
)

const bookingColumns = `id, schedule_id, candidate_id, company_id, company_name, confirmed_at, cancelled_at, cancel_reason`

type BookingRepository struct{}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{}
}

func scanBooking(row scanner, extra ...any) (model.Booking, error) {
	var b model.Booking
	dest := append([]any{
		&b.ID,
		&b.ScheduleID,
		&b.CandidateID,
		&b.CompanyID,
		&b.CompanyName,
		&b.ConfirmedAt,
		&b.CancelledAt,
		&b.CancelReason,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) Create(ctx context.Context, q db.Querier, b model.Booking) (model.Booking, error) {
	return scanBooking(q.QueryRow(ctx, `
		INSERT INTO interview_bookings (schedule_id, candidate_id, company_id, company_name, confirmed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+bookingColumns,
		b.ScheduleID, b.CandidateID, b.CompanyID, b.CompanyName, b.ConfirmedAt))
}

func (r *BookingRepository) GetActiveByScheduleForUpdate(ctx context.Context, q db.Querier, scheduleID string) (model.Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM interview_bookings
		WHERE schedule_id = $1 AND cancelled_at IS NULL
		FOR UPDATE
	`, scheduleID))
	return b, notFound(err)
}

func (r *BookingRepository) Cancel(ctx context.Context, q db.Querier, bookingID string, reason *string) (model.Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `
		UPDATE interview_bookings
		SET cancelled_at = now(),
			cancel_reason = $2
		WHERE id = $1
		RETURNING `+bookingColumns,
		bookingID, reason))
	return b, notFound(err)
}

// ListByCandidate returns every booking of the candidate, newest confirmation first,
// with the booked slot's date, times, type and current status.
func (r *BookingRepository) ListByCandidate(ctx context.Context, q db.Querier, candidateID string) ([]model.BookingView, error) {
	rows, err := q.Query(ctx, `
		SELECT b.id, b.schedule_id, b.candidate_id, b.company_id, b.company_name, b.confirmed_at,
			b.cancelled_at, b.cancel_reason,
			s.date, s.start_time, s.end_time, s.interview_type, s.status
		FROM interview_bookings b
		JOIN interview_schedules s ON s.id = b.schedule_id
		WHERE b.candidate_id = $1
		ORDER BY b.confirmed_at DESC, b.id ASC
	`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []model.BookingView
	for rows.Next() {
		var (
			v             model.BookingView
			interviewType string
			status        string
		)
		b, err := scanBooking(rows, &v.Date, &v.StartTime, &v.EndTime, &interviewType, &status)
		if err != nil {
			return nil, err
		}
		v.Booking = b
		v.InterviewType = model.InterviewType(interviewType)
		v.Status = model.Status(status)
		views = append(views, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return views, nil
}
