package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/interviewdesk/platform/libs/db"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/timeslot"
	"github.com/jackc/pgx/v5"
)

const scheduleColumns = `id, candidate_id, date, start_time, end_time, interview_type, status, blocked_by_id, created_at, updated_at`

type ScheduleRepository struct{}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner, extra ...any) (model.Schedule, error) {
	var (
		s             model.Schedule
		interviewType string
		status        string
	)
	dest := append([]any{
		&s.ID,
		&s.CandidateID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&interviewType,
		&status,
		&s.BlockedByID,
		&s.CreatedAt,
		&s.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Schedule{}, err
	}
	s.InterviewType = model.InterviewType(interviewType)
	s.Status = model.Status(status)
	return s, nil
}

func collectSchedules(rows pgx.Rows) ([]model.Schedule, error) {
	defer rows.Close()
	var out []model.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) Get(ctx context.Context, q db.Querier, id string) (model.Schedule, error) {
	s, err := scanSchedule(q.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM interview_schedules
		WHERE id = $1
	`, id))
	return s, notFound(err)
}

func (r *ScheduleRepository) GetForUpdate(ctx context.Context, q db.Querier, id string) (model.Schedule, error) {
	s, err := scanSchedule(q.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM interview_schedules
		WHERE id = $1
		FOR UPDATE
	`, id))
	return s, notFound(err)
}

// InsertMany inserts every schedule in one round trip and returns the stored rows in
// input order.
func (r *ScheduleRepository) InsertMany(ctx context.Context, q db.Querier, schedules []model.Schedule) ([]model.Schedule, error) {
	batch := &pgx.Batch{}
	for _, s := range schedules {
		batch.Queue(`
			INSERT INTO interview_schedules (candidate_id, date, start_time, end_time, interview_type, status, blocked_by_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+scheduleColumns,
			s.CandidateID, s.Date, s.StartTime, s.EndTime, string(s.InterviewType), string(s.Status), s.BlockedByID)
	}
	br := q.SendBatch(ctx, batch)
	out := make([]model.Schedule, 0, len(schedules))
	for range schedules {
		s, err := scanSchedule(br.QueryRow())
		if err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("insert schedule: %w", err)
		}
		out = append(out, s)
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ScheduleRepository) Update(ctx context.Context, q db.Querier, s model.Schedule) (model.Schedule, error) {
	updated, err := scanSchedule(q.QueryRow(ctx, `
		UPDATE interview_schedules
		SET date = $2,
			start_time = $3,
			end_time = $4,
			interview_type = $5,
			status = $6,
			blocked_by_id = $7,
			updated_at = now()
		WHERE id = $1
		RETURNING `+scheduleColumns,
		s.ID, s.Date, s.StartTime, s.EndTime, string(s.InterviewType), string(s.Status), s.BlockedByID))
	return updated, notFound(err)
}

// ListByCandidate returns the candidate's slots by date and start time, each with its
// latest booking and the ids of the slots it currently blocks.
func (r *ScheduleRepository) ListByCandidate(ctx context.Context, q db.Querier, candidateID string) ([]model.ScheduleView, error) {
	rows, err := q.Query(ctx, `
		SELECT s.id, s.candidate_id, s.date, s.start_time, s.end_time, s.interview_type, s.status,
			s.blocked_by_id, s.created_at, s.updated_at,
			b.id, b.company_name, b.confirmed_at, b.cancelled_at,
			COALESCE(blk.ids, '{}')
		FROM interview_schedules s
		LEFT JOIN LATERAL (
			SELECT id, company_name, confirmed_at, cancelled_at
			FROM interview_bookings
			WHERE schedule_id = s.id
			ORDER BY confirmed_at DESC
			LIMIT 1
		) b ON true
		LEFT JOIN LATERAL (
			SELECT array_agg(x.id::text ORDER BY x.date, x.start_time, x.id) AS ids
			FROM interview_schedules x
			WHERE x.blocked_by_id = s.id AND x.status = 'blocked'
		) blk ON true
		WHERE s.candidate_id = $1
		ORDER BY s.date ASC, s.start_time ASC, s.id ASC
	`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []model.ScheduleView
	for rows.Next() {
		var (
			bookingID   *string
			companyName *string
			confirmedAt *time.Time
			cancelledAt *time.Time
			blocking    []string
		)
		s, err := scanSchedule(rows, &bookingID, &companyName, &confirmedAt, &cancelledAt, &blocking)
		if err != nil {
			return nil, err
		}
		view := model.ScheduleView{Schedule: s, BlockingIDs: blocking}
		if bookingID != nil {
			view.Booking = &model.BookingSummary{ID: *bookingID, CancelledAt: cancelledAt}
			if companyName != nil {
				view.Booking.CompanyName = *companyName
			}
			if confirmedAt != nil {
				view.Booking.ConfirmedAt = *confirmedAt
			}
		}
		views = append(views, view)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return views, nil
}

func (r *ScheduleRepository) ListOpen(ctx context.Context, q db.Querier, candidateID string, from time.Time) ([]model.Schedule, error) {
	rows, err := q.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM interview_schedules
		WHERE candidate_id = $1
			AND status = 'available'
			AND date >= $2
		ORDER BY date ASC, start_time ASC, id ASC
	`, candidateID, from)
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

// ListActiveKeys returns the identity of every non-cancelled slot of the candidate.
func (r *ScheduleRepository) ListActiveKeys(ctx context.Context, q db.Querier, candidateID string) ([]timeslot.Key, error) {
	rows, err := q.Query(ctx, `
		SELECT date, start_time, end_time
		FROM interview_schedules
		WHERE candidate_id = $1 AND status <> 'cancelled'
	`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []timeslot.Key
	for rows.Next() {
		var (
			date       time.Time
			start, end string
		)
		if err := rows.Scan(&date, &start, &end); err != nil {
			return nil, err
		}
		keys = append(keys, timeslot.KeyOf(date, start, end))
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return keys, nil
}

// ReleaseBlockedBy locks the slots blocked by blockerID in id order, then frees them.
func (r *ScheduleRepository) ReleaseBlockedBy(ctx context.Context, q db.Querier, blockerID string) ([]model.Schedule, error) {
	rows, err := q.Query(ctx, `
		UPDATE interview_schedules
		SET status = 'available',
			blocked_by_id = NULL,
			updated_at = now()
		WHERE id IN (
			SELECT id
			FROM interview_schedules
			WHERE blocked_by_id = $1 AND status = 'blocked'
			ORDER BY id
			FOR UPDATE
		)
		RETURNING `+scheduleColumns,
		blockerID)
	if err != nil {
		return nil, err
	}
	released, err := collectSchedules(rows)
	if err != nil {
		return nil, err
	}
	sortSchedules(released)
	return released, nil
}

// BlockSameDay blocks the blocker candidate's other available slots on the same date.
func (r *ScheduleRepository) BlockSameDay(ctx context.Context, q db.Querier, blocker model.Schedule) ([]model.Schedule, error) {
	rows, err := q.Query(ctx, `
		UPDATE interview_schedules
		SET status = 'blocked',
			blocked_by_id = $1,
			updated_at = now()
		WHERE id IN (
			SELECT id
			FROM interview_schedules
			WHERE candidate_id = $2
				AND date = $3
				AND id <> $1
				AND status = 'available'
			ORDER BY id
			FOR UPDATE
		)
		RETURNING `+scheduleColumns,
		blocker.ID, blocker.CandidateID, blocker.Date)
	if err != nil {
		return nil, err
	}
	blocked, err := collectSchedules(rows)
	if err != nil {
		return nil, err
	}
	sortSchedules(blocked)
	return blocked, nil
}

func sortSchedules(s []model.Schedule) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].Date.Equal(s[j].Date) {
			return s[i].Date.Before(s[j].Date)
		}
		if s[i].StartTime != s[j].StartTime {
			return s[i].StartTime < s[j].StartTime
		}
		return s[i].ID < s[j].ID
	})
}
