// Package scheduling owns the interview slot lifecycle: staff-managed availability,
// booking confirmation and cancellation, and the same-day blocking links between
// onsite slots.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/timeslot"
)

const (
	defaultMaxBulkSlots = 500
	maxReasonLength     = 1000
	maxCompanyName      = 200
)

type Options struct {
	MaxBulkSlots int
	// DefaultInterviewType applies when a slot is created without one.
	DefaultInterviewType model.InterviewType
	Now                  func() time.Time
	// Location is the zone slot times are expressed in. Defaults to UTC.
	Location *time.Location
}

type Service struct {
	store      Store
	candidates CandidateDirectory
	access     AccessChecker
	resolver   Resolver
	logger     *slog.Logger
	opts       Options
}

func NewService(store Store, candidates CandidateDirectory, access AccessChecker, logger *slog.Logger, opts Options) *Service {
	if opts.MaxBulkSlots <= 0 {
		opts.MaxBulkSlots = defaultMaxBulkSlots
	}
	if !opts.DefaultInterviewType.Valid() {
		opts.DefaultInterviewType = model.InterviewOnline
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		store:      store,
		candidates: candidates,
		access:     access,
		logger:     logger,
		opts:       opts,
	}
}

// SlotInput is a slot as submitted by staff, before validation.
type SlotInput struct {
	Date          string
	StartTime     string
	EndTime       string
	InterviewType string
}

// SlotPatch carries the fields to change; nil fields are left alone.
type SlotPatch struct {
	Date          *string
	StartTime     *string
	EndTime       *string
	InterviewType *string
}

type BulkResult struct {
	Created   []model.Schedule
	Requested int
}

type BookingInput struct {
	CompanyID     string
	CompanyName   string
	InterviewType string
}

type ConfirmResult struct {
	Schedule model.Schedule
	Booking  model.Booking
	Blocked  []model.Schedule
}

type CancelBookingResult struct {
	Schedule model.Schedule
	Booking  model.Booking
	Released []model.Schedule
}

func (s *Service) CreateSlot(ctx context.Context, staff, candidateID string, in SlotInput) (model.Schedule, error) {
	if err := requireStaff(staff); err != nil {
		return model.Schedule{}, err
	}
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return model.Schedule{}, validationError("candidateId", "candidateId is required")
	}
	slot, err := s.parseSlot(in, "")
	if err != nil {
		return model.Schedule{}, err
	}
	if _, err := s.authorizeCandidate(ctx, staff, candidateID); err != nil {
		return model.Schedule{}, err
	}
	slot.CandidateID = candidateID

	var created model.Schedule
	err = s.store.InTx(ctx, func(tx Tx) error {
		rows, err := tx.InsertSchedules(ctx, []model.Schedule{slot})
		if err != nil {
			return storageError("create schedule", err)
		}
		if len(rows) != 1 {
			return storageError("create schedule", fmt.Errorf("inserted %d rows", len(rows)))
		}
		created = rows[0]
		evt, err := slotsCreatedEvent(candidateID, rows, staff)
		if err != nil {
			return storageError("create schedule", err)
		}
		if err := tx.AddEvent(ctx, evt); err != nil {
			return storageError("write outbox event", err)
		}
		return nil
	})
	if err != nil {
		return model.Schedule{}, s.fail(ctx, "create slot failed", err, "candidate_id", candidateID)
	}
	s.logger.InfoContext(ctx, "schedule created",
		"schedule_id", created.ID,
		"candidate_id", candidateID,
		"date", timeslot.FormatDate(created.Date),
		"start_time", created.StartTime,
	)
	return created, nil
}

// BulkCreateSlots inserts the slots that do not duplicate a non-cancelled slot of the
// candidate (or an earlier entry of the same request). Duplicates are skipped, not errors.
func (s *Service) BulkCreateSlots(ctx context.Context, staff, candidateID string, inputs []SlotInput) (BulkResult, error) {
	if err := requireStaff(staff); err != nil {
		return BulkResult{}, err
	}
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return BulkResult{}, validationError("candidateId", "candidateId is required")
	}
	if len(inputs) == 0 {
		return BulkResult{}, validationError("slots", "at least one slot is required")
	}
	if len(inputs) > s.opts.MaxBulkSlots {
		return BulkResult{}, validationError("slots", fmt.Sprintf("at most %d slots per request", s.opts.MaxBulkSlots))
	}
	slots := make([]model.Schedule, 0, len(inputs))
	for i, in := range inputs {
		slot, err := s.parseSlot(in, fmt.Sprintf("slots[%d].", i))
		if err != nil {
			return BulkResult{}, err
		}
		slot.CandidateID = candidateID
		slots = append(slots, slot)
	}
	if _, err := s.authorizeCandidate(ctx, staff, candidateID); err != nil {
		return BulkResult{}, err
	}

	result := BulkResult{Requested: len(inputs)}
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockCandidate(ctx, candidateID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return notFoundError("candidate")
			}
			return storageError("lock candidate", err)
		}
		keys, err := tx.ListActiveKeys(ctx, candidateID)
		if err != nil {
			return storageError("list existing slots", err)
		}
		fresh := dedupe(slots, keys)
		if len(fresh) == 0 {
			return nil
		}
		created, err := tx.InsertSchedules(ctx, fresh)
		if err != nil {
			return storageError("create schedules", err)
		}
		evt, err := slotsCreatedEvent(candidateID, created, staff)
		if err != nil {
			return storageError("create schedules", err)
		}
		if err := tx.AddEvent(ctx, evt); err != nil {
			return storageError("write outbox event", err)
		}
		result.Created = created
		return nil
	})
	if err != nil {
		return BulkResult{}, s.fail(ctx, "bulk create failed", err, "candidate_id", candidateID)
	}
	s.logger.InfoContext(ctx, "schedules bulk created",
		"candidate_id", candidateID,
		"requested", result.Requested,
		"created", len(result.Created),
	)
	return result, nil
}

func (s *Service) UpdateSlot(ctx context.Context, staff, scheduleID string, patch SlotPatch) (model.Schedule, error) {
	if err := requireStaff(staff); err != nil {
		return model.Schedule{}, err
	}
	if patch.Date == nil && patch.StartTime == nil && patch.EndTime == nil && patch.InterviewType == nil {
		return model.Schedule{}, validationError("", "no fields to update")
	}
	apply, err := s.parsePatch(patch)
	if err != nil {
		return model.Schedule{}, err
	}
	if _, err := s.authorizeSchedule(ctx, staff, scheduleID); err != nil {
		return model.Schedule{}, err
	}

	var updated model.Schedule
	err = s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetScheduleForUpdate(ctx, scheduleID)
		if err != nil {
			return lookupError("schedule", err)
		}
		if current.Status == model.StatusBooked {
			return conflictError(CodeInvalidStatus, "booked schedules cannot be edited")
		}
		apply(&current)
		updated, err = tx.UpdateSchedule(ctx, current)
		if err != nil {
			return storageError("update schedule", err)
		}
		evt, err := slotChangedEvent(EventSlotUpdated, updated, staff)
		if err != nil {
			return storageError("update schedule", err)
		}
		if err := tx.AddEvent(ctx, evt); err != nil {
			return storageError("write outbox event", err)
		}
		return nil
	})
	if err != nil {
		return model.Schedule{}, s.fail(ctx, "update slot failed", err, "schedule_id", scheduleID)
	}
	s.logger.InfoContext(ctx, "schedule updated", "schedule_id", updated.ID, "candidate_id", updated.CandidateID)
	return updated, nil
}

// CancelSlot withdraws an unbooked slot. Cancelling an already cancelled slot succeeds
// without writing anything.
func (s *Service) CancelSlot(ctx context.Context, staff, scheduleID string) (model.Schedule, error) {
	if err := requireStaff(staff); err != nil {
		return model.Schedule{}, err
	}
	if _, err := s.authorizeSchedule(ctx, staff, scheduleID); err != nil {
		return model.Schedule{}, err
	}

	var cancelled model.Schedule
	err := s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetScheduleForUpdate(ctx, scheduleID)
		if err != nil {
			return lookupError("schedule", err)
		}
		switch current.Status {
		case model.StatusBooked:
			return conflictError(CodeCannotCancelBooked, "booked schedules must be cancelled through their booking")
		case model.StatusCancelled:
			cancelled = current
			return nil
		}
		current.Status = model.StatusCancelled
		current.BlockedByID = nil
		cancelled, err = tx.UpdateSchedule(ctx, current)
		if err != nil {
			return storageError("cancel schedule", err)
		}
		evt, err := slotChangedEvent(EventSlotCancelled, cancelled, staff)
		if err != nil {
			return storageError("cancel schedule", err)
		}
		if err := tx.AddEvent(ctx, evt); err != nil {
			return storageError("write outbox event", err)
		}
		return nil
	})
	if err != nil {
		return model.Schedule{}, s.fail(ctx, "cancel slot failed", err, "schedule_id", scheduleID)
	}
	s.logger.InfoContext(ctx, "schedule cancelled", "schedule_id", cancelled.ID, "candidate_id", cancelled.CandidateID)
	return cancelled, nil
}

func (s *Service) ListSlots(ctx context.Context, staff, candidateID string) ([]model.ScheduleView, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, validationError("candidateId", "candidateId is required")
	}
	if _, err := s.authorizeCandidate(ctx, staff, candidateID); err != nil {
		return nil, err
	}
	views, err := s.store.ListSchedules(ctx, candidateID)
	if err != nil {
		return nil, s.fail(ctx, "list slots failed", storageError("list schedules", err), "candidate_id", candidateID)
	}
	return views, nil
}

func (s *Service) ListBookings(ctx context.Context, staff, candidateID string) ([]model.BookingView, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, validationError("candidateId", "candidateId is required")
	}
	if _, err := s.authorizeCandidate(ctx, staff, candidateID); err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookings(ctx, candidateID)
	if err != nil {
		return nil, s.fail(ctx, "list bookings failed", storageError("list bookings", err), "candidate_id", candidateID)
	}
	return bookings, nil
}

// CancelBooking cancels the active booking on a booked slot. The slot becomes
// cancelled, and if it was onsite every slot it blocked becomes available again. All of
// it commits together or not at all.
func (s *Service) CancelBooking(ctx context.Context, staff, scheduleID string, reason *string) (CancelBookingResult, error) {
	if err := requireStaff(staff); err != nil {
		return CancelBookingResult{}, err
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return CancelBookingResult{}, err
	}
	schedule, err := s.authorizeSchedule(ctx, staff, scheduleID)
	if err != nil {
		return CancelBookingResult{}, err
	}
	if schedule.Status != model.StatusBooked {
		return CancelBookingResult{}, conflictError(CodeInvalidStatus, "schedule is not booked")
	}
	candidate, err := s.lookupCandidate(ctx, schedule.CandidateID)
	if err != nil {
		return CancelBookingResult{}, err
	}

	var result CancelBookingResult
	err = s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetScheduleForUpdate(ctx, scheduleID)
		if err != nil {
			return lookupError("schedule", err)
		}
		// Another request may have cancelled it since the unlocked read.
		if current.Status != model.StatusBooked {
			return conflictError(CodeInvalidStatus, "schedule is not booked")
		}
		booking, err := tx.GetActiveBookingForUpdate(ctx, scheduleID)
		if err != nil {
			return lookupError("booking", err)
		}

		released, err := s.resolver.Release(ctx, tx, current)
		if err != nil {
			return storageError("release blocked schedules", err)
		}

		current.Status = model.StatusCancelled
		current.BlockedByID = nil
		cancelledSlot, err := tx.UpdateSchedule(ctx, current)
		if err != nil {
			return storageError("cancel schedule", err)
		}
		cancelledBooking, err := tx.CancelBooking(ctx, booking.ID, reason)
		if err != nil {
			return storageError("cancel booking", err)
		}

		payload := bookingPayload(cancelledSlot, cancelledBooking, candidate)
		payload.CancelledBy = staff
		payload.ReleasedIDs = scheduleIDs(released)
		evt, err := newBookingEvent(EventBookingCancelled, cancelledSlot.ID, payload)
		if err != nil {
			return storageError("cancel booking", err)
		}
		if err := tx.AddEvent(ctx, evt); err != nil {
			return storageError("write outbox event", err)
		}

		result = CancelBookingResult{Schedule: cancelledSlot, Booking: cancelledBooking, Released: released}
		return nil
	})
	if err != nil {
		return CancelBookingResult{}, s.fail(ctx, "cancel booking failed", err, "schedule_id", scheduleID)
	}
	s.logger.InfoContext(ctx, "booking cancelled",
		"schedule_id", result.Schedule.ID,
		"booking_id", result.Booking.ID,
		"candidate_id", result.Schedule.CandidateID,
		"released", len(result.Released),
	)
	return result, nil
}

// ConfirmBooking books an available slot for a company. Booking an onsite slot blocks
// the candidate's other available slots that day. A dual-mode slot takes the
// requested interview type, so a later cancellation knows whether to release.
func (s *Service) ConfirmBooking(ctx context.Context, scheduleID string, in BookingInput) (ConfirmResult, error) {
	companyName := strings.TrimSpace(in.CompanyName)
	if companyName == "" {
		return ConfirmResult{}, validationError("companyName", "companyName is required")
	}
	if len(companyName) > maxCompanyName {
		return ConfirmResult{}, validationError("companyName", fmt.Sprintf("companyName must be at most %d characters", maxCompanyName))
	}
	var requested model.InterviewType
	if v := strings.TrimSpace(in.InterviewType); v != "" {
		requested = model.InterviewType(v)
		if requested != model.InterviewOnline && requested != model.InterviewOnsite {
			return ConfirmResult{}, validationError("interviewType", "interviewType must be online or onsite")
		}
	}

	schedule, err := s.lookupSchedule(ctx, scheduleID)
	if err != nil {
		return ConfirmResult{}, err
	}
	candidate, err := s.lookupCandidate(ctx, schedule.CandidateID)
	if err != nil {
		return ConfirmResult{}, err
	}

	var result ConfirmResult
	err = s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetScheduleForUpdate(ctx, scheduleID)
		if err != nil {
			return lookupError("schedule", err)
		}
		if current.Status != model.StatusAvailable {
			return conflictError(CodeInvalidStatus, "schedule is no longer available")
		}
		if requested != "" && current.InterviewType != model.InterviewBoth && requested != current.InterviewType {
			return validationError("interviewType", "interview type is not offered for this slot")
		}
		if requested != "" {
			current.InterviewType = requested
		}
		current.Status = model.StatusBooked
		bookedSlot, err := tx.UpdateSchedule(ctx, current)
		if err != nil {
			return storageError("book schedule", err)
		}
		booking, err := tx.InsertBooking(ctx, model.Booking{
			ScheduleID:  bookedSlot.ID,
			CandidateID: bookedSlot.CandidateID,
			CompanyID:   strings.TrimSpace(in.CompanyID),
			CompanyName: companyName,
			ConfirmedAt: s.opts.Now().UTC(),
		})
		if err != nil {
			return storageError("create booking", err)
		}
		blocked, err := s.resolver.Block(ctx, tx, bookedSlot)
		if err != nil {
			return storageError("block same-day schedules", err)
		}

		payload := bookingPayload(bookedSlot, booking, candidate)
		payload.BlockedIDs = scheduleIDs(blocked)
		evt, err := newBookingEvent(EventBookingConfirmed, bookedSlot.ID, payload)
		if err != nil {
			return storageError("create booking", err)
		}
		if err := tx.AddEvent(ctx, evt); err != nil {
			return storageError("write outbox event", err)
		}
		result = ConfirmResult{Schedule: bookedSlot, Booking: booking, Blocked: blocked}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, s.fail(ctx, "confirm booking failed", err, "schedule_id", scheduleID)
	}
	s.logger.InfoContext(ctx, "booking confirmed",
		"schedule_id", result.Schedule.ID,
		"booking_id", result.Booking.ID,
		"candidate_id", result.Schedule.CandidateID,
		"blocked", len(result.Blocked),
	)
	return result, nil
}

// ListOpenSlots is the public view of a candidate's bookable slots that have not
// started yet.
func (s *Service) ListOpenSlots(ctx context.Context, candidateID string) ([]model.Schedule, error) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, validationError("candidateId", "candidateId is required")
	}
	if _, err := s.lookupCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	now := s.opts.Now().In(s.opts.Location)
	slots, err := s.store.ListOpenSchedules(ctx, candidateID, timeslot.Day(now))
	if err != nil {
		return nil, s.fail(ctx, "list open slots failed", storageError("list open schedules", err), "candidate_id", candidateID)
	}
	open := slots[:0]
	for _, slot := range slots {
		start, err := timeslot.Start(slot.Date, slot.StartTime, s.opts.Location)
		if err != nil || start.After(now) {
			open = append(open, slot)
		}
	}
	return open, nil
}

func (s *Service) authorizeCandidate(ctx context.Context, staff, candidateID string) (model.Candidate, error) {
	candidate, err := s.lookupCandidate(ctx, candidateID)
	if err != nil {
		return model.Candidate{}, err
	}
	if err := s.checkAccess(ctx, staff, candidateID); err != nil {
		return model.Candidate{}, err
	}
	return candidate, nil
}

func (s *Service) authorizeSchedule(ctx context.Context, staff, scheduleID string) (model.Schedule, error) {
	schedule, err := s.lookupSchedule(ctx, scheduleID)
	if err != nil {
		return model.Schedule{}, err
	}
	if err := s.checkAccess(ctx, staff, schedule.CandidateID); err != nil {
		return model.Schedule{}, err
	}
	return schedule, nil
}

func (s *Service) checkAccess(ctx context.Context, staff, candidateID string) error {
	ok, err := s.access.CanAccess(ctx, candidateID, staff)
	if err != nil {
		return s.fail(ctx, "access check failed", storageError("check access", err), "candidate_id", candidateID)
	}
	if !ok {
		s.logger.InfoContext(ctx, "access denied", "candidate_id", candidateID, "staff", staff)
		return forbiddenError()
	}
	return nil
}

func (s *Service) lookupCandidate(ctx context.Context, id string) (model.Candidate, error) {
	c, err := s.candidates.GetCandidate(ctx, id)
	if err != nil {
		return model.Candidate{}, s.fail(ctx, "candidate lookup failed", lookupError("candidate", err), "candidate_id", id)
	}
	return c, nil
}

func (s *Service) lookupSchedule(ctx context.Context, id string) (model.Schedule, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Schedule{}, validationError("id", "schedule id is required")
	}
	sched, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return model.Schedule{}, s.fail(ctx, "schedule lookup failed", lookupError("schedule", err), "schedule_id", id)
	}
	return sched, nil
}

// fail logs storage faults and passes every error through unchanged.
func (s *Service) fail(ctx context.Context, msg string, err error, args ...any) error {
	if KindOf(err) == KindStorage {
		s.logger.ErrorContext(ctx, msg, append(args, "err", err)...)
	}
	return err
}

func (s *Service) parseSlot(in SlotInput, prefix string) (model.Schedule, error) {
	if strings.TrimSpace(in.Date) == "" {
		return model.Schedule{}, validationError(prefix+"date", "date is required")
	}
	date, err := timeslot.ParseDate(in.Date)
	if err != nil {
		return model.Schedule{}, validationError(prefix+"date", "date must be YYYY-MM-DD")
	}
	if strings.TrimSpace(in.StartTime) == "" {
		return model.Schedule{}, validationError(prefix+"startTime", "startTime is required")
	}
	start, err := timeslot.NormalizeClock(in.StartTime)
	if err != nil {
		return model.Schedule{}, validationError(prefix+"startTime", "startTime must be HH:MM")
	}
	if strings.TrimSpace(in.EndTime) == "" {
		return model.Schedule{}, validationError(prefix+"endTime", "endTime is required")
	}
	end, err := timeslot.NormalizeClock(in.EndTime)
	if err != nil {
		return model.Schedule{}, validationError(prefix+"endTime", "endTime must be HH:MM")
	}
	kind := s.opts.DefaultInterviewType
	if v := strings.TrimSpace(in.InterviewType); v != "" {
		kind = model.InterviewType(v)
		if !kind.Valid() {
			return model.Schedule{}, validationError(prefix+"interviewType", "interviewType must be online, onsite or both")
		}
	}
	return model.Schedule{
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		InterviewType: kind,
		Status:        model.StatusAvailable,
	}, nil
}

func (s *Service) parsePatch(p SlotPatch) (func(*model.Schedule), error) {
	var (
		date       *time.Time
		start, end string
		kind       model.InterviewType
	)
	if p.Date != nil {
		d, err := timeslot.ParseDate(*p.Date)
		if err != nil {
			return nil, validationError("date", "date must be YYYY-MM-DD")
		}
		date = &d
	}
	if p.StartTime != nil {
		v, err := timeslot.NormalizeClock(*p.StartTime)
		if err != nil {
			return nil, validationError("startTime", "startTime must be HH:MM")
		}
		start = v
	}
	if p.EndTime != nil {
		v, err := timeslot.NormalizeClock(*p.EndTime)
		if err != nil {
			return nil, validationError("endTime", "endTime must be HH:MM")
		}
		end = v
	}
	if p.InterviewType != nil {
		kind = model.InterviewType(strings.TrimSpace(*p.InterviewType))
		if !kind.Valid() {
			return nil, validationError("interviewType", "interviewType must be online, onsite or both")
		}
	}
	return func(s *model.Schedule) {
		if date != nil {
			s.Date = *date
		}
		if start != "" {
			s.StartTime = start
		}
		if end != "" {
			s.EndTime = end
		}
		if kind != "" {
			s.InterviewType = kind
		}
	}, nil
}

func dedupe(slots []model.Schedule, existing []timeslot.Key) []model.Schedule {
	seen := make(map[timeslot.Key]struct{}, len(existing)+len(slots))
	for _, k := range existing {
		seen[k] = struct{}{}
	}
	out := make([]model.Schedule, 0, len(slots))
	for _, slot := range slots {
		k := timeslot.KeyOf(slot.Date, slot.StartTime, slot.EndTime)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, slot)
	}
	return out
}

func requireStaff(staff string) error {
	if strings.TrimSpace(staff) == "" {
		return unauthorizedError()
	}
	return nil
}

func normalizeReason(reason *string) (*string, error) {
	if reason == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*reason)
	if v == "" {
		return nil, nil
	}
	if len(v) > maxReasonLength {
		return nil, validationError("reason", fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}
	return &v, nil
}

// lookupError maps a missing row to NotFound, preserving already classified errors.
func lookupError(what string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, model.ErrNotFound) {
		return notFoundError(what)
	}
	return storageError("load "+what, err)
}
