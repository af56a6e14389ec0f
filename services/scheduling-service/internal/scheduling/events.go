package scheduling

import (
	"time"

	"github.com/interviewdesk/platform/libs/outbox"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/timeslot"
)

// Event types double as Kafka topic names.
const (
	EventSlotsCreated     = "scheduling.slot.created.v1"
	EventSlotUpdated      = "scheduling.slot.updated.v1"
	EventSlotCancelled    = "scheduling.slot.cancelled.v1"
	EventBookingConfirmed = "scheduling.booking.confirmed.v1"
	EventBookingCancelled = "scheduling.booking.cancelled.v1"
)

const (
	aggregateSchedule  = "schedule"
	aggregateCandidate = "candidate"
)

type SlotsCreatedPayload struct {
	CandidateID string   `json:"candidate_id"`
	ScheduleIDs []string `json:"schedule_ids"`
	Count       int      `json:"count"`
	CreatedBy   string   `json:"created_by"`
}

type SlotChangedPayload struct {
	ScheduleID    string `json:"schedule_id"`
	CandidateID   string `json:"candidate_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	InterviewType string `json:"interview_type"`
	Status        string `json:"status"`
	ChangedBy     string `json:"changed_by"`
}

type BookingPayload struct {
	BookingID      string   `json:"booking_id"`
	ScheduleID     string   `json:"schedule_id"`
	CandidateID    string   `json:"candidate_id"`
	CandidateName  string   `json:"candidate_name"`
	CandidateEmail string   `json:"candidate_email"`
	CompanyID      string   `json:"company_id,omitempty"`
	CompanyName    string   `json:"company_name"`
	Date           string   `json:"date"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	InterviewType  string   `json:"interview_type"`
	ConfirmedAt    string   `json:"confirmed_at"`
	CancelledAt    string   `json:"cancelled_at,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	CancelledBy    string   `json:"cancelled_by,omitempty"`
	BlockedIDs     []string `json:"blocked_schedule_ids,omitempty"`
	ReleasedIDs    []string `json:"released_schedule_ids,omitempty"`
}

func slotsCreatedEvent(candidateID string, created []model.Schedule, staff string) (outbox.Event, error) {
	return outbox.NewEvent(aggregateCandidate, candidateID, EventSlotsCreated, SlotsCreatedPayload{
		CandidateID: candidateID,
		ScheduleIDs: scheduleIDs(created),
		Count:       len(created),
		CreatedBy:   staff,
	})
}

func slotChangedEvent(eventType string, s model.Schedule, staff string) (outbox.Event, error) {
	return outbox.NewEvent(aggregateSchedule, s.ID, eventType, SlotChangedPayload{
		ScheduleID:    s.ID,
		CandidateID:   s.CandidateID,
		Date:          timeslot.FormatDate(s.Date),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		InterviewType: string(s.InterviewType),
		Status:        string(s.Status),
		ChangedBy:     staff,
	})
}

func bookingPayload(s model.Schedule, b model.Booking, c model.Candidate) BookingPayload {
	p := BookingPayload{
		BookingID:      b.ID,
		ScheduleID:     s.ID,
		CandidateID:    s.CandidateID,
		CandidateName:  c.Name,
		CandidateEmail: c.Email,
		CompanyID:      b.CompanyID,
		CompanyName:    b.CompanyName,
		Date:           timeslot.FormatDate(s.Date),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		InterviewType:  string(s.InterviewType),
		ConfirmedAt:    b.ConfirmedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		p.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	if b.CancelReason != nil {
		p.Reason = *b.CancelReason
	}
	return p
}

func newBookingEvent(eventType, scheduleID string, payload BookingPayload) (outbox.Event, error) {
	return outbox.NewEvent(aggregateSchedule, scheduleID, eventType, payload)
}

func scheduleIDs(schedules []model.Schedule) []string {
	ids := make([]string, 0, len(schedules))
	for _, s := range schedules {
		ids = append(ids, s.ID)
	}
	return ids
}
