package handlers

import (
	"time"

	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/scheduling"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/timeslot"
)

type slotRequest struct {
	Date          string `json:"date"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	InterviewType string `json:"interviewType"`
}

type createScheduleRequest struct {
	CandidateID string `json:"candidateId"`
	slotRequest
}

type bulkCreateRequest struct {
	CandidateID string        `json:"candidateId"`
	Schedules   []slotRequest `json:"schedules"`
}

type bulkCreateResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

type updateScheduleRequest struct {
	Date          *string `json:"date"`
	StartTime     *string `json:"startTime"`
	EndTime       *string `json:"endTime"`
	InterviewType *string `json:"interviewType"`
}

type cancelScheduleResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type cancelBookingRequest struct {
	Reason *string `json:"reason"`
}

type cancelBookingResponse struct {
	Schedule           scheduleResponse   `json:"schedule"`
	Booking            bookingResponse    `json:"booking"`
	UnblockedSchedules []scheduleResponse `json:"unblockedSchedules"`
}

type bookRequest struct {
	CompanyID     string `json:"companyId"`
	CompanyName   string `json:"companyName"`
	InterviewType string `json:"interviewType"`
}

type bookResponse struct {
	Booking          bookingResponse    `json:"booking"`
	Schedule         scheduleResponse   `json:"schedule"`
	BlockedSchedules []scheduleResponse `json:"blockedSchedules"`
}

type bookingSummaryResponse struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
	ConfirmedAt string `json:"confirmedAt"`
	CancelledAt string `json:"cancelledAt,omitempty"`
}

type scheduleResponse struct {
	ID            string                  `json:"id"`
	CandidateID   string                  `json:"candidateId"`
	Date          string                  `json:"date"`
	StartTime     string                  `json:"startTime"`
	EndTime       string                  `json:"endTime"`
	InterviewType string                  `json:"interviewType"`
	Status        string                  `json:"status"`
	BlockedByID   *string                 `json:"blockedById"`
	Blocking      []string                `json:"blocking,omitempty"`
	Booking       *bookingSummaryResponse `json:"booking,omitempty"`
	CreatedAt     string                  `json:"createdAt,omitempty"`
	UpdatedAt     string                  `json:"updatedAt,omitempty"`
}

type bookingResponse struct {
	ID            string  `json:"id"`
	ScheduleID    string  `json:"scheduleId"`
	CandidateID   string  `json:"candidateId"`
	CompanyID     string  `json:"companyId,omitempty"`
	CompanyName   string  `json:"companyName"`
	ConfirmedAt   string  `json:"confirmedAt"`
	CancelledAt   *string `json:"cancelledAt"`
	CancelReason  *string `json:"cancelReason"`
	Date          string  `json:"date,omitempty"`
	StartTime     string  `json:"startTime,omitempty"`
	EndTime       string  `json:"endTime,omitempty"`
	InterviewType string  `json:"interviewType,omitempty"`
	Status        string  `json:"status,omitempty"`
}

func (r slotRequest) input() scheduling.SlotInput {
	return scheduling.SlotInput{
		Date:          r.Date,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		InterviewType: r.InterviewType,
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTimestamp(*t)
	return &v
}

func toScheduleResponse(s model.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:            s.ID,
		CandidateID:   s.CandidateID,
		Date:          timeslot.FormatDate(s.Date),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		InterviewType: string(s.InterviewType),
		Status:        string(s.Status),
		BlockedByID:   s.BlockedByID,
		CreatedAt:     formatTimestamp(s.CreatedAt),
		UpdatedAt:     formatTimestamp(s.UpdatedAt),
	}
}

func toScheduleResponses(schedules []model.Schedule) []scheduleResponse {
	out := make([]scheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, toScheduleResponse(s))
	}
	return out
}

func toScheduleViewResponse(v model.ScheduleView) scheduleResponse {
	resp := toScheduleResponse(v.Schedule)
	resp.Blocking = v.BlockingIDs
	if v.Booking != nil {
		summary := &bookingSummaryResponse{
			ID:          v.Booking.ID,
			CompanyName: v.Booking.CompanyName,
			ConfirmedAt: formatTimestamp(v.Booking.ConfirmedAt),
		}
		if v.Booking.CancelledAt != nil {
			summary.CancelledAt = formatTimestamp(*v.Booking.CancelledAt)
		}
		resp.Booking = summary
	}
	return resp
}

func toBookingResponse(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:           b.ID,
		ScheduleID:   b.ScheduleID,
		CandidateID:  b.CandidateID,
		CompanyID:    b.CompanyID,
		CompanyName:  b.CompanyName,
		ConfirmedAt:  formatTimestamp(b.ConfirmedAt),
		CancelledAt:  formatOptionalTimestamp(b.CancelledAt),
		CancelReason: b.CancelReason,
	}
}

func toBookingViewResponse(v model.BookingView) bookingResponse {
	resp := toBookingResponse(v.Booking)
	resp.Date = timeslot.FormatDate(v.Date)
	resp.StartTime = v.StartTime
	resp.EndTime = v.EndTime
	resp.InterviewType = string(v.InterviewType)
	resp.Status = string(v.Status)
	return resp
}
