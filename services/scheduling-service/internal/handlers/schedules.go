// Package handlers exposes the scheduling service over HTTP.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/interviewdesk/platform/libs/httpx"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/scheduling"
)

// StaffHeader carries the authenticated staff email, set by the gateway.
const StaffHeader = "X-Staff-Email"

type ScheduleHandler struct {
	svc    *scheduling.Service
	logger *slog.Logger
}

func NewScheduleHandler(svc *scheduling.Service, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, logger: logger}
}

func (h *ScheduleHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/schedules", h.List)
	mux.HandleFunc("POST /api/v1/schedules", h.Create)
	mux.HandleFunc("POST /api/v1/schedules/bulk", h.BulkCreate)
	mux.HandleFunc("PUT /api/v1/schedules/{id}", h.Update)
	mux.HandleFunc("POST /api/v1/schedules/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /api/v1/schedules/{id}/cancel-booking", h.CancelBooking)
	mux.HandleFunc("GET /api/v1/candidates/{id}/bookings", h.ListBookings)
	mux.HandleFunc("GET /api/v1/public/candidates/{id}/schedules", h.ListOpen)
	mux.HandleFunc("POST /api/v1/public/schedules/{id}/book", h.Book)
}

func staffFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(StaffHeader))
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := h.uuidParam(w, r, "candidateId", r.URL.Query().Get("candidateId"))
	if !ok {
		return
	}
	views, err := h.svc.ListSlots(r.Context(), staffFrom(r), candidateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]scheduleResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toScheduleViewResponse(v))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	candidateID, ok := h.uuidParam(w, r, "candidateId", req.CandidateID)
	if !ok {
		return
	}
	created, err := h.svc.CreateSlot(r.Context(), staffFrom(r), candidateID, req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toScheduleResponse(created))
}

func (h *ScheduleHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	candidateID, ok := h.uuidParam(w, r, "candidateId", req.CandidateID)
	if !ok {
		return
	}
	inputs := make([]scheduling.SlotInput, 0, len(req.Schedules))
	for _, s := range req.Schedules {
		inputs = append(inputs, s.input())
	}
	res, err := h.svc.BulkCreateSlots(r.Context(), staffFrom(r), candidateID, inputs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg := "All slots already exist"
	if n := len(res.Created); n > 0 {
		msg = fmt.Sprintf("Created %d of %d slots", n, res.Requested)
	}
	httpx.WriteJSON(w, http.StatusOK, bulkCreateResponse{Count: len(res.Created), Message: msg})
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id", r.PathValue("id"))
	if !ok {
		return
	}
	var req updateScheduleRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	updated, err := h.svc.UpdateSlot(r.Context(), staffFrom(r), id, scheduling.SlotPatch{
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		InterviewType: req.InterviewType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toScheduleResponse(updated))
}

func (h *ScheduleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id", r.PathValue("id"))
	if !ok {
		return
	}
	cancelled, err := h.svc.CancelSlot(r.Context(), staffFrom(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cancelScheduleResponse{ID: cancelled.ID, Status: string(cancelled.Status)})
}

func (h *ScheduleHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id", r.PathValue("id"))
	if !ok {
		return
	}
	var req cancelBookingRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	res, err := h.svc.CancelBooking(r.Context(), staffFrom(r), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cancelBookingResponse{
		Schedule:           toScheduleResponse(res.Schedule),
		Booking:            toBookingResponse(res.Booking),
		UnblockedSchedules: toScheduleResponses(res.Released),
	})
}

func (h *ScheduleHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := h.uuidParam(w, r, "candidateId", r.PathValue("id"))
	if !ok {
		return
	}
	views, err := h.svc.ListBookings(r.Context(), staffFrom(r), candidateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]bookingResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toBookingViewResponse(v))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ScheduleHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := h.uuidParam(w, r, "candidateId", r.PathValue("id"))
	if !ok {
		return
	}
	slots, err := h.svc.ListOpenSlots(r.Context(), candidateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toScheduleResponses(slots))
}

func (h *ScheduleHandler) Book(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id", r.PathValue("id"))
	if !ok {
		return
	}
	var req bookRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	res, err := h.svc.ConfirmBooking(r.Context(), id, scheduling.BookingInput{
		CompanyID:     req.CompanyID,
		CompanyName:   req.CompanyName,
		InterviewType: req.InterviewType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, bookResponse{
		Booking:          toBookingResponse(res.Booking),
		Schedule:         toScheduleResponse(res.Schedule),
		BlockedSchedules: toScheduleResponses(res.Blocked),
	})
}

func (h *ScheduleHandler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if err := httpx.DecodeJSON(r, dst, allowEmpty); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.ErrorDetail{
			Code:    scheduling.CodeValidation,
			Message: err.Error(),
		})
		return false
	}
	return true
}

func (h *ScheduleHandler) uuidParam(w http.ResponseWriter, r *http.Request, field, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.ErrorDetail{
			Code:    scheduling.CodeValidation,
			Message: field + " is required",
			Field:   field,
		})
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.ErrorDetail{
			Code:    scheduling.CodeValidation,
			Message: field + " must be a UUID",
			Field:   field,
		})
		return "", false
	}
	return id.String(), true
}

// writeError renders a service error. Storage faults get a generic message; the cause
// was already logged by the service.
func (h *ScheduleHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *scheduling.Error
	if !errors.As(err, &e) || e.Kind == scheduling.KindStorage {
		if e == nil {
			h.logger.ErrorContext(r.Context(), "unclassified error",
				"request_id", httpx.RequestIDFromContext(r.Context()),
				"err", err,
			)
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, httpx.ErrorDetail{
			Code:    scheduling.CodeInternal,
			Message: "internal server error",
		})
		return
	}
	httpx.WriteError(w, r, statusFor(e.Kind), httpx.ErrorDetail{
		Code:    e.Code,
		Message: e.Message,
		Field:   e.Field,
	})
}

func statusFor(kind scheduling.Kind) int {
	switch kind {
	case scheduling.KindValidation, scheduling.KindConflict:
		return http.StatusBadRequest
	case scheduling.KindNotFound:
		return http.StatusNotFound
	case scheduling.KindForbidden:
		return http.StatusForbidden
	case scheduling.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
