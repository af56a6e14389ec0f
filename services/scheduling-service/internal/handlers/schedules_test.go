package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewdesk/platform/libs/httpx"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/handlers"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/scheduling"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/scheduling/schedulingtest"
)

const (
	candidateID = "7f1d2c3b-0000-4000-8000-00000000000a"
	unknownID   = "7f1d2c3b-0000-4000-8000-0000000000ff"
	recruiter   = "recruiter@agency.example"
	outsider    = "outsider@agency.example"
)

var march10 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type apiSchedule struct {
	ID            string   `json:"id"`
	CandidateID   string   `json:"candidateId"`
	Date          string   `json:"date"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime"`
	InterviewType string   `json:"interviewType"`
	Status        string   `json:"status"`
	BlockedByID   *string  `json:"blockedById"`
	Blocking      []string `json:"blocking"`
	Booking       *struct {
		CompanyName string `json:"companyName"`
		CancelledAt string `json:"cancelledAt"`
	} `json:"booking"`
}

type apiError struct {
	Error httpx.ErrorDetail `json:"error"`
}

func newServer(t *testing.T) (http.Handler, *schedulingtest.MemStore) {
	t.Helper()
	store := schedulingtest.NewMemStore()
	store.AddCandidate(model.Candidate{ID: candidateID, Name: "Ada Lovelace", Email: "ada@example.com"})
	store.Grant(candidateID, recruiter)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := scheduling.NewService(store, store, store, logger, scheduling.Options{
		Now: func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	mux := http.NewServeMux()
	handlers.NewScheduleHandler(svc, logger).Register(mux)
	return httpx.WithRequestID(mux), store
}

func do(t *testing.T, h http.Handler, method, path, staff string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		rdr = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if staff != "" {
		req.Header.Set(handlers.StaffHeader, staff)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) httpx.ErrorDetail {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[apiError](t, rec)
	assert.Equal(t, code, body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
	return body.Error
}

func ptr[T any](v T) *T { return &v }

func TestCreateSchedule(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/schedules", recruiter, map[string]string{
		"candidateId":   candidateID,
		"date":          "2025-03-10",
		"startTime":     "9:30",
		"endTime":       "10:30",
		"interviewType": "onsite",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[apiSchedule](t, rec)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "2025-03-10", got.Date)
	assert.Equal(t, "09:30", got.StartTime)
	assert.Equal(t, "onsite", got.InterviewType)
	assert.Equal(t, "available", got.Status)
	assert.Nil(t, got.BlockedByID)
}

func TestCreateScheduleErrors(t *testing.T) {
	h, _ := newServer(t)
	valid := map[string]string{"candidateId": candidateID, "date": "2025-03-10", "startTime": "10:00", "endTime": "11:00"}
	with := func(k, v string) map[string]string {
		out := map[string]string{}
		for key, val := range valid {
			out[key] = val
		}
		out[k] = v
		return out
	}

	tests := []struct {
		name   string
		staff  string
		body   any
		status int
		code   string
		field  string
	}{
		{"bad start time", recruiter, with("startTime", "24:00"), http.StatusBadRequest, scheduling.CodeValidation, "startTime"},
		{"missing date", recruiter, with("date", ""), http.StatusBadRequest, scheduling.CodeValidation, "date"},
		{"non uuid candidate", recruiter, with("candidateId", "42"), http.StatusBadRequest, scheduling.CodeValidation, "candidateId"},
		{"unknown field", recruiter, `{"candidateId":"` + candidateID + `","slot":1}`, http.StatusBadRequest, scheduling.CodeValidation, ""},
		{"empty body", recruiter, nil, http.StatusBadRequest, scheduling.CodeValidation, ""},
		{"unknown candidate", recruiter, with("candidateId", unknownID), http.StatusNotFound, scheduling.CodeNotFound, ""},
		{"no staff", "", valid, http.StatusUnauthorized, scheduling.CodeUnauthorized, ""},
		{"no access", outsider, valid, http.StatusForbidden, scheduling.CodeForbidden, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/schedules", tc.staff, tc.body)
			detail := requireError(t, rec, tc.status, tc.code)
			assert.Equal(t, tc.field, detail.Field)
		})
	}
}

func TestBulkCreateIsIdempotent(t *testing.T) {
	h, _ := newServer(t)
	body := map[string]any{
		"candidateId": candidateID,
		"schedules": []map[string]string{
			{"date": "2025-03-10", "startTime": "10:00", "endTime": "11:00", "interviewType": "onsite"},
			{"date": "2025-03-10", "startTime": "14:00", "endTime": "15:00"},
		},
	}

	rec := do(t, h, http.MethodPost, "/api/v1/schedules/bulk", recruiter, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, first["count"])

	rec = do(t, h, http.MethodPost, "/api/v1/schedules/bulk", recruiter, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, second["count"])
	assert.Equal(t, "All slots already exist", second["message"])

	rec = do(t, h, http.MethodGet, "/api/v1/schedules?candidateId="+candidateID, recruiter, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]apiSchedule](t, rec), 2)
}

func TestBulkCreateUnknownCandidate(t *testing.T) {
	h, _ := newServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/schedules/bulk", recruiter, map[string]any{
		"candidateId": unknownID,
		"schedules":   []map[string]string{{"date": "2025-03-10", "startTime": "10:00", "endTime": "11:00"}},
	})
	requireError(t, rec, http.StatusNotFound, scheduling.CodeNotFound)
}

func TestUpdateBookedScheduleRejected(t *testing.T) {
	h, store := newServer(t)
	booked := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnline, Status: model.StatusBooked})

	rec := do(t, h, http.MethodPut, "/api/v1/schedules/"+booked.ID, recruiter, map[string]string{"startTime": "12:00"})
	requireError(t, rec, http.StatusBadRequest, scheduling.CodeInvalidStatus)
}

func TestUpdateSchedule(t *testing.T) {
	h, store := newServer(t)
	slot := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnline, Status: model.StatusAvailable})

	rec := do(t, h, http.MethodPut, "/api/v1/schedules/"+slot.ID, recruiter, map[string]string{"startTime": "12:00", "endTime": "13:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[apiSchedule](t, rec)
	assert.Equal(t, "12:00", got.StartTime)
	assert.Equal(t, "13:00", got.EndTime)
}

func TestCancelSchedule(t *testing.T) {
	h, store := newServer(t)
	slot := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnline, Status: model.StatusAvailable})
	booked := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "12:00", EndTime: "13:00", InterviewType: model.InterviewOnline, Status: model.StatusBooked})

	rec := do(t, h, http.MethodPost, "/api/v1/schedules/"+slot.ID+"/cancel", recruiter, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"id": slot.ID, "status": "cancelled"}, decode[map[string]any](t, rec))

	rec = do(t, h, http.MethodPost, "/api/v1/schedules/"+booked.ID+"/cancel", recruiter, nil)
	requireError(t, rec, http.StatusBadRequest, scheduling.CodeCannotCancelBooked)
}

func TestCancelBookingReleasesBlockedSlots(t *testing.T) {
	h, store := newServer(t)
	a := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnsite, Status: model.StatusBooked})
	b := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "14:00", EndTime: "15:00", InterviewType: model.InterviewOnline, Status: model.StatusBlocked, BlockedByID: ptr(a.ID)})
	c := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10.AddDate(0, 0, 1), StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnline, Status: model.StatusAvailable})
	d := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "16:00", EndTime: "17:00", InterviewType: model.InterviewBoth, Status: model.StatusBlocked, BlockedByID: ptr(a.ID)})
	store.SeedBooking(model.Booking{ScheduleID: a.ID, CandidateID: candidateID, CompanyName: "Acme Corp", ConfirmedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)})

	rec := do(t, h, http.MethodPost, "/api/v1/schedules/"+a.ID+"/cancel-booking", recruiter, map[string]string{"reason": "scheduling conflict"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Schedule apiSchedule `json:"schedule"`
		Booking  struct {
			CancelReason *string `json:"cancelReason"`
			CancelledAt  *string `json:"cancelledAt"`
		} `json:"booking"`
		UnblockedSchedules []apiSchedule `json:"unblockedSchedules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Schedule.Status)
	require.NotNil(t, resp.Booking.CancelReason)
	assert.Equal(t, "scheduling conflict", *resp.Booking.CancelReason)
	assert.NotNil(t, resp.Booking.CancelledAt)
	require.Len(t, resp.UnblockedSchedules, 2)
	assert.Equal(t, b.ID, resp.UnblockedSchedules[0].ID)
	assert.Equal(t, d.ID, resp.UnblockedSchedules[1].ID)
	for _, s := range resp.UnblockedSchedules {
		assert.Equal(t, "available", s.Status)
		assert.Nil(t, s.BlockedByID)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/schedules?candidateId="+candidateID, recruiter, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := map[string]string{}
	for _, s := range decode[[]apiSchedule](t, rec) {
		status[s.ID] = s.Status
	}
	assert.Equal(t, map[string]string{
		a.ID: "cancelled",
		b.ID: "available",
		c.ID: "available",
		d.ID: "available",
	}, status)
}

func TestCancelBookingRequiresBookedSlot(t *testing.T) {
	h, store := newServer(t)
	slot := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnsite, Status: model.StatusAvailable})

	rec := do(t, h, http.MethodPost, "/api/v1/schedules/"+slot.ID+"/cancel-booking", recruiter, nil)
	requireError(t, rec, http.StatusBadRequest, scheduling.CodeInvalidStatus)
}

func TestCancelBookingStorageFailureIsOpaque(t *testing.T) {
	h, store := newServer(t)
	a := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnsite, Status: model.StatusBooked})
	store.SeedBooking(model.Booking{ScheduleID: a.ID, CandidateID: candidateID, CompanyName: "Acme Corp", ConfirmedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)})
	store.FailOn("ReleaseBlockedBy", errors.New("pq: deadlock detected"))

	rec := do(t, h, http.MethodPost, "/api/v1/schedules/"+a.ID+"/cancel-booking", recruiter, nil)
	detail := requireError(t, rec, http.StatusInternalServerError, scheduling.CodeInternal)
	assert.Equal(t, "internal server error", detail.Message)
	assert.NotContains(t, rec.Body.String(), "deadlock")

	got, ok := store.Schedule(a.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusBooked, got.Status)
}

func TestPathIDMustBeUUID(t *testing.T) {
	h, _ := newServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/schedules/not-a-uuid/cancel", recruiter, nil)
	detail := requireError(t, rec, http.StatusBadRequest, scheduling.CodeValidation)
	assert.Equal(t, "id", detail.Field)

	rec = do(t, h, http.MethodGet, "/api/v1/schedules", recruiter, nil)
	detail = requireError(t, rec, http.StatusBadRequest, scheduling.CodeValidation)
	assert.Equal(t, "candidateId", detail.Field)
}

func TestListBookings(t *testing.T) {
	h, store := newServer(t)
	slot := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnsite, Status: model.StatusBooked})
	store.SeedBooking(model.Booking{ScheduleID: slot.ID, CandidateID: candidateID, CompanyName: "Acme Corp", ConfirmedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)})

	rec := do(t, h, http.MethodGet, "/api/v1/candidates/"+candidateID+"/bookings", recruiter, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[[]map[string]any](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme Corp", got[0]["companyName"])
	assert.Equal(t, "2025-03-10", got[0]["date"])
	assert.Equal(t, "onsite", got[0]["interviewType"])

	rec = do(t, h, http.MethodGet, "/api/v1/candidates/"+candidateID+"/bookings", outsider, nil)
	requireError(t, rec, http.StatusForbidden, scheduling.CodeForbidden)
}

func TestPublicBookingFlow(t *testing.T) {
	h, store := newServer(t)
	onsite := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "10:00", EndTime: "11:00", InterviewType: model.InterviewOnsite, Status: model.StatusAvailable})
	sameDay := store.Seed(model.Schedule{CandidateID: candidateID, Date: march10, StartTime: "14:00", EndTime: "15:00", InterviewType: model.InterviewOnline, Status: model.StatusAvailable})

	rec := do(t, h, http.MethodGet, "/api/v1/public/candidates/"+candidateID+"/schedules", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]apiSchedule](t, rec), 2)

	rec = do(t, h, http.MethodPost, "/api/v1/public/schedules/"+onsite.ID+"/book", "", map[string]string{"companyName": "Acme Corp"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Schedule         apiSchedule   `json:"schedule"`
		BlockedSchedules []apiSchedule `json:"blockedSchedules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "booked", resp.Schedule.Status)
	require.Len(t, resp.BlockedSchedules, 1)
	assert.Equal(t, sameDay.ID, resp.BlockedSchedules[0].ID)
	assert.Equal(t, "blocked", resp.BlockedSchedules[0].Status)

	rec = do(t, h, http.MethodPost, "/api/v1/public/schedules/"+onsite.ID+"/book", "", map[string]string{"companyName": "Other Co"})
	requireError(t, rec, http.StatusBadRequest, scheduling.CodeInvalidStatus)

	rec = do(t, h, http.MethodGet, "/api/v1/public/candidates/"+candidateID+"/schedules", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]apiSchedule](t, rec))
}
