// Package schedulingtest provides in-memory fakes of the scheduling ports. MemStore
// mimics the transactional behaviour of the Postgres store: a transaction works on a
// copy of the data and only a nil return publishes it.
package schedulingtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/interviewdesk/platform/libs/outbox"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/scheduling"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/timeslot"
)

type state struct {
	schedules map[string]model.Schedule
	bookings  map[string]model.Booking
	events    []outbox.Event
}

func (s state) clone() state {
	out := state{
		schedules: make(map[string]model.Schedule, len(s.schedules)),
		bookings:  make(map[string]model.Booking, len(s.bookings)),
		events:    append([]outbox.Event(nil), s.events...),
	}
	for k, v := range s.schedules {
		out.schedules[k] = copySchedule(v)
	}
	for k, v := range s.bookings {
		out.bookings[k] = copyBooking(v)
	}
	return out
}

// MemStore implements scheduling.Store, scheduling.CandidateDirectory and
// scheduling.AccessChecker.
type MemStore struct {
	mu         sync.Mutex
	txMu       sync.Mutex
	data       state
	candidates map[string]model.Candidate
	grants     map[string]map[string]bool
	admins     map[string]bool
	failures   map[string]error
	now        func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: state{
			schedules: map[string]model.Schedule{},
			bookings:  map[string]model.Booking{},
		},
		candidates: map[string]model.Candidate{},
		grants:     map[string]map[string]bool{},
		admins:     map[string]bool{},
		failures:   map[string]error{},
		now:        func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
}

// AddCandidate registers a candidate in the directory.
func (m *MemStore) AddCandidate(c model.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.ID] = c
}

// Grant lets staff act on the candidate.
func (m *MemStore) Grant(candidateID, staff string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grants[candidateID] == nil {
		m.grants[candidateID] = map[string]bool{}
	}
	m.grants[candidateID][strings.ToLower(staff)] = true
}

// Admin lets staff act on every candidate.
func (m *MemStore) Admin(staff string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[strings.ToLower(staff)] = true
}

// FailOn makes the named Tx or Store method return err until cleared with a nil err.
func (m *MemStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// Seed stores s as is (status and links included), generating an id if missing.
func (m *MemStore) Seed(s model.Schedule) model.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := m.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.data.schedules[s.ID] = copySchedule(s)
	return s
}

// SeedBooking stores b, generating an id if missing.
func (m *MemStore) SeedBooking(b model.Booking) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	m.data.bookings[b.ID] = copyBooking(b)
	return b
}

// Schedule returns the committed state of a slot.
func (m *MemStore) Schedule(id string) (model.Schedule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data.schedules[id]
	return copySchedule(s), ok
}

// Bookings returns every committed booking.
func (m *MemStore) Bookings() []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0, len(m.data.bookings))
	for _, b := range m.data.bookings {
		out = append(out, copyBooking(b))
	}
	return out
}

// Events returns the committed outbox events in write order.
func (m *MemStore) Events() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbox.Event(nil), m.data.events...)
}

func (m *MemStore) failure(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[method]
}

func (m *MemStore) snapshot() state {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.clone()
}

func (m *MemStore) GetCandidate(_ context.Context, id string) (model.Candidate, error) {
	if err := m.failure("GetCandidate"); err != nil {
		return model.Candidate{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return model.Candidate{}, model.ErrNotFound
	}
	return c, nil
}

func (m *MemStore) CanAccess(_ context.Context, candidateID, staff string) (bool, error) {
	if err := m.failure("CanAccess"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	staff = strings.ToLower(staff)
	return m.admins[staff] || m.grants[candidateID][staff], nil
}

func (m *MemStore) GetSchedule(_ context.Context, id string) (model.Schedule, error) {
	if err := m.failure("GetSchedule"); err != nil {
		return model.Schedule{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data.schedules[id]
	if !ok {
		return model.Schedule{}, model.ErrNotFound
	}
	return copySchedule(s), nil
}

func (m *MemStore) ListSchedules(_ context.Context, candidateID string) ([]model.ScheduleView, error) {
	if err := m.failure("ListSchedules"); err != nil {
		return nil, err
	}
	data := m.snapshot()
	var views []model.ScheduleView
	for _, s := range sortedSchedules(data, candidateID) {
		view := model.ScheduleView{Schedule: s, BlockingIDs: []string{}}
		if b, ok := latestBooking(data, s.ID); ok {
			view.Booking = &model.BookingSummary{
				ID:          b.ID,
				CompanyName: b.CompanyName,
				ConfirmedAt: b.ConfirmedAt,
				CancelledAt: b.CancelledAt,
			}
		}
		for _, other := range sortedSchedules(data, candidateID) {
			if other.Status == model.StatusBlocked && other.BlockedByID != nil && *other.BlockedByID == s.ID {
				view.BlockingIDs = append(view.BlockingIDs, other.ID)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (m *MemStore) ListOpenSchedules(_ context.Context, candidateID string, from time.Time) ([]model.Schedule, error) {
	if err := m.failure("ListOpenSchedules"); err != nil {
		return nil, err
	}
	var out []model.Schedule
	for _, s := range sortedSchedules(m.snapshot(), candidateID) {
		if s.Status == model.StatusAvailable && !s.Date.Before(from) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) ListBookings(_ context.Context, candidateID string) ([]model.BookingView, error) {
	if err := m.failure("ListBookings"); err != nil {
		return nil, err
	}
	data := m.snapshot()
	var views []model.BookingView
	for _, b := range data.bookings {
		if b.CandidateID != candidateID {
			continue
		}
		s := data.schedules[b.ScheduleID]
		views = append(views, model.BookingView{
			Booking:       b,
			Date:          s.Date,
			StartTime:     s.StartTime,
			EndTime:       s.EndTime,
			InterviewType: s.InterviewType,
			Status:        s.Status,
		})
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].ConfirmedAt.After(views[j].ConfirmedAt)
	})
	return views, nil
}

// InTx serializes transactions and publishes the working copy only when fn succeeds.
func (m *MemStore) InTx(ctx context.Context, fn func(scheduling.Tx) error) error {
	if err := m.failure("InTx"); err != nil {
		return err
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{store: m, data: m.snapshot()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := m.failure("Commit"); err != nil {
		return err
	}
	m.mu.Lock()
	m.data = tx.data
	m.mu.Unlock()
	return nil
}

type memTx struct {
	store *MemStore
	data  state
}

func (t *memTx) LockCandidate(_ context.Context, candidateID string) error {
	if err := t.store.failure("LockCandidate"); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.candidates[candidateID]; !ok {
		return model.ErrNotFound
	}
	return nil
}

func (t *memTx) ListActiveKeys(_ context.Context, candidateID string) ([]timeslot.Key, error) {
	if err := t.store.failure("ListActiveKeys"); err != nil {
		return nil, err
	}
	var keys []timeslot.Key
	for _, s := range t.data.schedules {
		if s.CandidateID == candidateID && s.Status != model.StatusCancelled {
			keys = append(keys, timeslot.KeyOf(s.Date, s.StartTime, s.EndTime))
		}
	}
	return keys, nil
}

func (t *memTx) InsertSchedules(_ context.Context, schedules []model.Schedule) ([]model.Schedule, error) {
	if err := t.store.failure("InsertSchedules"); err != nil {
		return nil, err
	}
	now := t.store.now()
	out := make([]model.Schedule, 0, len(schedules))
	for _, s := range schedules {
		s.ID = uuid.NewString()
		s.CreatedAt = now
		s.UpdatedAt = now
		t.data.schedules[s.ID] = copySchedule(s)
		out = append(out, s)
	}
	return out, nil
}

func (t *memTx) GetScheduleForUpdate(_ context.Context, id string) (model.Schedule, error) {
	if err := t.store.failure("GetScheduleForUpdate"); err != nil {
		return model.Schedule{}, err
	}
	s, ok := t.data.schedules[id]
	if !ok {
		return model.Schedule{}, model.ErrNotFound
	}
	return copySchedule(s), nil
}

func (t *memTx) UpdateSchedule(_ context.Context, s model.Schedule) (model.Schedule, error) {
	if err := t.store.failure("UpdateSchedule"); err != nil {
		return model.Schedule{}, err
	}
	if _, ok := t.data.schedules[s.ID]; !ok {
		return model.Schedule{}, model.ErrNotFound
	}
	s.UpdatedAt = t.store.now()
	t.data.schedules[s.ID] = copySchedule(s)
	return s, nil
}

func (t *memTx) ReleaseBlockedBy(_ context.Context, blockerID string) ([]model.Schedule, error) {
	if err := t.store.failure("ReleaseBlockedBy"); err != nil {
		return nil, err
	}
	var released []model.Schedule
	for id, s := range t.data.schedules {
		if s.Status != model.StatusBlocked || s.BlockedByID == nil || *s.BlockedByID != blockerID {
			continue
		}
		s.Status = model.StatusAvailable
		s.BlockedByID = nil
		s.UpdatedAt = t.store.now()
		t.data.schedules[id] = s
		released = append(released, s)
	}
	sortByDateTime(released)
	return released, nil
}

func (t *memTx) BlockSameDay(_ context.Context, blocker model.Schedule) ([]model.Schedule, error) {
	if err := t.store.failure("BlockSameDay"); err != nil {
		return nil, err
	}
	var blocked []model.Schedule
	for id, s := range t.data.schedules {
		if id == blocker.ID || s.CandidateID != blocker.CandidateID || s.Status != model.StatusAvailable {
			continue
		}
		if !timeslot.SameDay(s.Date, blocker.Date) {
			continue
		}
		blockerID := blocker.ID
		s.Status = model.StatusBlocked
		s.BlockedByID = &blockerID
		s.UpdatedAt = t.store.now()
		t.data.schedules[id] = s
		blocked = append(blocked, copySchedule(s))
	}
	sortByDateTime(blocked)
	return blocked, nil
}

func (t *memTx) GetActiveBookingForUpdate(_ context.Context, scheduleID string) (model.Booking, error) {
	if err := t.store.failure("GetActiveBookingForUpdate"); err != nil {
		return model.Booking{}, err
	}
	for _, b := range t.data.bookings {
		if b.ScheduleID == scheduleID && b.Active() {
			return copyBooking(b), nil
		}
	}
	return model.Booking{}, model.ErrNotFound
}

func (t *memTx) InsertBooking(_ context.Context, b model.Booking) (model.Booking, error) {
	if err := t.store.failure("InsertBooking"); err != nil {
		return model.Booking{}, err
	}
	b.ID = uuid.NewString()
	t.data.bookings[b.ID] = copyBooking(b)
	return b, nil
}

func (t *memTx) CancelBooking(_ context.Context, bookingID string, reason *string) (model.Booking, error) {
	if err := t.store.failure("CancelBooking"); err != nil {
		return model.Booking{}, err
	}
	b, ok := t.data.bookings[bookingID]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	now := t.store.now()
	b.CancelledAt = &now
	if reason != nil {
		r := *reason
		b.CancelReason = &r
	}
	t.data.bookings[bookingID] = b
	return copyBooking(b), nil
}

func (t *memTx) AddEvent(_ context.Context, evt outbox.Event) error {
	if err := t.store.failure("AddEvent"); err != nil {
		return err
	}
	t.data.events = append(t.data.events, evt)
	return nil
}

func sortedSchedules(data state, candidateID string) []model.Schedule {
	var out []model.Schedule
	for _, s := range data.schedules {
		if s.CandidateID == candidateID {
			out = append(out, copySchedule(s))
		}
	}
	sortByDateTime(out)
	return out
}

func sortByDateTime(s []model.Schedule) {
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

func latestBooking(data state, scheduleID string) (model.Booking, bool) {
	var (
		latest model.Booking
		found  bool
	)
	for _, b := range data.bookings {
		if b.ScheduleID != scheduleID {
			continue
		}
		if !found || b.ConfirmedAt.After(latest.ConfirmedAt) {
			latest, found = b, true
		}
	}
	return latest, found
}

func copySchedule(s model.Schedule) model.Schedule {
	if s.BlockedByID != nil {
		v := *s.BlockedByID
		s.BlockedByID = &v
	}
	return s
}

func copyBooking(b model.Booking) model.Booking {
	if b.CancelledAt != nil {
		v := *b.CancelledAt
		b.CancelledAt = &v
	}
	if b.CancelReason != nil {
		v := *b.CancelReason
		b.CancelReason = &v
	}
	return b
}

var (
	_ scheduling.Store              = (*MemStore)(nil)
	_ scheduling.CandidateDirectory = (*MemStore)(nil)
	_ scheduling.AccessChecker      = (*MemStore)(nil)
	_ scheduling.Tx                 = (*memTx)(nil)
)
