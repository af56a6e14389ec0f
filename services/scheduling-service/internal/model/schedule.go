package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned by storage when a row does not exist.
var ErrNotFound = errors.New("not found")

type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusBlocked   Status = "blocked"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBooked, StatusBlocked, StatusCancelled:
		return true
	}
	return false
}

type InterviewType string

const (
	InterviewOnline InterviewType = "online"
	InterviewOnsite InterviewType = "onsite"
	InterviewBoth   InterviewType = "both"
)

func (t InterviewType) Valid() bool {
	switch t {
	case InterviewOnline, InterviewOnsite, InterviewBoth:
		return true
	}
	return false
}

// Schedule is one offered interview slot. Date is the calendar day at UTC midnight;
// StartTime and EndTime are zero-padded "HH:MM".
type Schedule struct {
	ID            string
	CandidateID   string
	Date          time.Time
	StartTime     string
	EndTime       string
	InterviewType InterviewType
	Status        Status
	// BlockedByID is set iff Status is StatusBlocked.
	BlockedByID *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Booking struct {
	ID           string
	ScheduleID   string
	CandidateID  string
	CompanyID    string
	CompanyName  string
	ConfirmedAt  time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// Active reports whether the booking still holds its slot.
func (b Booking) Active() bool {
	return b.CancelledAt == nil
}

// BookingSummary is the booking data embedded in slot listings.
type BookingSummary struct {
	ID          string
	CompanyName string
	ConfirmedAt time.Time
	CancelledAt *time.Time
}

// ScheduleView is a slot as listed to staff: the latest booking (if any) and the ids of
// slots this one currently blocks.
type ScheduleView struct {
	Schedule
	Booking     *BookingSummary
	BlockingIDs []string
}

// BookingView is a booking joined with the slot it was made for.
type BookingView struct {
	Booking
	Date          time.Time
	StartTime     string
	EndTime       string
	InterviewType InterviewType
	Status        Status
}

type Candidate struct {
	ID          string
	Name        string
	Email       string
	CompanyName string
}
