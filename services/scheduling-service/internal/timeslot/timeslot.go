// Package timeslot parses and normalizes the calendar day and wall-clock strings that
// make up an interview slot.
package timeslot

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidClock = errors.New("invalid time, expected HH:MM")
)

// ValidClock reports whether s is a 24-hour "H:MM" or "HH:MM" time.
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// NormalizeClock validates s and zero-pads the hour, so "9:05" becomes "09:05".
func NormalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !ValidClock(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if len(s) == 4 {
		return "0" + s, nil
	}
	return s, nil
}

// ParseDate accepts "YYYY-MM-DD" or an RFC 3339 timestamp and returns the calendar
// day at UTC midnight. Timestamps keep their own calendar day, not the UTC one.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Day(ts), nil
}

// Day truncates t to its calendar day, expressed at UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Start combines a calendar day and a normalized clock into an instant in loc.
func Start(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	c, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}

// Key identifies a slot by its day and normalized times. Two slots with equal keys are
// duplicates for bulk creation, whatever their interview type.
type Key struct {
	Date      string
	StartTime string
	EndTime   string
}

func KeyOf(day time.Time, start, end string) Key {
	return Key{Date: FormatDate(day), StartTime: start, EndTime: end}
}

func (k Key) String() string {
	return k.Date + " " + k.StartTime + "-" + k.EndTime
}
