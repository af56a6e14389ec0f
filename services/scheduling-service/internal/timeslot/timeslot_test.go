package timeslot

import (
	"errors"
	"testing"
	"time"
)

func TestValidClock(t *testing.T) {
	valid := []string{"09:05", "9:05", "00:00", "23:59", "19:30"}
	for _, s := range valid {
		if !ValidClock(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	invalid := []string{"24:00", "9:5", "", "12:60", "1234", "12:3a", " 09:00"}
	for _, s := range invalid {
		if ValidClock(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestNormalizeClock(t *testing.T) {
	got, err := NormalizeClock("9:05")
	if err != nil || got != "09:05" {
		t.Fatalf("expected 09:05, got %q err=%v", got, err)
	}
	got, err = NormalizeClock("23:59")
	if err != nil || got != "23:59" {
		t.Fatalf("expected 23:59, got %q err=%v", got, err)
	}
	if _, err := NormalizeClock("24:00"); !errors.Is(err, ErrInvalidClock) {
		t.Fatalf("expected ErrInvalidClock, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-10")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if FormatDate(d) != "2025-03-10" || d.Location() != time.UTC {
		t.Fatalf("unexpected day %v", d)
	}

	// The local calendar day of a timestamp wins over its UTC day.
	d, err = ParseDate("2025-03-10T23:30:00-05:00")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if FormatDate(d) != "2025-03-10" {
		t.Fatalf("expected 2025-03-10, got %s", FormatDate(d))
	}

	for _, s := range []string{"", "10/03/2025", "2025-13-01"} {
		if _, err := ParseDate(s); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate for %q, got %v", s, err)
		}
	}
}

func TestStartAndSameDay(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	start, err := Start(day, "10:30", time.UTC)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !start.Equal(day.Add(10*time.Hour + 30*time.Minute)) {
		t.Fatalf("unexpected start %s", start)
	}
	if !SameDay(day, start) || SameDay(day, day.AddDate(0, 0, 1)) {
		t.Fatalf("SameDay mismatch")
	}
}

func TestKeyIgnoresInterviewType(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	a := KeyOf(day, "10:00", "11:00")
	b := KeyOf(day, "10:00", "11:00")
	if a != b {
		t.Fatalf("expected equal keys")
	}
	if a.String() != "2025-03-10 10:00-11:00" {
		t.Fatalf("unexpected key string %q", a.String())
	}
}
