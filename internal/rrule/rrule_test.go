package rrule

import (
	"testing"
	"time"
)

func TestNextAfterDaily(t *testing.T) {
	dtstart := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	after := time.Date(2024, 6, 1, 9, 0, 5, 0, time.UTC)

	next, err := NextAfter("FREQ=DAILY", dtstart, after)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil {
		t.Fatal("daily rule should never exhaust")
	}
	want := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next occurrence %v, want %v", next, want)
	}
}

func TestNextAfterExhausted(t *testing.T) {
	dtstart := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	after := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	next, err := NextAfter("FREQ=DAILY;COUNT=3", dtstart, after)
	if err != nil {
		t.Fatal(err)
	}
	if next != nil {
		t.Fatalf("rule with count 3 should be exhausted, got %v", next)
	}
}

func TestNextAfterStripsPrefix(t *testing.T) {
	dtstart := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	if _, err := NextAfter("RRULE:FREQ=WEEKLY", dtstart, dtstart); err != nil {
		t.Fatalf("RRULE: prefix should be accepted: %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("FREQ=SOMETIMES", time.Now()); err == nil {
		t.Fatal("expected an error for an unknown frequency")
	}
}

func TestHumanReadable(t *testing.T) {
	cases := []struct {
		rule string
		want string
	}{
		{"FREQ=DAILY", "daily"},
		{"FREQ=WEEKLY", "weekly"},
		{"RRULE:FREQ=MONTHLY", "monthly"},
		{"FREQ=WEEKLY;INTERVAL=2", "every 2 weeks"},
		{"FREQ=DAILY;INTERVAL=3", "every 3 days"},
	}
	for _, c := range cases {
		if got := HumanReadable(c.rule); got != c.want {
			t.Errorf("HumanReadable(%q) = %q, want %q", c.rule, got, c.want)
		}
	}
}
