// Package timeparse normalizes natural-language time expressions to
// absolute UTC instants. Parsing is anchored at the receiving request's
// clock in the user's timezone; ambiguous clock-only expressions resolve
// to the next future occurrence, never the past.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseable reports input that matched no known time form.
type ErrUnparseable struct {
	Input string
}

func (e *ErrUnparseable) Error() string {
	return fmt.Sprintf("could not understand time %q", e.Input)
}

var (
	relativeRe = regexp.MustCompile(`^(?:in\s+)?(\d+)\s*(seconds?|secs?|minutes?|mins?|hours?|hrs?|days?|weeks?)(?:\s+from\s+now)?$`)
	clockRe    = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	dayAtRe    = regexp.MustCompile(`^(today|tomorrow)(?:\s+at)?\s+(.+)$`)
)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalize resolves expr against anchor in the given location and returns
// the instant in UTC. The result is always strictly after anchor except for
// explicit absolute inputs, which are returned as written so the caller can
// reject past times with its own validation error.
func Normalize(expr string, anchor time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	input := strings.ToLower(strings.TrimSpace(expr))
	if input == "" {
		return time.Time{}, &ErrUnparseable{Input: expr}
	}
	local := anchor.In(loc)

	// Absolute formats first. Layouts without an offset are interpreted in
	// the user's timezone.
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(input)); err == nil {
			if layout == time.RFC3339 {
				return t.UTC(), nil
			}
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc).UTC(), nil
		}
	}

	// Relative offsets: "in 3 hours", "30 minutes from now", "2 days".
	if m := relativeRe.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, &ErrUnparseable{Input: expr}
		}
		var unit time.Duration
		switch strings.TrimSuffix(m[2], "s") {
		case "second", "sec":
			unit = time.Second
		case "minute", "min":
			unit = time.Minute
		case "hour", "hr":
			unit = time.Hour
		case "day":
			unit = 24 * time.Hour
		case "week":
			unit = 7 * 24 * time.Hour
		default:
			return time.Time{}, &ErrUnparseable{Input: expr}
		}
		return anchor.Add(time.Duration(n) * unit).UTC(), nil
	}

	// "today at 5pm", "tomorrow at 9am", "tomorrow 21:30".
	if m := dayAtRe.FindStringSubmatch(input); m != nil {
		hour, minute, ok := parseClock(m[2])
		if !ok {
			return time.Time{}, &ErrUnparseable{Input: expr}
		}
		day := local
		if m[1] == "tomorrow" {
			day = day.AddDate(0, 0, 1)
		}
		t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		if m[1] == "today" && !t.After(local) {
			t = t.AddDate(0, 0, 1)
		}
		return t.UTC(), nil
	}

	switch input {
	case "tomorrow":
		t := local.AddDate(0, 0, 1)
		return time.Date(t.Year(), t.Month(), t.Day(), 9, 0, 0, 0, loc).UTC(), nil
	case "next week":
		return anchor.Add(7 * 24 * time.Hour).UTC(), nil
	}

	// Bare clock expressions: "9am", "17:45", "noon". Next occurrence.
	if hour, minute, ok := parseClock(input); ok {
		t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		if !t.After(local) {
			t = t.AddDate(0, 0, 1)
		}
		return t.UTC(), nil
	}

	return time.Time{}, &ErrUnparseable{Input: expr}
}

// parseClock reads "9am", "9:30pm", "17:45", "noon", "midnight".
func parseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "noon", "midday":
		return 12, 0, true
	case "midnight":
		return 0, 0, true
	}

	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}

	switch m[3] {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		// 24-hour clock needs an explicit minute part to avoid treating a
		// bare number like "3" as a time.
		if m[2] == "" {
			return 0, 0, false
		}
		if hour > 23 {
			return 0, 0, false
		}
	}
	return hour, minute, true
}
