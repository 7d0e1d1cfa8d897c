// Package rrule wraps RFC 5545 recurrence rules for recurring reminder
// jobs. Times are handled in UTC throughout; job fire times are absolute.
package rrule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Parse parses an RFC 5545 RRULE string anchored at dtstart.
func Parse(ruleStr string, dtstart time.Time) (*rrule.RRule, error) {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE: %w", err)
	}

	opt.Dtstart = dtstart.UTC()
	return rrule.NewRRule(*opt)
}

// NextAfter returns the next occurrence strictly after the given instant,
// or nil when the rule is exhausted.
func NextAfter(ruleStr string, dtstart, after time.Time) (*time.Time, error) {
	rule, err := Parse(ruleStr, dtstart)
	if err != nil {
		return nil, err
	}

	next := rule.After(after.UTC(), false)
	if next.IsZero() {
		return nil, nil
	}
	next = next.UTC()
	return &next, nil
}

// HumanReadable renders a rule for user-facing reminder summaries.
func HumanReadable(ruleStr string) string {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return ruleStr
	}

	var freq string
	switch opt.Freq {
	case rrule.HOURLY:
		freq = "hourly"
	case rrule.DAILY:
		freq = "daily"
	case rrule.WEEKLY:
		freq = "weekly"
	case rrule.MONTHLY:
		freq = "monthly"
	case rrule.YEARLY:
		freq = "yearly"
	default:
		return ruleStr
	}

	if opt.Interval > 1 {
		unit := strings.TrimSuffix(freq, "ly")
		switch freq {
		case "daily":
			unit = "day"
		case "hourly":
			unit = "hour"
		}
		return fmt.Sprintf("every %d %ss", opt.Interval, unit)
	}
	return freq
}
