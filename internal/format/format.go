// Package format holds text helpers for outbound replies and
// notifications.
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Sanitize strips control characters that chat transports reject while
// keeping newlines and tabs intact.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Truncate shortens s to max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// DurationUntil renders the gap between now and t the way a person would
// say it: "2 days and 3 hours", "1 hour and 5 minutes", "12 minutes".
func DurationUntil(now, t time.Time) string {
	d := t.Sub(now)
	if d < 0 {
		d = 0
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%s and %s", plural(days, "day"), plural(hours, "hour"))
	case hours > 0:
		return fmt.Sprintf("%s and %s", plural(hours, "hour"), plural(minutes, "minute"))
	case minutes > 0:
		return plural(minutes, "minute")
	default:
		return "less than a minute"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
