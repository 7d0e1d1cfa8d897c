package models

import "time"

// ReminderJob statuses. A job leaves Pending exactly once; the other three
// states are terminal.
const (
	JobPending   = "pending"
	JobFired     = "fired"
	JobCancelled = "cancelled"
	JobFailed    = "failed"
)

// ReminderJob is a durable notification to deliver at FireAt. Jobs are
// never deleted, only status-transitioned, so the table doubles as an
// audit trail.
type ReminderJob struct {
	ID             string     `json:"id"`
	UserID         int64      `json:"user_id"`
	FireAt         time.Time  `json:"fire_at"` // absolute, UTC
	Message        string     `json:"message"`
	EventID        *int       `json:"event_id"`        // set for event-linked reminders
	OffsetMinutes  int        `json:"offset_minutes"`  // minutes before the event, when event-linked
	RecurrenceRule string     `json:"recurrence_rule"` // RFC 5545 RRULE, empty for one-shot
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"last_error"`
	CreatedAt      time.Time  `json:"created_at"`
	FiredAt        *time.Time `json:"fired_at"`
}

func (j *ReminderJob) IsRecurring() bool {
	return j.RecurrenceRule != ""
}
