package models

import "time"

type Event struct {
	EventID     int        `json:"event_id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   *time.Time `json:"start_time"` // nil for all-day events
	EndTime     *time.Time `json:"end_time"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (e *Event) IsAllDay() bool {
	return e.StartTime == nil
}
