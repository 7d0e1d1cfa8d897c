package models

import "time"

type User struct {
	UserID               int64     `json:"user_id"`
	UserName             string    `json:"user_name"`
	Timezone             string    `json:"timezone"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
}

// Location resolves the user's timezone, falling back to UTC when the
// stored name is empty or unknown.
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
