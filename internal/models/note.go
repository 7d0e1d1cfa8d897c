package models

import "time"

type Note struct {
	NoteID    string    `json:"note_id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteMatch is a ranked semantic-search result.
type NoteMatch struct {
	Note  *Note
	Score float64
}
