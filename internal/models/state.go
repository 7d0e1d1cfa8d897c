package models

import (
	"encoding/json"
	"time"
)

// Pending is a tool invocation that has been validated but is waiting for
// an explicit yes/no from the user before it runs. At most one exists per
// user at any time.
type Pending struct {
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
	Prompt    string          `json:"prompt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Turn is one half of a conversation exchange kept as router context.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ConversationState is the per-user dispatch record. One row per user,
// mutated on every dispatch cycle.
type ConversationState struct {
	UserID         int64     `json:"user_id"`
	Pending        *Pending  `json:"pending"`
	History        []Turn    `json:"history"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// AppendTurn adds a turn and trims history to the newest limit entries.
func (s *ConversationState) AppendTurn(role, content string, limit int) {
	s.History = append(s.History, Turn{Role: role, Content: content})
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}
