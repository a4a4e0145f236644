package models

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Session tracks one conversation session. It owns zero-or-one short-term
// buffer window; the durable mirror of its messages lives in episodic memory.
type Session struct {
	ID             string        `json:"session_id"`
	UserID         string        `json:"user_id"`
	ConversationID string        `json:"conversation_id"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	TurnCount      int64         `json:"turn_count"`
}
