package models

import "time"

// FusedContext is the combined recall result assembled for one turn's
// prompt. Each list is independently bounded to keep prompt size in check.
type FusedContext struct {
	Semantic   []ScoredFact        `json:"semantic"`
	Episodic   []EpisodicEvent     `json:"episodic"`
	Procedural []ProceduralPattern `json:"procedural"`
}

// ExtractionJob is the payload handed to the async extraction pipeline,
// either over Kafka or to an in-process worker. Window is a snapshot of the
// short-term buffer at trigger time.
type ExtractionJob struct {
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Window         []Message `json:"window"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}
