package models

import "time"

// EventType classifies an episodic event.
type EventType string

const (
	EventMessage      EventType = "message"
	EventToolUse      EventType = "tool_use"
	EventSystemAction EventType = "system_action"
)

// EventMetadata carries optional details about an episodic event.
type EventMetadata struct {
	Role      SpeakerRole `json:"role,omitempty" bson:"role,omitempty"`
	ToolUsed  string      `json:"tool_used,omitempty" bson:"tool_used,omitempty"`
	Success   *bool       `json:"success,omitempty" bson:"success,omitempty"`
	LatencyMs int64       `json:"latency_ms,omitempty" bson:"latency_ms,omitempty"`
}

// EpisodicEvent is one entry of the append-only interaction log. Seq is a
// per-session monotonic sequence number; within one session events are
// strictly ordered by it.
type EpisodicEvent struct {
	ID             string        `json:"id" bson:"_id,omitempty"`
	UserID         string        `json:"user_id" bson:"user_id"`
	ConversationID string        `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
	SessionID      string        `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Seq            int64         `json:"seq" bson:"seq"`
	Type           EventType     `json:"event_type" bson:"event_type"`
	Content        string        `json:"content" bson:"content"`
	Metadata       EventMetadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
}

// EventFilter narrows an episodic query. Zero values mean "no constraint".
type EventFilter struct {
	SessionID      string
	ConversationID string
	Type           EventType
	Start          time.Time
	End            time.Time
}
