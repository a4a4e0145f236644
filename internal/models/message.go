package models

import "time"

// SpeakerRole identifies who produced a message.
type SpeakerRole string

const (
	RoleUser      SpeakerRole = "user"
	RoleAssistant SpeakerRole = "assistant"
	RoleTool      SpeakerRole = "tool"
)

// Message is one conversational turn fragment. Messages are immutable once
// appended: they live in the short-term buffer and are mirrored into
// episodic memory.
type Message struct {
	Role      SpeakerRole `json:"role" bson:"role"`
	Content   string      `json:"content" bson:"content"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
}

// ToolOutcome reports one tool invocation made while producing a turn.
type ToolOutcome struct {
	Tool      string `json:"tool" bson:"tool"`
	Success   bool   `json:"success" bson:"success"`
	LatencyMs int64  `json:"latency_ms" bson:"latency_ms"`
	Output    string `json:"output,omitempty" bson:"output,omitempty"`
}
