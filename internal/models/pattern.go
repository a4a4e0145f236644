package models

import "time"

// PatternContext captures where a strategy applied.
type PatternContext struct {
	Tool           string            `json:"tool,omitempty" bson:"tool,omitempty"`
	QuerySignature string            `json:"query_signature,omitempty" bson:"query_signature,omitempty"`
	Preconditions  map[string]string `json:"preconditions,omitempty" bson:"preconditions,omitempty"`
}

// ProceduralPattern records one strategy outcome. Patterns are append-only;
// repeated successes produce additional records rather than updates.
type ProceduralPattern struct {
	ID          string         `json:"id" bson:"_id,omitempty"`
	UserID      string         `json:"user_id" bson:"user_id"`
	Type        string         `json:"pattern_type" bson:"pattern_type"`
	Description string         `json:"description" bson:"description"`
	Context     PatternContext `json:"context" bson:"context"`
	Success     bool           `json:"success" bson:"success"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
}

// PatternQuery narrows a procedural lookup. Matching is structural and
// best-effort, ties broken by recency.
type PatternQuery struct {
	ToolName     string
	QueryContext string
	SuccessOnly  bool
}
