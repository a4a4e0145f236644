package models

import "time"

// SemanticFact is a durable piece of knowledge about a user. Facts are never
// mutated after creation; superseding knowledge produces new records.
type SemanticFact struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Content         string    `json:"content"`
	Entities        []string  `json:"entities,omitempty"`
	Confidence      float64   `json:"confidence"`
	SourceSessionID string    `json:"source_session_id,omitempty"`
	Vector          []float32 `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// ExtractedFact is a fact candidate produced by the extractor, before it is
// embedded and persisted.
type ExtractedFact struct {
	Content    string   `json:"fact"`
	Entities   []string `json:"entities,omitempty"`
	Confidence float64  `json:"confidence"`
}

// ScoredFact is a recalled fact together with its similarity score.
type ScoredFact struct {
	FactID     string  `json:"fact_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence,omitempty"`
}

// StoreResult reports the outcome of one item of a batch store. Batch writes
// are best-effort per item, never all-or-nothing.
type StoreResult struct {
	FactID string `json:"fact_id,omitempty"`
	Err    error  `json:"-"`
}
