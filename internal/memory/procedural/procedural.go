package procedural

import (
	"context"

	"mnemos/internal/models"
)

// Store holds learned strategy patterns. Patterns are append-only and
// recalled by structural match with recency breaking ties.
type Store interface {
	// StorePattern persists one pattern and returns its ID.
	StorePattern(ctx context.Context, pattern *models.ProceduralPattern) (string, error)

	// FindPatterns returns up to limit patterns of the user matching the
	// query, most recent first.
	FindPatterns(ctx context.Context, userID string, query models.PatternQuery, limit int) ([]models.ProceduralPattern, error)

	// EraseUser removes every pattern of the user and reports how many were
	// deleted.
	EraseUser(ctx context.Context, userID string) (int64, error)
}
