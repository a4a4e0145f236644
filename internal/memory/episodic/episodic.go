package episodic

import (
	"context"

	"mnemos/internal/models"
)

// Store is the append-only interaction log. Events are never updated in
// place; the only delete path is whole-user erasure.
type Store interface {
	// Append persists one event and returns its ID.
	Append(ctx context.Context, event *models.EpisodicEvent) (string, error)

	// Recent returns up to limit events of the user matching the filter,
	// most recent first.
	Recent(ctx context.Context, userID string, limit int, filter models.EventFilter) ([]models.EpisodicEvent, error)

	// Replay returns the full event sequence of one session in order.
	Replay(ctx context.Context, userID, sessionID string) ([]models.EpisodicEvent, error)

	// EraseUser removes every event of the user and reports how many were
	// deleted.
	EraseUser(ctx context.Context, userID string) (int64, error)
}
