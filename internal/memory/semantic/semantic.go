package semantic

import (
	"context"
	"errors"

	"mnemos/internal/models"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store is the durable fact store. Every operation is scoped to one user;
// the user filter is enforced inside the store, never by post-filtering
// results.
type Store interface {
	// Store embeds and persists one fact, returning its ID.
	Store(ctx context.Context, fact *models.SemanticFact) (string, error)

	// StoreBatch persists facts best-effort per item. The result slice is
	// positionally aligned with the input.
	StoreBatch(ctx context.Context, facts []*models.SemanticFact) []models.StoreResult

	// Retrieve returns up to k facts of the user ranked by similarity to the
	// query, dropping results under the threshold.
	Retrieve(ctx context.Context, userID, query string, k int, threshold float64) ([]models.ScoredFact, error)

	// DeleteUser removes every fact of the user.
	DeleteUser(ctx context.Context, userID string) error
}
