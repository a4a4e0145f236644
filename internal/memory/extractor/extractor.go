package extractor

import (
	"context"

	"mnemos/internal/models"
)

// Extractor distills durable facts from a conversation window. A window
// that contains no lasting knowledge yields an empty slice, not an error.
type Extractor interface {
	Extract(ctx context.Context, window []models.Message) ([]models.ExtractedFact, error)
}
