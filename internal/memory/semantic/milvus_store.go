package semantic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"mnemos/internal/database/milvus"
	"mnemos/internal/embedding"
	"mnemos/internal/models"
	"mnemos/pkg/logger"
)

// MilvusStore persists facts in a Milvus collection, one row per fact with
// the embedding vector alongside the scalar fields.
type MilvusStore struct {
	client   *milvus.MilvusClient
	embedder embedding.Embedding
	log      *logger.Logger
}

// NewMilvusStore creates a store over the given client and embedder.
func NewMilvusStore(client *milvus.MilvusClient, embedder embedding.Embedding) *MilvusStore {
	return &MilvusStore{
		client:   client,
		embedder: embedder,
		log:      logger.New("semantic-store", "", ""),
	}
}

// Store embeds and inserts one fact.
func (s *MilvusStore) Store(ctx context.Context, fact *models.SemanticFact) (string, error) {
	if fact.UserID == "" {
		return "", fmt.Errorf("fact has no user id")
	}

	vector := fact.Vector
	if vector == nil {
		var err error
		vector, err = s.embedder.Embed(ctx, fact.Content)
		if err != nil {
			return "", fmt.Errorf("failed to embed fact: %w", err)
		}
	}

	id := fact.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := fact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := s.client.Insert(ctx,
		[]string{id},
		[]string{fact.UserID},
		[]string{fact.Content},
		[]string{strings.Join(fact.Entities, ",")},
		[]string{fact.SourceSessionID},
		[]float32{float32(fact.Confidence)},
		[]int64{createdAt.UnixMilli()},
		[][]float32{vector},
	)
	if err != nil {
		return "", fmt.Errorf("failed to store fact: %w", err)
	}
	return id, nil
}

// StoreBatch embeds the batch in one call where possible and inserts item
// by item so one bad fact does not sink the rest.
func (s *MilvusStore) StoreBatch(ctx context.Context, facts []*models.SemanticFact) []models.StoreResult {
	results := make([]models.StoreResult, len(facts))

	// Embed everything missing a vector up front.
	var missing []int
	var texts []string
	for i, f := range facts {
		if f.Vector == nil {
			missing = append(missing, i)
			texts = append(texts, f.Content)
		}
	}
	if len(texts) > 0 {
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			// Fall through with nil vectors; per-item Store will retry each
			// embedding individually.
			s.log.Warn(fmt.Sprintf("batch embedding failed, falling back to per-fact embedding: %v", err))
		} else {
			for j, idx := range missing {
				facts[idx].Vector = vectors[j]
			}
		}
	}

	for i, f := range facts {
		id, err := s.Store(ctx, f)
		results[i] = models.StoreResult{FactID: id, Err: err}
	}
	return results
}

// Retrieve searches the user's facts by vector similarity.
func (s *MilvusStore) Retrieve(ctx context.Context, userID, query string, k int, threshold float64) ([]models.ScoredFact, error) {
	if userID == "" {
		return nil, fmt.Errorf("retrieve requires a user id")
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	expr := userExpr(userID)
	results, err := s.client.Search(ctx, expr, k, vector, []string{"fact_id", "content", "confidence"})
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	var facts []models.ScoredFact
	for _, sr := range results {
		idCol, _ := sr.Fields.GetColumn("fact_id").(*entity.ColumnVarChar)
		contentCol, _ := sr.Fields.GetColumn("content").(*entity.ColumnVarChar)
		confCol, _ := sr.Fields.GetColumn("confidence").(*entity.ColumnFloat)
		if idCol == nil || contentCol == nil {
			continue
		}

		for i := 0; i < sr.ResultCount; i++ {
			id, err := idCol.ValueByIdx(i)
			if err != nil {
				continue
			}
			content, err := contentCol.ValueByIdx(i)
			if err != nil {
				continue
			}
			fact := models.ScoredFact{
				FactID:  id,
				Content: content,
				Score:   float64(sr.Scores[i]),
			}
			if confCol != nil {
				if conf, err := confCol.ValueByIdx(i); err == nil {
					fact.Confidence = float64(conf)
				}
			}
			facts = append(facts, fact)
		}
	}
	return filterByScore(facts, threshold), nil
}

// filterByScore drops every result scoring under the threshold, keeping the
// original order.
func filterByScore(facts []models.ScoredFact, threshold float64) []models.ScoredFact {
	var kept []models.ScoredFact
	for _, f := range facts {
		if f.Score < threshold {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// DeleteUser removes every fact row of the user.
func (s *MilvusStore) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete requires a user id")
	}
	if err := s.client.DeleteByExpr(ctx, userExpr(userID)); err != nil {
		return fmt.Errorf("failed to delete user facts: %w", err)
	}
	return s.client.FlushCollection(ctx)
}

// userExpr builds the tenancy filter. Quotes in the ID are stripped so a
// crafted user ID cannot break out of the expression.
func userExpr(userID string) string {
	sanitized := strings.NewReplacer(`"`, "", `\`, "").Replace(userID)
	return fmt.Sprintf(`user_id == "%s"`, sanitized)
}
