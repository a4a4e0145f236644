package procedural

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mnemos/internal/models"
)

const collectionName = "procedural_patterns"

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a store over the given database and ensures its
// indexes exist.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{collection: db.Collection(collectionName)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "context.tool", Value: 1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create procedural indexes: %w", err)
	}
	return nil
}

// StorePattern inserts one pattern. ID and CreatedAt are stamped when
// missing.
func (s *MongoStore) StorePattern(ctx context.Context, pattern *models.ProceduralPattern) (string, error) {
	if pattern.UserID == "" {
		return "", fmt.Errorf("pattern has no user id")
	}
	if pattern.ID == "" {
		pattern.ID = uuid.New().String()
	}
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = time.Now()
	}

	if _, err := s.collection.InsertOne(ctx, pattern); err != nil {
		return "", fmt.Errorf("failed to store pattern: %w", err)
	}
	return pattern.ID, nil
}

// FindPatterns queries the user's patterns most recent first.
func (s *MongoStore) FindPatterns(ctx context.Context, userID string, query models.PatternQuery, limit int) ([]models.ProceduralPattern, error) {
	if userID == "" {
		return nil, fmt.Errorf("find requires a user id")
	}

	mongoQuery := buildPatternFilter(userID, query)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, mongoQuery, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer cursor.Close(ctx)

	var patterns []models.ProceduralPattern
	if err := cursor.All(ctx, &patterns); err != nil {
		return nil, fmt.Errorf("failed to decode patterns: %w", err)
	}
	return patterns, nil
}

// EraseUser removes the user's entire pattern set.
func (s *MongoStore) EraseUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("erase requires a user id")
	}
	res, err := s.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to erase user patterns: %w", err)
	}
	return res.DeletedCount, nil
}

// buildPatternFilter translates a PatternQuery into a Mongo query. The user
// filter is always present; the query context matches as a case-insensitive
// substring with regex metacharacters escaped. A query context without a
// tool name is best effort: a signature match qualifies, but so does any
// pattern that names a tool, with recency ordering doing the rest.
func buildPatternFilter(userID string, query models.PatternQuery) bson.M {
	mongoQuery := bson.M{"user_id": userID}

	signatureMatch := bson.M{
		"$regex":   regexp.QuoteMeta(query.QueryContext),
		"$options": "i",
	}
	switch {
	case query.ToolName != "" && query.QueryContext != "":
		mongoQuery["context.tool"] = query.ToolName
		mongoQuery["context.query_signature"] = signatureMatch
	case query.ToolName != "":
		mongoQuery["context.tool"] = query.ToolName
	case query.QueryContext != "":
		mongoQuery["$or"] = bson.A{
			bson.M{"context.query_signature": signatureMatch},
			bson.M{"context.tool": bson.M{"$exists": true}},
		}
	}
	if query.SuccessOnly {
		mongoQuery["success"] = true
	}
	return mongoQuery
}
