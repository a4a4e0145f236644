package episodic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mnemos/internal/models"
)

const collectionName = "episodic_events"

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
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "session_id", Value: 1}, {Key: "seq", Value: 1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create episodic indexes: %w", err)
	}
	return nil
}

// Append inserts one event. ID and CreatedAt are stamped when missing.
func (s *MongoStore) Append(ctx context.Context, event *models.EpisodicEvent) (string, error) {
	if event.UserID == "" {
		return "", fmt.Errorf("event has no user id")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if _, err := s.collection.InsertOne(ctx, event); err != nil {
		return "", fmt.Errorf("failed to append episodic event: %w", err)
	}
	return event.ID, nil
}

// Recent queries the user's log most recent first.
func (s *MongoStore) Recent(ctx context.Context, userID string, limit int, filter models.EventFilter) ([]models.EpisodicEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("recent requires a user id")
	}

	query := buildFilter(userID, filter)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodic events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.EpisodicEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode episodic events: %w", err)
	}
	return events, nil
}

// Replay returns the session's events in sequence order.
func (s *MongoStore) Replay(ctx context.Context, userID, sessionID string) ([]models.EpisodicEvent, error) {
	if userID == "" || sessionID == "" {
		return nil, fmt.Errorf("replay requires user id and session id")
	}

	query := bson.M{"user_id": userID, "session_id": sessionID}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to replay session: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.EpisodicEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode session events: %w", err)
	}
	return events, nil
}

// EraseUser removes the user's entire log.
func (s *MongoStore) EraseUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("erase requires a user id")
	}
	res, err := s.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to erase user events: %w", err)
	}
	return res.DeletedCount, nil
}

// buildFilter translates an EventFilter into a Mongo query. The user filter
// is always present.
func buildFilter(userID string, filter models.EventFilter) bson.M {
	query := bson.M{"user_id": userID}

	if filter.SessionID != "" {
		query["session_id"] = filter.SessionID
	}
	if filter.ConversationID != "" {
		query["conversation_id"] = filter.ConversationID
	}
	if filter.Type != "" {
		query["event_type"] = filter.Type
	}

	timeRange := bson.M{}
	if !filter.Start.IsZero() {
		timeRange["$gte"] = filter.Start
	}
	if !filter.End.IsZero() {
		timeRange["$lte"] = filter.End
	}
	if len(timeRange) > 0 {
		query["created_at"] = timeRange
	}
	return query
}
