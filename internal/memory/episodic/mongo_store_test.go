package episodic

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"mnemos/internal/models"
)

func TestBuildFilterAlwaysScopesUser(t *testing.T) {
	query := buildFilter("u1", models.EventFilter{})

	if query["user_id"] != "u1" {
		t.Fatalf("user_id = %v, want u1", query["user_id"])
	}
	if len(query) != 1 {
		t.Fatalf("empty filter produced extra constraints: %v", query)
	}
}

func TestBuildFilterTranslatesFields(t *testing.T) {
	f := models.EventFilter{
		SessionID:      "s1",
		ConversationID: "c1",
		Type:           models.EventToolUse,
	}
	query := buildFilter("u1", f)

	if query["session_id"] != "s1" {
		t.Fatalf("session_id = %v", query["session_id"])
	}
	if query["conversation_id"] != "c1" {
		t.Fatalf("conversation_id = %v", query["conversation_id"])
	}
	if query["event_type"] != models.EventToolUse {
		t.Fatalf("event_type = %v", query["event_type"])
	}
}

func TestBuildFilterTimeRange(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	query := buildFilter("u1", models.EventFilter{Start: start, End: end})

	timeRange, ok := query["created_at"].(bson.M)
	if !ok {
		t.Fatalf("created_at constraint missing: %v", query)
	}
	if timeRange["$gte"] != start || timeRange["$lte"] != end {
		t.Fatalf("time range = %v", timeRange)
	}

	// Open-ended range only sets the bound that was given.
	query = buildFilter("u1", models.EventFilter{Start: start})
	timeRange = query["created_at"].(bson.M)
	if _, hasEnd := timeRange["$lte"]; hasEnd {
		t.Fatalf("unexpected end bound: %v", timeRange)
	}
}
