package procedural

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"mnemos/internal/models"
)

func TestBuildPatternFilterAlwaysScopesUser(t *testing.T) {
	query := buildPatternFilter("u1", models.PatternQuery{})

	if query["user_id"] != "u1" {
		t.Fatalf("user_id = %v, want u1", query["user_id"])
	}
	if len(query) != 1 {
		t.Fatalf("empty query produced extra constraints: %v", query)
	}
}

func TestBuildPatternFilterFields(t *testing.T) {
	q := models.PatternQuery{
		ToolName:     "web_search",
		QueryContext: "flight prices",
		SuccessOnly:  true,
	}
	query := buildPatternFilter("u1", q)

	if query["context.tool"] != "web_search" {
		t.Fatalf("context.tool = %v", query["context.tool"])
	}
	if query["success"] != true {
		t.Fatalf("success = %v", query["success"])
	}

	regex, ok := query["context.query_signature"].(bson.M)
	if !ok {
		t.Fatalf("query_signature constraint missing: %v", query)
	}
	if regex["$options"] != "i" {
		t.Fatalf("regex options = %v, want case-insensitive", regex["$options"])
	}
}

func TestBuildPatternFilterEscapesRegex(t *testing.T) {
	query := buildPatternFilter("u1", models.PatternQuery{
		ToolName:     "web_search",
		QueryContext: "price (USD)?",
	})

	regex := query["context.query_signature"].(bson.M)
	pattern := regex["$regex"].(string)
	if pattern == "price (USD)?" {
		t.Fatalf("regex metacharacters were not escaped: %q", pattern)
	}
}

// A lone query context must not become a mandatory conjunct: the new turn's
// query is almost never a substring of an earlier signature, so recall would
// come back empty for queries like "appointment time" against a stored
// "I prefer morning appointments".
func TestBuildPatternFilterQueryContextIsBestEffort(t *testing.T) {
	query := buildPatternFilter("u1", models.PatternQuery{QueryContext: "appointment time"})

	if _, ok := query["context.query_signature"]; ok {
		t.Fatalf("query context became a mandatory constraint: %v", query)
	}
	or, ok := query["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("want a two-branch $or, got %v", query)
	}

	var hasToolBranch bool
	for _, branch := range or {
		if b, ok := branch.(bson.M); ok {
			if _, ok := b["context.tool"]; ok {
				hasToolBranch = true
			}
		}
	}
	if !hasToolBranch {
		t.Fatalf("$or lacks the tool-exists branch: %v", or)
	}
}
