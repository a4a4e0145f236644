package semantic

import (
	"strings"
	"testing"

	"mnemos/internal/models"
)

func scored(id string, score float64) models.ScoredFact {
	return models.ScoredFact{FactID: id, Content: "fact " + id, Score: score}
}

func TestFilterByScoreDropsBelowThreshold(t *testing.T) {
	facts := []models.ScoredFact{
		scored("f1", 0.9),
		scored("f2", 0.74),
		scored("f3", 0.75),
	}

	kept := filterByScore(facts, 0.75)

	if len(kept) != 2 {
		t.Fatalf("kept %d facts, want 2", len(kept))
	}
	for _, f := range kept {
		if f.Score < 0.75 {
			t.Fatalf("fact %s scored %v, below threshold", f.FactID, f.Score)
		}
	}
	if kept[0].FactID != "f1" || kept[1].FactID != "f3" {
		t.Fatalf("order not preserved: %v", kept)
	}
}

// A threshold above the maximum possible score must always yield nothing.
func TestFilterByScoreImpossibleThreshold(t *testing.T) {
	facts := []models.ScoredFact{scored("f1", 1.0), scored("f2", 0.99)}

	if kept := filterByScore(facts, 1.1); len(kept) != 0 {
		t.Fatalf("kept %v for threshold 1.1, want none", kept)
	}
}

func TestFilterByScoreEmptyInput(t *testing.T) {
	if kept := filterByScore(nil, 0.5); len(kept) != 0 {
		t.Fatalf("kept %v for empty input", kept)
	}
}

func TestUserExprSanitizesID(t *testing.T) {
	expr := userExpr(`u1" || user_id != "`)

	if strings.Count(expr, `"`) != 2 {
		t.Fatalf("crafted user ID escaped the expression: %s", expr)
	}
	if !strings.HasPrefix(expr, `user_id == "`) {
		t.Fatalf("unexpected expression shape: %s", expr)
	}
}
