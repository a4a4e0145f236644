package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"mnemos/internal/models"
)

type fakeLLM struct {
	output string
	err    error
	calls  int
}

func (f *fakeLLM) GenerateContent(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.GenerateResponse{Text: f.output}, nil
}

func window(contents ...string) []models.Message {
	msgs := make([]models.Message, len(contents))
	for i, c := range contents {
		msgs[i] = models.Message{Role: models.RoleUser, Content: c, Timestamp: time.Now()}
	}
	return msgs
}

func newExtractor(model *fakeLLM) *LLMExtractor {
	return NewLLMExtractor(model, nil, nil, 5*time.Second)
}

func TestExtractParsesFacts(t *testing.T) {
	model := &fakeLLM{output: `[{"fact": "The user prefers dark roast coffee", "entities": ["coffee"], "confidence": 0.9}]`}
	e := newExtractor(model)

	facts, err := e.Extract(context.Background(), window("I always drink dark roast"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("len(facts) = %d, want 1", len(facts))
	}
	if facts[0].Content != "The user prefers dark roast coffee" {
		t.Fatalf("unexpected fact: %q", facts[0].Content)
	}
}

func TestExtractStripsMarkdownFences(t *testing.T) {
	model := &fakeLLM{output: "```json\n[{\"fact\": \"The user works as a nurse\", \"confidence\": 0.9}]\n```"}
	e := newExtractor(model)

	facts, err := e.Extract(context.Background(), window("I work as a nurse"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("len(facts) = %d, want 1", len(facts))
	}
}

func TestExtractMalformedOutputYieldsNoFacts(t *testing.T) {
	model := &fakeLLM{output: "Sure! Here are the facts I found: the user likes coffee."}
	e := newExtractor(model)

	facts, err := e.Extract(context.Background(), window("hello"))
	if err != nil {
		t.Fatalf("malformed output must not be an error, got %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("len(facts) = %d, want 0", len(facts))
	}
}

func TestExtractProviderErrorPropagates(t *testing.T) {
	model := &fakeLLM{err: errors.New("provider down")}
	e := newExtractor(model)

	if _, err := e.Extract(context.Background(), window("hello")); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestExtractEmptyWindowSkipsCall(t *testing.T) {
	model := &fakeLLM{}
	e := newExtractor(model)

	facts, err := e.Extract(context.Background(), nil)
	if err != nil || facts != nil {
		t.Fatalf("empty window: facts=%v err=%v", facts, err)
	}
	if model.calls != 0 {
		t.Fatalf("model called %d times for empty window", model.calls)
	}
}

func TestValidationDropsBadCandidates(t *testing.T) {
	model := &fakeLLM{output: `[
		{"fact": "short", "confidence": 0.9},
		{"fact": "The user said something in this conversation", "confidence": 0.9},
		{"fact": "The user lives in Lisbon", "confidence": 0.1},
		{"fact": "The user lives in Lisbon", "confidence": 0.9}
	]`}
	e := newExtractor(model)

	facts, err := e.Extract(context.Background(), window("I live in Lisbon"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("len(facts) = %d, want 1 after validation", len(facts))
	}
}

func TestConfidenceHeuristics(t *testing.T) {
	model := &fakeLLM{output: `[
		{"fact": "I think the user might enjoy jazz music", "confidence": 0.95},
		{"fact": "I am a software engineer in Berlin", "confidence": 0.5}
	]`}
	e := newExtractor(model)

	facts, err := e.Extract(context.Background(), window("chatter"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("len(facts) = %d, want 2", len(facts))
	}
	if facts[0].Confidence >= 0.8 {
		t.Fatalf("hedged confidence = %v, want below 0.8", facts[0].Confidence)
	}
	if facts[1].Confidence <= 0.85 {
		t.Fatalf("first-person confidence = %v, want above 0.85", facts[1].Confidence)
	}
}
