package embedding

import (
	"context"
	"testing"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedAvoidsRepeatCalls(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCached(inner, 10)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}

	ctx := context.Background()
	if _, err := cached.Embed(ctx, "hello"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := cached.Embed(ctx, "hello"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedEmbedBatchOnlyFetchesMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached, _ := NewCached(inner, 10)
	ctx := context.Background()

	cached.Embed(ctx, "a")

	vecs, err := cached.EmbedBatch(ctx, []string{"a", "bb"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("len(vecs) = %d, want 2", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
	// One call for the initial Embed, one for the batch miss.
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
}
