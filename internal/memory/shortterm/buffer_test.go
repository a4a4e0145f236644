package shortterm

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"mnemos/internal/models"
)

func msg(content string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content, Timestamp: time.Now()}
}

func TestAppendAndWindowOrder(t *testing.T) {
	b := New(10, 1000)

	b.Append("s1", msg("first"))
	b.Append("s1", msg("second"))
	b.Append("s1", msg("third"))

	w := b.Window("s1")
	if len(w) != 3 {
		t.Fatalf("len(window) = %d, want 3", len(w))
	}
	if w[0].Content != "first" || w[2].Content != "third" {
		t.Fatalf("window out of order: %v", w)
	}
}

func TestMessageCapEvictsOldest(t *testing.T) {
	b := New(2, 100000)

	for i := 0; i < 5; i++ {
		b.Append("s1", msg(fmt.Sprintf("msg-%d", i)))
	}

	w := b.Window("s1")
	if len(w) != 2 {
		t.Fatalf("len(window) = %d, want 2", len(w))
	}
	if w[0].Content != "msg-3" || w[1].Content != "msg-4" {
		t.Fatalf("wrong survivors: %v", w)
	}
}

func TestTokenBudgetEvictsOldest(t *testing.T) {
	// 40 chars is roughly 10 tokens per message.
	b := New(100, 25)
	long := strings.Repeat("x", 40)

	b.Append("s1", msg(long))
	b.Append("s1", msg(long))
	b.Append("s1", msg(long))

	w := b.Window("s1")
	if len(w) != 2 {
		t.Fatalf("len(window) = %d, want 2 after token eviction", len(w))
	}
	if got := b.TokenEstimate("s1"); got > 25 {
		t.Fatalf("TokenEstimate = %d, want <= 25", got)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	b := New(10, 1000)

	b.Append("s1", msg("one"))
	b.Append("s2", msg("two"))

	if w := b.Window("s1"); len(w) != 1 || w[0].Content != "one" {
		t.Fatalf("s1 window = %v", w)
	}
	if w := b.Window("s2"); len(w) != 1 || w[0].Content != "two" {
		t.Fatalf("s2 window = %v", w)
	}
}

func TestResetDropsWindow(t *testing.T) {
	b := New(10, 1000)

	b.Append("s1", msg("one"))
	b.Reset("s1")

	if w := b.Window("s1"); len(w) != 0 {
		t.Fatalf("window after reset = %v, want empty", w)
	}
	// Resetting again must not panic or error.
	b.Reset("s1")
}

func TestWindowReturnsCopy(t *testing.T) {
	b := New(10, 1000)
	b.Append("s1", msg("one"))

	w := b.Window("s1")
	w[0].Content = "mutated"

	if got := b.Window("s1")[0].Content; got != "one" {
		t.Fatalf("internal window mutated: %q", got)
	}
}
