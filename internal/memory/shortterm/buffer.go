package shortterm

import (
	"sync"

	"mnemos/internal/models"
)

// Buffer holds the rolling short-term window for every live session. It is
// process-local and lost on restart; the durable record of the same
// messages lives in episodic memory.
type Buffer struct {
	maxMessages int
	tokenBudget int

	mu      sync.RWMutex
	windows map[string]*window
}

type window struct {
	mu       sync.Mutex
	messages []models.Message
	tokens   int
}

// New creates a buffer. maxMessages caps the window length per session and
// tokenBudget caps its approximate token total; either bound triggers
// eviction of the oldest messages.
func New(maxMessages, tokenBudget int) *Buffer {
	return &Buffer{
		maxMessages: maxMessages,
		tokenBudget: tokenBudget,
		windows:     make(map[string]*window),
	}
}

// estimateTokens approximates the token count of a message as one token per
// four characters.
func estimateTokens(m models.Message) int {
	return len(m.Content) / 4
}

// Append adds a message to the session window, evicting from the oldest end
// until both bounds hold again.
func (b *Buffer) Append(sessionID string, msg models.Message) {
	w := b.windowFor(sessionID)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.messages = append(w.messages, msg)
	w.tokens += estimateTokens(msg)

	for len(w.messages) > 0 &&
		(len(w.messages) > b.maxMessages || w.tokens > b.tokenBudget) {
		w.tokens -= estimateTokens(w.messages[0])
		w.messages = w.messages[1:]
	}
}

// Window returns a copy of the session's current window in arrival order.
// Unknown sessions yield an empty slice.
func (b *Buffer) Window(sessionID string) []models.Message {
	b.mu.RLock()
	w, ok := b.windows[sessionID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]models.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// TokenEstimate returns the approximate token total of the session window.
func (b *Buffer) TokenEstimate(sessionID string) int {
	b.mu.RLock()
	w, ok := b.windows[sessionID]
	b.mu.RUnlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tokens
}

// Reset drops the session window. Resetting an unknown session is a no-op.
func (b *Buffer) Reset(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, sessionID)
}

func (b *Buffer) windowFor(sessionID string) *window {
	b.mu.RLock()
	w, ok := b.windows[sessionID]
	b.mu.RUnlock()
	if ok {
		return w
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok = b.windows[sessionID]; ok {
		return w
	}
	w = &window{}
	b.windows[sessionID] = w
	return w
}
