package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mnemos/internal/config"
	"mnemos/internal/memory/extractor"
	"mnemos/internal/memory/shortterm"
	"mnemos/internal/models"
)

type fakeSemantic struct {
	mu      sync.Mutex
	stored  []*models.SemanticFact
	facts   []models.ScoredFact
	err     error
	deleted []string
}

func (f *fakeSemantic) Store(ctx context.Context, fact *models.SemanticFact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.stored = append(f.stored, fact)
	return "fact-1", nil
}

func (f *fakeSemantic) StoreBatch(ctx context.Context, facts []*models.SemanticFact) []models.StoreResult {
	results := make([]models.StoreResult, len(facts))
	for i, fact := range facts {
		id, err := f.Store(ctx, fact)
		results[i] = models.StoreResult{FactID: id, Err: err}
	}
	return results
}

func (f *fakeSemantic) Retrieve(ctx context.Context, userID, query string, k int, threshold float64) ([]models.ScoredFact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.facts, nil
}

func (f *fakeSemantic) DeleteUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, userID)
	return nil
}

type fakeEpisodic struct {
	mu     sync.Mutex
	events []models.EpisodicEvent
	err    error
	erased []string
}

func (f *fakeEpisodic) Append(ctx context.Context, event *models.EpisodicEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, *event)
	return "evt", nil
}

func (f *fakeEpisodic) Recent(ctx context.Context, userID string, limit int, filter models.EventFilter) ([]models.EpisodicEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func (f *fakeEpisodic) Replay(ctx context.Context, userID, sessionID string) ([]models.EpisodicEvent, error) {
	return f.Recent(ctx, userID, 0, models.EventFilter{})
}

func (f *fakeEpisodic) EraseUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.erased = append(f.erased, userID)
	n := int64(len(f.events))
	f.events = nil
	return n, nil
}

type fakeProcedural struct {
	mu        sync.Mutex
	patterns  []models.ProceduralPattern
	err       error
	erased    []string
	lastQuery models.PatternQuery
}

func (f *fakeProcedural) StorePattern(ctx context.Context, pattern *models.ProceduralPattern) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.patterns = append(f.patterns, *pattern)
	return "pat", nil
}

func (f *fakeProcedural) FindPatterns(ctx context.Context, userID string, query models.PatternQuery, limit int) ([]models.ProceduralPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.patterns, nil
}

func (f *fakeProcedural) EraseUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.erased = append(f.erased, userID)
	return int64(len(f.patterns)), nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	facts []models.ExtractedFact
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, window []models.Message) ([]models.ExtractedFact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.facts, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSessions struct {
	mu    sync.Mutex
	turns map[string]int64
	seqs  map[string]int64
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{turns: map[string]int64{}, seqs: map[string]int64{}}
}

func (f *fakeSessions) IncrementTurn(ctx context.Context, sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[sessionID]++
	return f.turns[sessionID], nil
}

func (f *fakeSessions) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seqs[sessionID]++
	return f.seqs[sessionID], nil
}

func (f *fakeSessions) Touch(ctx context.Context, sessionID string) error { return nil }

func (f *fakeSessions) ResetTurns(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.turns, sessionID)
	return nil
}

func testConfig() config.MemoryConfig {
	return config.MemoryConfig{
		WindowMaxMessages:   40,
		WindowTokenBudget:   4000,
		ExtractEveryTurns:   2,
		SemanticTopK:        5,
		EpisodicLimit:       10,
		ProceduralLimit:     5,
		SimilarityThreshold: 0.5,
	}
}

func newTestManager(sem *fakeSemantic, epi *fakeEpisodic, proc *fakeProcedural, ext extractor.Extractor) *Manager {
	cfg := testConfig()
	buffer := shortterm.New(cfg.WindowMaxMessages, cfg.WindowTokenBudget)
	return New(cfg, buffer, sem, epi, proc, ext, newFakeSessions(), Options{})
}

func userMsg(content string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content, Timestamp: time.Now()}
}

func assistantMsg(content string) models.Message {
	return models.Message{Role: models.RoleAssistant, Content: content, Timestamp: time.Now()}
}

func TestGetContextFusesAllLegs(t *testing.T) {
	sem := &fakeSemantic{facts: []models.ScoredFact{{FactID: "f1", Content: "likes jazz", Score: 0.9}}}
	epi := &fakeEpisodic{events: []models.EpisodicEvent{{ID: "e1", UserID: "u1"}}}
	proc := &fakeProcedural{patterns: []models.ProceduralPattern{{ID: "p1", UserID: "u1"}}}
	m := newTestManager(sem, epi, proc, &fakeExtractor{})

	fused := m.GetContext(context.Background(), "u1", "s1", "music")

	if len(fused.Semantic) != 1 || len(fused.Episodic) != 1 || len(fused.Procedural) != 1 {
		t.Fatalf("fused = %+v, want one entry per leg", fused)
	}
}

func TestGetContextDegradesWhenOneLegFails(t *testing.T) {
	sem := &fakeSemantic{err: errors.New("milvus down")}
	epi := &fakeEpisodic{events: []models.EpisodicEvent{{ID: "e1"}}}
	proc := &fakeProcedural{patterns: []models.ProceduralPattern{{ID: "p1"}}}
	m := newTestManager(sem, epi, proc, &fakeExtractor{})

	fused := m.GetContext(context.Background(), "u1", "s1", "music")

	if len(fused.Semantic) != 0 {
		t.Fatalf("semantic leg should be empty on failure, got %v", fused.Semantic)
	}
	if len(fused.Episodic) != 1 || len(fused.Procedural) != 1 {
		t.Fatalf("healthy legs should still return, fused = %+v", fused)
	}
}

func TestRecordTurnAppendsWindowAndEvents(t *testing.T) {
	sem := &fakeSemantic{}
	epi := &fakeEpisodic{}
	proc := &fakeProcedural{}
	m := newTestManager(sem, epi, proc, &fakeExtractor{})

	m.RecordTurn(context.Background(), "u1", "s1", "c1", userMsg("hello"), assistantMsg("hi"), nil)

	if w := m.Window("s1"); len(w) != 2 {
		t.Fatalf("window length = %d, want 2", len(w))
	}
	if len(epi.events) != 2 {
		t.Fatalf("episodic events = %d, want 2", len(epi.events))
	}
	if epi.events[0].Seq >= epi.events[1].Seq {
		t.Fatalf("events not sequenced: %d, %d", epi.events[0].Seq, epi.events[1].Seq)
	}
}

func TestRecordTurnStoresToolPatterns(t *testing.T) {
	proc := &fakeProcedural{}
	epi := &fakeEpisodic{}
	m := newTestManager(&fakeSemantic{}, epi, proc, &fakeExtractor{})

	tools := []models.ToolOutcome{
		{Tool: "web_search", Success: true, LatencyMs: 120},
		{Tool: "calculator", Success: false},
	}
	m.RecordTurn(context.Background(), "u1", "s1", "c1", userMsg("find flights"), assistantMsg("done"), tools)

	if len(proc.patterns) != 2 {
		t.Fatalf("patterns = %d, want one per tool outcome", len(proc.patterns))
	}
	if proc.patterns[0].Context.Tool != "web_search" || !proc.patterns[0].Success {
		t.Fatalf("first pattern = %+v, want successful web_search", proc.patterns[0])
	}
	if proc.patterns[1].Context.Tool != "calculator" || proc.patterns[1].Success {
		t.Fatalf("second pattern = %+v, want failed calculator", proc.patterns[1])
	}
	// Both tool invocations still land in the episodic log.
	toolEvents := 0
	for _, e := range epi.events {
		if e.Type == models.EventToolUse {
			toolEvents++
		}
	}
	if toolEvents != 2 {
		t.Fatalf("tool events = %d, want 2", toolEvents)
	}
}

// Failed patterns are kept for later analysis but must never surface in the
// fused prompt context.
func TestGetContextRequestsOnlySuccessfulPatterns(t *testing.T) {
	proc := &fakeProcedural{}
	m := newTestManager(&fakeSemantic{}, &fakeEpisodic{}, proc, &fakeExtractor{})

	m.GetContext(context.Background(), "u1", "s1", "appointment time")

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if !proc.lastQuery.SuccessOnly {
		t.Fatalf("fused pattern query = %+v, want SuccessOnly", proc.lastQuery)
	}
	if proc.lastQuery.QueryContext != "appointment time" {
		t.Fatalf("fused pattern query context = %q", proc.lastQuery.QueryContext)
	}
}

func TestRecordTurnNeverPanicsOnStoreFailure(t *testing.T) {
	epi := &fakeEpisodic{err: errors.New("mongo down")}
	m := newTestManager(&fakeSemantic{}, epi, &fakeProcedural{}, &fakeExtractor{})

	// Must not panic and must not surface the error.
	m.RecordTurn(context.Background(), "u1", "s1", "c1", userMsg("hello"), assistantMsg("hi"), nil)

	if w := m.Window("s1"); len(w) != 2 {
		t.Fatalf("short-term window must still advance, got %d messages", len(w))
	}
}

func TestExtractionTriggersEveryKTurns(t *testing.T) {
	ext := &fakeExtractor{facts: []models.ExtractedFact{{Content: "The user lives in Lisbon", Confidence: 0.9}}}
	sem := &fakeSemantic{}
	m := newTestManager(sem, &fakeEpisodic{}, &fakeProcedural{}, ext)

	ctx := context.Background()
	// K is 2: first turn no trigger, second turn triggers.
	m.RecordTurn(ctx, "u1", "s1", "c1", userMsg("a"), assistantMsg("b"), nil)
	if ext.callCount() != 0 {
		t.Fatalf("extractor ran after %d turns, want trigger at K=2", 1)
	}
	m.RecordTurn(ctx, "u1", "s1", "c1", userMsg("I live in Lisbon"), assistantMsg("noted"), nil)
	m.Close()

	if ext.callCount() != 1 {
		t.Fatalf("extractor calls = %d, want 1", ext.callCount())
	}
	sem.mu.Lock()
	defer sem.mu.Unlock()
	if len(sem.stored) != 1 {
		t.Fatalf("stored facts = %d, want 1", len(sem.stored))
	}
	if sem.stored[0].SourceSessionID != "s1" {
		t.Fatalf("fact source session = %q", sem.stored[0].SourceSessionID)
	}
}

// blockingExtractor holds its Extract call open until released, standing in
// for an arbitrarily slow provider.
type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExtractor) Extract(ctx context.Context, window []models.Message) ([]models.ExtractedFact, error) {
	close(b.started)
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRecordTurnReturnsWhileExtractionRuns(t *testing.T) {
	ext := &blockingExtractor{started: make(chan struct{}), release: make(chan struct{})}
	m := newTestManager(&fakeSemantic{}, &fakeEpisodic{}, &fakeProcedural{}, ext)

	returned := make(chan struct{})
	go func() {
		ctx := context.Background()
		// K is 2: the second turn triggers extraction.
		m.RecordTurn(ctx, "u1", "s1", "c1", userMsg("a"), assistantMsg("b"), nil)
		m.RecordTurn(ctx, "u1", "s1", "c1", userMsg("c"), assistantMsg("d"), nil)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordTurn blocked on the extraction call")
	}
	select {
	case <-ext.started:
	case <-time.After(2 * time.Second):
		t.Fatal("extraction never started in the background")
	}

	close(ext.release)
	m.Close()
}

func TestResetSessionIsIdempotent(t *testing.T) {
	m := newTestManager(&fakeSemantic{}, &fakeEpisodic{}, &fakeProcedural{}, &fakeExtractor{})
	ctx := context.Background()

	m.RecordTurn(ctx, "u1", "s1", "c1", userMsg("hello"), assistantMsg("hi"), nil)

	if err := m.ResetSession(ctx, "s1"); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	if w := m.Window("s1"); len(w) != 0 {
		t.Fatalf("window after reset = %d messages", len(w))
	}
	if err := m.ResetSession(ctx, "s1"); err != nil {
		t.Fatalf("second ResetSession: %v", err)
	}
	if err := m.ResetSession(ctx, "never-existed"); err != nil {
		t.Fatalf("ResetSession unknown: %v", err)
	}
}

func TestEraseUserHitsEveryStore(t *testing.T) {
	sem := &fakeSemantic{}
	epi := &fakeEpisodic{events: []models.EpisodicEvent{{ID: "e1", UserID: "u1"}}}
	proc := &fakeProcedural{}
	m := newTestManager(sem, epi, proc, &fakeExtractor{})

	if err := m.EraseUser(context.Background(), "u1"); err != nil {
		t.Fatalf("EraseUser: %v", err)
	}
	if len(sem.deleted) != 1 || len(epi.erased) != 1 || len(proc.erased) != 1 {
		t.Fatal("erasure did not reach every store")
	}
}

func TestEraseUserContinuesPastFailures(t *testing.T) {
	sem := &fakeSemantic{err: errors.New("milvus down")}
	epi := &fakeEpisodic{}
	proc := &fakeProcedural{}
	m := newTestManager(sem, epi, proc, &fakeExtractor{})

	err := m.EraseUser(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected erasure error to be reported")
	}
	// The remaining stores must still have been erased.
	if len(epi.erased) != 1 || len(proc.erased) != 1 {
		t.Fatal("failure in one store must not stop the others")
	}
}
