package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mnemos/internal/config"
	"mnemos/internal/memory/episodic"
	"mnemos/internal/memory/extractor"
	"mnemos/internal/memory/procedural"
	"mnemos/internal/memory/semantic"
	"mnemos/internal/memory/shortterm"
	"mnemos/internal/models"
	"mnemos/pkg/logger"
)

// SessionCounter is the slice of the session registry the manager needs.
type SessionCounter interface {
	IncrementTurn(ctx context.Context, sessionID string) (int64, error)
	NextSeq(ctx context.Context, sessionID string) (int64, error)
	Touch(ctx context.Context, sessionID string) error
	ResetTurns(ctx context.Context, sessionID string) error
}

// JobQueue hands extraction jobs to the async pipeline. A nil queue makes
// the manager run extraction in-process instead.
type JobQueue interface {
	Publish(ctx context.Context, job models.ExtractionJob) error
}

// EventArchiver snapshots a user's event log before erasure.
type EventArchiver interface {
	Archive(ctx context.Context, userID string, events []models.EpisodicEvent) (string, error)
}

// Manager is the single entry point to the memory subsystem. Agent code
// talks to it and never to the individual stores.
type Manager struct {
	cfg config.MemoryConfig

	buffer     *shortterm.Buffer
	semantic   semantic.Store
	episodic   episodic.Store
	procedural procedural.Store
	extractor  extractor.Extractor
	sessions   SessionCounter

	// Optional collaborators. Nil disables the feature.
	queue     JobQueue
	relations semantic.RelationStore
	archiver  EventArchiver

	wg  sync.WaitGroup
	log *logger.Logger
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	Queue     JobQueue
	Relations semantic.RelationStore
	Archiver  EventArchiver
}

// New assembles a manager over the given stores.
func New(cfg config.MemoryConfig, buffer *shortterm.Buffer, sem semantic.Store, epi episodic.Store, proc procedural.Store, ext extractor.Extractor, sessions SessionCounter, opts Options) *Manager {
	return &Manager{
		cfg:        cfg,
		buffer:     buffer,
		semantic:   sem,
		episodic:   epi,
		procedural: proc,
		extractor:  ext,
		sessions:   sessions,
		queue:      opts.Queue,
		relations:  opts.Relations,
		archiver:   opts.Archiver,
		log:        logger.New("memory-manager", "", ""),
	}
}

// Window returns the session's current short-term window.
func (m *Manager) Window(sessionID string) []models.Message {
	return m.buffer.Window(sessionID)
}

// GetContext runs the three recall legs in parallel and fuses the results.
// Each leg has its own timeout and one retry; a leg that still fails comes
// back empty rather than sinking the whole call.
func (m *Manager) GetContext(ctx context.Context, userID, sessionID, query string) *models.FusedContext {
	fused := &models.FusedContext{}
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		facts, err := withRetry(ctx, m.cfg.ExternalTimeout(), func(legCtx context.Context) ([]models.ScoredFact, error) {
			return m.semantic.Retrieve(legCtx, userID, query, m.cfg.SemanticTopK, m.cfg.SimilarityThreshold)
		})
		if err != nil {
			m.legFailed(userID, "semantic", err)
			return
		}
		fused.Semantic = facts
	}()

	go func() {
		defer wg.Done()
		events, err := withRetry(ctx, m.cfg.ExternalTimeout(), func(legCtx context.Context) ([]models.EpisodicEvent, error) {
			return m.episodic.Recent(legCtx, userID, m.cfg.EpisodicLimit, models.EventFilter{})
		})
		if err != nil {
			m.legFailed(userID, "episodic", err)
			return
		}
		fused.Episodic = events
	}()

	go func() {
		defer wg.Done()
		patterns, err := withRetry(ctx, m.cfg.ExternalTimeout(), func(legCtx context.Context) ([]models.ProceduralPattern, error) {
			// Fused recall surfaces only strategies that worked.
			return m.procedural.FindPatterns(legCtx, userID, models.PatternQuery{QueryContext: query, SuccessOnly: true}, m.cfg.ProceduralLimit)
		})
		if err != nil {
			m.legFailed(userID, "procedural", err)
			return
		}
		fused.Procedural = patterns
	}()

	wg.Wait()
	return fused
}

func (m *Manager) legFailed(userID, leg string, err error) {
	m.log.WithField("user_id", userID).
		WithError(models.ErrorInfo{Message: err.Error(), Kind: leg + "_recall"}).
		Warn("recall leg failed, returning empty results for it")
}

// withRetry runs fn with a per-attempt timeout and retries once.
func withRetry[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		legCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := fn(legCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return zero, lastErr
}

// RecordTurn folds one completed turn into memory: the window, the episodic
// log, tool patterns and the periodic extraction trigger. Recording is best
// effort; failures are logged and never surface to the conversation loop.
func (m *Manager) RecordTurn(ctx context.Context, userID, sessionID, conversationID string, userMsg, assistantMsg models.Message, tools []models.ToolOutcome) {
	m.buffer.Append(sessionID, userMsg)
	m.buffer.Append(sessionID, assistantMsg)

	m.appendEvent(ctx, userID, sessionID, conversationID, models.EventMessage, userMsg.Content, models.EventMetadata{Role: userMsg.Role})
	m.appendEvent(ctx, userID, sessionID, conversationID, models.EventMessage, assistantMsg.Content, models.EventMetadata{Role: assistantMsg.Role})

	for _, tool := range tools {
		success := tool.Success
		m.appendEvent(ctx, userID, sessionID, conversationID, models.EventToolUse, tool.Output, models.EventMetadata{
			Role:      models.RoleTool,
			ToolUsed:  tool.Tool,
			Success:   &success,
			LatencyMs: tool.LatencyMs,
		})

		outcome := "succeeded"
		if !tool.Success {
			outcome = "failed"
		}
		pattern := &models.ProceduralPattern{
			UserID:      userID,
			Type:        "tool_usage",
			Description: fmt.Sprintf("%s %s for: %s", tool.Tool, outcome, truncate(userMsg.Content, 120)),
			Context: models.PatternContext{
				Tool:           tool.Tool,
				QuerySignature: truncate(userMsg.Content, 200),
			},
			Success: tool.Success,
		}
		if _, err := m.procedural.StorePattern(ctx, pattern); err != nil {
			m.log.WithField("user_id", userID).
				WithError(models.ErrorInfo{Message: err.Error(), Kind: "pattern_store"}).
				Warn("failed to store tool pattern")
		}
	}

	if err := m.sessions.Touch(ctx, sessionID); err != nil {
		m.log.WithField("session_id", sessionID).Debug("failed to touch session: " + err.Error())
	}

	turns, err := m.sessions.IncrementTurn(ctx, sessionID)
	if err != nil {
		m.log.WithField("session_id", sessionID).
			WithError(models.ErrorInfo{Message: err.Error(), Kind: "turn_counter"}).
			Warn("failed to advance turn counter, skipping extraction trigger")
		return
	}

	if turns%int64(m.cfg.ExtractEveryTurns) == 0 {
		m.triggerExtraction(ctx, userID, sessionID, conversationID)
	}
}

func (m *Manager) appendEvent(ctx context.Context, userID, sessionID, conversationID string, typ models.EventType, content string, meta models.EventMetadata) {
	seq, err := m.sessions.NextSeq(ctx, sessionID)
	if err != nil {
		m.log.WithField("session_id", sessionID).
			WithError(models.ErrorInfo{Message: err.Error(), Kind: "event_seq"}).
			Warn("failed to reserve event sequence number")
	}

	event := &models.EpisodicEvent{
		UserID:         userID,
		SessionID:      sessionID,
		ConversationID: conversationID,
		Seq:            seq,
		Type:           typ,
		Content:        content,
		Metadata:       meta,
	}
	if _, err := m.episodic.Append(ctx, event); err != nil {
		m.log.WithField("user_id", userID).
			WithError(models.ErrorInfo{Message: err.Error(), Kind: "event_append"}).
			Warn("failed to append episodic event")
	}
}

// triggerExtraction snapshots the window and hands it to the async
// pipeline: Kafka when configured, a tracked goroutine otherwise.
func (m *Manager) triggerExtraction(ctx context.Context, userID, sessionID, conversationID string) {
	window := m.buffer.Window(sessionID)
	if len(window) == 0 {
		return
	}

	job := models.ExtractionJob{
		UserID:         userID,
		SessionID:      sessionID,
		ConversationID: conversationID,
		Window:         window,
		EnqueuedAt:     time.Now(),
	}

	if m.queue != nil {
		err := m.queue.Publish(ctx, job)
		if err == nil {
			return
		}
		m.log.WithField("session_id", sessionID).
			WithError(models.ErrorInfo{Message: err.Error(), Kind: "job_publish"}).
			Warn("failed to enqueue extraction job, running in-process")
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		jobCtx, cancel := context.WithTimeout(context.Background(), m.cfg.ExtractTimeout())
		defer cancel()
		if err := m.ProcessJob(jobCtx, job); err != nil {
			m.log.WithField("session_id", sessionID).
				WithError(models.ErrorInfo{Message: err.Error(), Kind: "extraction"}).
				Warn("in-process extraction failed")
		}
	}()
}

// ProcessJob runs one extraction job to completion: extract, embed, store,
// link entities. The Kafka consumer calls this for queued jobs.
func (m *Manager) ProcessJob(ctx context.Context, job models.ExtractionJob) error {
	extracted, err := m.extractor.Extract(ctx, job.Window)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	if len(extracted) == 0 {
		return nil
	}

	facts := make([]*models.SemanticFact, len(extracted))
	for i, e := range extracted {
		facts[i] = &models.SemanticFact{
			UserID:          job.UserID,
			Content:         e.Content,
			Entities:        e.Entities,
			Confidence:      e.Confidence,
			SourceSessionID: job.SessionID,
		}
	}

	results := m.semantic.StoreBatch(ctx, facts)
	stored := 0
	for i, res := range results {
		if res.Err != nil {
			m.log.WithField("user_id", job.UserID).
				WithError(models.ErrorInfo{Message: res.Err.Error(), Kind: "fact_store"}).
				Warn("failed to store extracted fact")
			continue
		}
		stored++
		facts[i].ID = res.FactID

		if m.relations != nil {
			if err := m.relations.LinkEntities(ctx, facts[i]); err != nil {
				m.log.WithField("user_id", job.UserID).Debug("failed to link fact entities: " + err.Error())
			}
		}
	}

	m.log.WithField("user_id", job.UserID).
		WithPayload(map[string]interface{}{"extracted": len(extracted), "stored": stored}).
		Info("extraction job processed")
	return nil
}

// StoreFact persists one fact directly, bypassing extraction. Used for
// explicit "remember this" requests.
func (m *Manager) StoreFact(ctx context.Context, fact *models.SemanticFact) (string, error) {
	id, err := m.semantic.Store(ctx, fact)
	if err != nil {
		return "", err
	}
	fact.ID = id
	if m.relations != nil {
		if err := m.relations.LinkEntities(ctx, fact); err != nil {
			m.log.WithField("user_id", fact.UserID).Debug("failed to link fact entities: " + err.Error())
		}
	}
	return id, nil
}

// StoreSuccessfulPattern records a strategy that worked.
func (m *Manager) StoreSuccessfulPattern(ctx context.Context, pattern *models.ProceduralPattern) (string, error) {
	pattern.Success = true
	return m.procedural.StorePattern(ctx, pattern)
}

// ToolUsagePatterns returns past tool strategies matching the query.
func (m *Manager) ToolUsagePatterns(ctx context.Context, userID string, query models.PatternQuery) ([]models.ProceduralPattern, error) {
	return m.procedural.FindPatterns(ctx, userID, query, m.cfg.ProceduralLimit)
}

// ReplaySession returns one session's episodic record in order.
func (m *Manager) ReplaySession(ctx context.Context, userID, sessionID string) ([]models.EpisodicEvent, error) {
	return m.episodic.Replay(ctx, userID, sessionID)
}

// ResetSession drops the short-term window and the turn counter. Durable
// memory is untouched. Resetting an unknown session is a no-op.
func (m *Manager) ResetSession(ctx context.Context, sessionID string) error {
	m.buffer.Reset(sessionID)
	if err := m.sessions.ResetTurns(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset session counters: %w", err)
	}
	return nil
}

// EraseUser removes every durable trace of the user across all stores. The
// episodic log is archived first when an archiver is configured. Stores are
// attempted independently; the first error is returned after all ran.
func (m *Manager) EraseUser(ctx context.Context, userID string) error {
	var firstErr error

	if m.archiver != nil {
		events, err := m.episodic.Recent(ctx, userID, 0, models.EventFilter{})
		if err == nil && len(events) > 0 {
			if _, err := m.archiver.Archive(ctx, userID, events); err != nil {
				m.log.WithField("user_id", userID).
					WithError(models.ErrorInfo{Message: err.Error(), Kind: "archive"}).
					Warn("failed to archive event log before erasure")
			}
		}
	}

	if err := m.semantic.DeleteUser(ctx, userID); err != nil {
		firstErr = err
	}
	if _, err := m.episodic.EraseUser(ctx, userID); err != nil && firstErr == nil {
		firstErr = err
	}
	if _, err := m.procedural.EraseUser(ctx, userID); err != nil && firstErr == nil {
		firstErr = err
	}
	if m.relations != nil {
		if err := m.relations.DeleteUser(ctx, userID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return fmt.Errorf("user erasure incomplete: %w", firstErr)
	}
	m.log.WithField("user_id", userID).Info("erased all user memory")
	return nil
}

// Close waits for in-flight background extraction to finish.
func (m *Manager) Close() {
	m.wg.Wait()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
