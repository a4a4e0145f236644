package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"mnemos/internal/models"
)

// ErrSessionNotFound is returned when a session ID resolves to nothing,
// either because it never existed or because its record expired.
var ErrSessionNotFound = errors.New("session not found")

// Registry tracks live sessions in Redis. Each session keeps a hash with
// its metadata plus two counters: the turn counter driving extraction
// triggers and the sequence counter stamping episodic events.
type Registry struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRegistry creates a registry whose records expire after ttl of
// inactivity.
func NewRegistry(rdb *redis.Client, ttl time.Duration) *Registry {
	return &Registry{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string { return "session:" + id }
func turnsKey(id string) string   { return "session:" + id + ":turns" }
func seqKey(id string) string     { return "session:" + id + ":seq" }

// Start creates a new active session for the user.
func (r *Registry) Start(ctx context.Context, userID, conversationID string) (*models.Session, error) {
	now := time.Now()
	sess := &models.Session{
		ID:             uuid.New().String(),
		UserID:         userID,
		ConversationID: conversationID,
		Status:         models.SessionActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	fields := map[string]interface{}{
		"user_id":          sess.UserID,
		"conversation_id":  sess.ConversationID,
		"status":           string(sess.Status),
		"created_at":       now.Format(time.RFC3339Nano),
		"last_activity_at": now.Format(time.RFC3339Nano),
	}
	if err := r.rdb.HSet(ctx, sessionKey(sess.ID), fields).Err(); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	r.rdb.Expire(ctx, sessionKey(sess.ID), r.ttl)
	return sess, nil
}

// Get loads a session record.
func (r *Registry) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	fields, err := r.rdb.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	sess := &models.Session{
		ID:             sessionID,
		UserID:         fields["user_id"],
		ConversationID: fields["conversation_id"],
		Status:         models.SessionStatus(fields["status"]),
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		sess.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["last_activity_at"]); err == nil {
		sess.LastActivityAt = t
	}
	if turns, err := r.rdb.Get(ctx, turnsKey(sessionID)).Result(); err == nil {
		sess.TurnCount, _ = strconv.ParseInt(turns, 10, 64)
	}
	return sess, nil
}

// Touch refreshes the activity timestamp and the TTL of every session key.
func (r *Registry) Touch(ctx context.Context, sessionID string) error {
	now := time.Now().Format(time.RFC3339Nano)
	if err := r.rdb.HSet(ctx, sessionKey(sessionID), "last_activity_at", now).Err(); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	r.rdb.Expire(ctx, sessionKey(sessionID), r.ttl)
	r.rdb.Expire(ctx, turnsKey(sessionID), r.ttl)
	r.rdb.Expire(ctx, seqKey(sessionID), r.ttl)
	return nil
}

// IncrementTurn bumps the session's turn counter and returns the new count.
func (r *Registry) IncrementTurn(ctx context.Context, sessionID string) (int64, error) {
	count, err := r.rdb.Incr(ctx, turnsKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment turn counter: %w", err)
	}
	return count, nil
}

// NextSeq reserves the next per-session sequence number. INCR is atomic, so
// concurrent appenders of one session never share a number.
func (r *Registry) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	seq, err := r.rdb.Incr(ctx, seqKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to reserve sequence number: %w", err)
	}
	return seq, nil
}

// ResetTurns clears the turn counter. The sequence counter stays so event
// ordering survives a session reset.
func (r *Registry) ResetTurns(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, turnsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to reset turn counter: %w", err)
	}
	return nil
}

// End marks the session ended. The record remains until its TTL expires.
func (r *Registry) End(ctx context.Context, sessionID string) error {
	if err := r.rdb.HSet(ctx, sessionKey(sessionID), "status", string(models.SessionEnded)).Err(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}
