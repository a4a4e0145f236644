package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mnemos/internal/agent"
	"mnemos/internal/memory/manager"
	"mnemos/internal/models"
	"mnemos/internal/session"
	"mnemos/pkg/logger"
)

// Handler carries the dependencies of the HTTP surface.
type Handler struct {
	agent    *agent.Agent
	mgr      *manager.Manager
	sessions *session.Registry
	log      *logger.Logger
}

// NewHandler creates a handler.
func NewHandler(a *agent.Agent, mgr *manager.Manager, sessions *session.Registry) *Handler {
	return &Handler{
		agent:    a,
		mgr:      mgr,
		sessions: sessions,
		log:      logger.New("api", "", ""),
	}
}

type startSessionRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

// StartSession creates a new session for a user.
func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.sessions.Start(c.Request.Context(), req.UserID, req.ConversationID)
	if err != nil {
		h.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to start session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

type chatRequest struct {
	UserID    string               `json:"user_id" binding:"required"`
	SessionID string               `json:"session_id" binding:"required"`
	Message   string               `json:"message" binding:"required"`
	Tools     []models.ToolOutcome `json:"tool_outcomes"`
}

// Chat runs one conversation turn.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.sessions.Get(c.Request.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	if sess.UserID != req.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "session belongs to another user"})
		return
	}

	reply, err := h.agent.Chat(c.Request.Context(), req.UserID, req.SessionID, sess.ConversationID, req.Message, req.Tools)
	if err != nil {
		h.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("chat turn failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// ResetSession clears the session's short-term state.
func (h *Handler) ResetSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.mgr.ResetSession(c.Request.Context(), sessionID); err != nil {
		h.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to reset session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// GetContext returns the fused recall for a query, for inspection and
// debugging of what the agent would see.
func (h *Handler) GetContext(c *gin.Context) {
	userID := c.Query("user_id")
	sessionID := c.Query("session_id")
	query := c.Query("query")
	if userID == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and query are required"})
		return
	}

	fused := h.mgr.GetContext(c.Request.Context(), userID, sessionID, query)
	c.JSON(http.StatusOK, gin.H{
		"context": fused,
		"window":  h.mgr.Window(sessionID),
	})
}

// ReplaySession returns one session's episodic record in order.
func (h *Handler) ReplaySession(c *gin.Context) {
	sessionID := c.Param("id")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	events, err := h.mgr.ReplaySession(c.Request.Context(), userID, sessionID)
	if err != nil {
		h.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to replay session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type rememberRequest struct {
	UserID     string   `json:"user_id" binding:"required"`
	Fact       string   `json:"fact" binding:"required"`
	Entities   []string `json:"entities"`
	Confidence float64  `json:"confidence"`
}

// RememberFact stores a fact directly, bypassing extraction.
func (h *Handler) RememberFact(c *gin.Context) {
	var req rememberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Confidence == 0 {
		// Explicit remember requests are trusted by default.
		req.Confidence = 0.95
	}

	id, err := h.mgr.StoreFact(c.Request.Context(), &models.SemanticFact{
		UserID:     req.UserID,
		Content:    req.Fact,
		Entities:   req.Entities,
		Confidence: req.Confidence,
	})
	if err != nil {
		h.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to store fact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store fact"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fact_id": id})
}

// EraseUser removes every durable trace of the user.
func (h *Handler) EraseUser(c *gin.Context) {
	userID := c.Param("id")
	if err := h.mgr.EraseUser(c.Request.Context(), userID); err != nil {
		h.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("user erasure incomplete")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "erasure incomplete, retry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "erased"})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
