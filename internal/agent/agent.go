package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mnemos/internal/llm"
	"mnemos/internal/memory/manager"
	"mnemos/internal/models"
	"mnemos/pkg/logger"
)

const systemPrompt = `You are a helpful assistant with long-term memory of the user. Use the MEMORY sections below when they are relevant; ignore them when they are not. Never mention the memory system itself.`

// Agent is a thin conversation loop over the memory manager and a
// generation model. Memory recall happens before the model call and the
// turn is recorded after it.
type Agent struct {
	mgr *manager.Manager
	llm llm.LLM
	log *logger.Logger
}

// New creates an agent.
func New(mgr *manager.Manager, model llm.LLM) *Agent {
	return &Agent{
		mgr: mgr,
		llm: model,
		log: logger.New("agent", "", ""),
	}
}

// Chat runs one turn: recall, generate, record. Tools are not executed
// here; their outcomes arrive with the request. Recall and recording are
// best-effort; only a generation failure surfaces to the caller.
func (a *Agent) Chat(ctx context.Context, userID, sessionID, conversationID, text string, tools []models.ToolOutcome) (string, error) {
	fused := a.mgr.GetContext(ctx, userID, sessionID, text)
	window := a.mgr.Window(sessionID)

	content := make([]models.Content, 0, len(window)+1)
	for _, m := range window {
		content = append(content, models.Content{Role: m.Role, Text: m.Content})
	}
	content = append(content, models.Content{Role: models.RoleUser, Text: text})

	req := &models.GenerateRequest{
		System:  systemPrompt + renderMemory(fused),
		Content: content,
	}

	resp, err := a.llm.GenerateContent(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	now := time.Now()
	userMsg := models.Message{Role: models.RoleUser, Content: text, Timestamp: now}
	assistantMsg := models.Message{Role: models.RoleAssistant, Content: resp.Text, Timestamp: now}
	a.mgr.RecordTurn(ctx, userID, sessionID, conversationID, userMsg, assistantMsg, tools)

	return resp.Text, nil
}

// renderMemory formats the fused context as prompt sections, skipping the
// ones that came back empty.
func renderMemory(fused *models.FusedContext) string {
	var sb strings.Builder

	if len(fused.Semantic) > 0 {
		sb.WriteString("\n\nMEMORY - facts about the user:\n")
		for _, f := range fused.Semantic {
			sb.WriteString("- ")
			sb.WriteString(f.Content)
			sb.WriteString("\n")
		}
	}
	if len(fused.Episodic) > 0 {
		sb.WriteString("\nMEMORY - recent interactions:\n")
		for _, e := range fused.Episodic {
			sb.WriteString("- ")
			sb.WriteString(string(e.Type))
			sb.WriteString(": ")
			sb.WriteString(e.Content)
			sb.WriteString("\n")
		}
	}
	if len(fused.Procedural) > 0 {
		sb.WriteString("\nMEMORY - strategies that worked before:\n")
		for _, p := range fused.Procedural {
			sb.WriteString("- ")
			sb.WriteString(p.Description)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
