package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mnemos/internal/models"
)

// Gemini calls the Google GenAI generation API.
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini creates a Gemini client for the given model.
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, modelName: model}, nil
}

// GenerateContent sends the request as a single-shot generation. Each call
// builds a fresh model so the system instruction can vary per request.
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	model := g.client.GenerativeModel(g.modelName)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	parts := make([]genai.Part, 0, len(req.Content))
	for _, c := range req.Content {
		parts = append(parts, genai.Text(c.Text))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return &models.GenerateResponse{Text: sb.String()}, nil
}
