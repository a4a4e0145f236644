package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	olla "github.com/ollama/ollama/api"

	"mnemos/internal/models"
)

// Ollama calls a local or remote Ollama server.
type Ollama struct {
	client *olla.Client
	model  string
}

// NewOllama creates an Ollama client. An empty baseURL defaults to the
// local server.
func NewOllama(model, baseURL string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{
		Timeout: 120 * time.Second,
	}
	return &Ollama{client: olla.NewClient(parsedURL, hc), model: model}, nil
}

func (o *Ollama) GenerateContent(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	var sb strings.Builder
	for _, c := range req.Content {
		sb.WriteString(string(c.Role))
		sb.WriteString(": ")
		sb.WriteString(c.Text)
		sb.WriteString("\n")
	}

	stream := false
	var result strings.Builder
	err := o.client.Generate(ctx, &olla.GenerateRequest{
		Model:  o.model,
		System: req.System,
		Prompt: sb.String(),
		Stream: &stream,
	}, func(resp olla.GenerateResponse) error {
		result.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama generation failed: %w", err)
	}
	return &models.GenerateResponse{Text: result.String()}, nil
}
