package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mnemos/internal/llm"
	"mnemos/internal/models"
	"mnemos/pkg/circuitbreaker"
	"mnemos/pkg/logger"
	"mnemos/pkg/ratelimiter"
)

const extractionPrompt = `You are a memory extraction system. Analyze the conversation and extract durable facts about the user that will remain true beyond this conversation.

Extract only:
- Stable preferences, traits and circumstances of the user.
- Facts stated by the user about themselves or their world.
- Corrections the user made to earlier assumptions.

Do not extract:
- Conversation-local context ("the file we just discussed").
- Assistant output or speculation.
- Transient state ("the user is currently waiting").

Respond with a JSON array only, no prose. Each element:
{"fact": "...", "entities": ["..."], "confidence": 0.0}

Confidence reflects how certain the statement is. Hedged statements ("I think", "maybe") score lower; direct first-person declarations score higher. Return [] when nothing qualifies.`

// minFactLength rejects fragments too short to be a standalone fact.
const minFactLength = 10

// minConfidence drops candidates the model itself is unsure about.
const minConfidence = 0.3

// hedgeCap keeps hedged statements strictly below 0.8.
const hedgeCap = 0.79

// firstPersonFloor keeps direct first-person declarations strictly above 0.85.
const firstPersonFloor = 0.86

// deicticPhrases mark statements that only make sense inside the current
// conversation and therefore must not become durable facts.
var deicticPhrases = []string{
	"in this conversation",
	"just now",
	"earlier today",
	"you mentioned",
	"as we discussed",
	"right now",
}

var hedgeMarkers = []string{"i think", "maybe", "probably", "i guess", "not sure", "might"}

var firstPersonMarkers = []string{"i am ", "i'm ", "my ", "i work", "i live", "i prefer", "i use", "i have "}

// LLMExtractor extracts facts with a generation model. Calls run through a
// rate limiter and a circuit breaker so a misbehaving provider cannot take
// the ingestion path down with it.
type LLMExtractor struct {
	llm     llm.LLM
	breaker circuitbreaker.CircuitBreaker
	limiter ratelimiter.RateLimiter
	timeout time.Duration
	log     *logger.Logger
}

// NewLLMExtractor creates an extractor around the given model client.
func NewLLMExtractor(model llm.LLM, breaker circuitbreaker.CircuitBreaker, limiter ratelimiter.RateLimiter, timeout time.Duration) *LLMExtractor {
	return &LLMExtractor{
		llm:     model,
		breaker: breaker,
		limiter: limiter,
		timeout: timeout,
		log:     logger.New("llm-extractor", "", ""),
	}
}

// Extract runs one extraction call over the window. Malformed model output
// is treated as "no facts found" rather than an error; provider failures
// are returned so the caller can retry the job.
func (e *LLMExtractor) Extract(ctx context.Context, window []models.Message) ([]models.ExtractedFact, error) {
	if len(window) == 0 {
		return nil, nil
	}
	if e.limiter != nil && !e.limiter.Allow() {
		return nil, fmt.Errorf("extraction rate limit exceeded")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := &models.GenerateRequest{
		System:  extractionPrompt,
		Content: []models.Content{{Role: models.RoleUser, Text: renderWindow(window)}},
	}

	var resp *models.GenerateResponse
	call := func() (interface{}, error) {
		return e.llm.GenerateContent(callCtx, req)
	}

	var raw interface{}
	var err error
	if e.breaker != nil {
		raw, err = e.breaker.Execute(call)
	} else {
		raw, err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}
	resp = raw.(*models.GenerateResponse)

	candidates, ok := parseFacts(resp.Text)
	if !ok {
		e.log.WithPayload(map[string]interface{}{"output": truncate(resp.Text, 200)}).
			Debug("discarding malformed extraction output")
		return nil, nil
	}

	facts := make([]models.ExtractedFact, 0, len(candidates))
	for _, c := range candidates {
		if !validFact(c) {
			continue
		}
		c.Confidence = adjustConfidence(c)
		facts = append(facts, c)
	}
	return facts, nil
}

// renderWindow flattens the window into a role-prefixed transcript.
func renderWindow(window []models.Message) string {
	var sb strings.Builder
	for _, m := range window {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// parseFacts decodes the model output, tolerating markdown code fences
// around the JSON array.
func parseFacts(raw string) ([]models.ExtractedFact, bool) {
	cleaned := stripFences(strings.TrimSpace(raw))

	var facts []models.ExtractedFact
	if err := json.Unmarshal([]byte(cleaned), &facts); err != nil {
		return nil, false
	}
	return facts, true
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// validFact applies the structural checks every candidate must pass.
func validFact(f models.ExtractedFact) bool {
	content := strings.TrimSpace(f.Content)
	if len(content) < minFactLength {
		return false
	}
	if f.Confidence < minConfidence || f.Confidence > 1 {
		return false
	}
	lower := strings.ToLower(content)
	for _, phrase := range deicticPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// adjustConfidence nudges the model's self-reported confidence: hedged
// statements are capped and direct first-person declarations get a floor.
func adjustConfidence(f models.ExtractedFact) float64 {
	lower := strings.ToLower(f.Content)
	conf := f.Confidence

	for _, marker := range hedgeMarkers {
		if strings.Contains(lower, marker) {
			if conf > hedgeCap {
				conf = hedgeCap
			}
			return conf
		}
	}
	for _, marker := range firstPersonMarkers {
		if strings.HasPrefix(lower, marker) || strings.Contains(lower, " "+marker) {
			if conf < firstPersonFloor {
				conf = firstPersonFloor
			}
			return conf
		}
	}
	return conf
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
