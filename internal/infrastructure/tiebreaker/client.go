package tiebreaker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cartsmash/resolver/internal/domain"
)

const systemPrompt = `You pick the single best grocery catalog product for a shopping list item.
You receive the item and a few candidate products with a deterministic basicScore.
Prefer the product a shopper would expect to receive for the item text, respecting size and unit.
Answer with JSON only, exactly in this shape:
{"bestMatch":{"id":"<candidate id>","aiScore":<0-100>,"confidence":"high|medium|low|very_low","reason":"<one sentence>"}}
The id must be one of the candidate ids.`

// Config holds configuration for the chat tie-breaker
type Config struct {
	BaseURL           string // e.g. https://api.openai.com/v1
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// ChatTieBreaker asks an OpenAI-compatible chat-completions endpoint to choose a candidate
type ChatTieBreaker struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	rateLimiter *rate.Limiter
}

// NewChatTieBreaker creates a tie-breaker client
func NewChatTieBreaker(cfg Config) *ChatTieBreaker {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &ChatTieBreaker{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       model,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// SelectBest sends the item and its candidates and decodes the model's choice
func (c *ChatTieBreaker) SelectBest(ctx context.Context, req domain.TieBreakerRequest) (*domain.TieBreakerDecision, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrTieBreakerAPIFailure, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("tiebreaker: marshal payload: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("tiebreaker: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tiebreaker: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTieBreakerAPIFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrTieBreakerAPIFailure, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrTieBreakerAPIFailure, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices in response", domain.ErrTieBreakerAPIFailure)
	}

	return ParseDecision(chatResp.Choices[0].Message.Content)
}

// ParseDecision decodes the model's JSON answer, tolerating markdown code fences
func ParseDecision(content string) (*domain.TieBreakerDecision, error) {
	content = stripCodeFence(content)

	var decision domain.TieBreakerDecision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return nil, fmt.Errorf("%w: unreadable decision: %v", domain.ErrTieBreakerAPIFailure, err)
	}
	if strings.TrimSpace(decision.BestMatch.ID) == "" {
		return nil, fmt.Errorf("%w: decision without a product id", domain.ErrTieBreakerAPIFailure)
	}

	return &decision, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
