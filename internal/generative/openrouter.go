package generative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOpenRouterURL is the OpenRouter OpenAI-compatible API root
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// ChatMessage is one message of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is an OpenAI-compatible chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// ChatResponse is the subset of a chat completion response we read
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIClientConfig configures an OpenAIClient
type OpenAIClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	// Referer and Title identify the app to OpenRouter
	Referer string
	Title   string
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint such
// as OpenRouter
type OpenAIClient struct {
	cfg  OpenAIClientConfig
	http HTTPDoer
}

// NewOpenAIClient creates a client. A nil doer uses http.DefaultClient;
// call deadlines come from the request context.
func NewOpenAIClient(cfg OpenAIClientConfig, doer HTTPDoer) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if doer == nil {
		doer = http.DefaultClient
	}
	return &OpenAIClient{cfg: cfg, http: doer}
}

// Generate sends prompt as a single user message
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(ChatRequest{
		Model:       c.cfg.Model,
		Messages:    []ChatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		httpReq.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{Success: false}, nil
	}

	var parsed ChatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{Success: true}, nil
	}
	return Response{Success: true, Content: parsed.Choices[0].Message.Content}, nil
}
