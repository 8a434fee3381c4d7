// Package generation calls the external text-generation service.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonhttp "specgen/internal/common/http"
	"specgen/internal/common/logger"
	"specgen/internal/common/validation"
)

// Generator produces a document from a model identifier and a prompt.
type Generator interface {
	Generate(ctx context.Context, model, document string) (*Result, error)
}

// Result is a successful generation.
type Result struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// TokensUsed is input plus output tokens.
func (r *Result) TokensUsed() int {
	return r.InputTokens + r.OutputTokens
}

// Config is injected once at construction; the client never reads the environment.
type Config struct {
	BaseURL          string
	APIKey           string
	AnthropicVersion string
	MaxTokens        int
	Timeout          time.Duration
}

// Client speaks the Anthropic Messages API. Each Generate call makes exactly
// one request.
type Client struct {
	cfg    Config
	http   *commonhttp.Client
	logger logger.Logger
}

var responseSchema = validation.MustCompile("messages-response", `{
	"type": "object",
	"required": ["content"],
	"properties": {
		"model": {"type": "string"},
		"stop_reason": {"type": ["string", "null"]},
		"content": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type"],
				"properties": {
					"type": {"type": "string"},
					"text": {"type": "string"}
				}
			}
		},
		"usage": {
			"type": "object",
			"properties": {
				"input_tokens": {"type": "integer"},
				"output_tokens": {"type": "integer"}
			}
		}
	}
}`)

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewClient builds a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *commonhttp.Client, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = "2023-06-01"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8000
	}
	if httpClient == nil {
		httpClient = commonhttp.NewClient(cfg.Timeout)
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: log.With(map[string]interface{}{"component": "generation"}),
	}
}

func (c *Client) endpoint() string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/messages"
}

// Generate sends document as a single user message.
func (c *Client) Generate(ctx context.Context, model, document string) (*Result, error) {
	start := time.Now()

	payload, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: c.cfg.MaxTokens,
		Messages:  []message{{Role: "user", Content: document}},
	})
	if err != nil {
		return nil, &GenerationError{Kind: TransportFailure, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, &GenerationError{Kind: TransportFailure, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.AnthropicVersion)

	c.logger.Debug("sending generation request", map[string]interface{}{
		"model":         model,
		"documentBytes": len(document),
	})

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, &GenerationError{Kind: TransportFailure, Err: err}
	}

	body, err := commonhttp.ReadBody(resp)
	if err != nil {
		return nil, &GenerationError{Kind: TransportFailure, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("generation service error", map[string]interface{}{
			"model":      model,
			"statusCode": resp.StatusCode,
		})
		return nil, &GenerationError{Kind: ServiceError, StatusCode: resp.StatusCode, Body: string(body)}
	}

	check, err := responseSchema.ValidateBytes(body)
	if err != nil {
		return nil, &GenerationError{Kind: MalformedResponse, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	if !check.Valid {
		return nil, &GenerationError{
			Kind:       MalformedResponse,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("unexpected response shape: %s", check.Summary()),
		}
	}

	var decoded messagesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &GenerationError{Kind: MalformedResponse, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &GenerationError{Kind: EmptyResult, StatusCode: resp.StatusCode}
	}

	result := &Result{
		Text:         text.String(),
		Model:        decoded.Model,
		InputTokens:  decoded.Usage.InputTokens,
		OutputTokens: decoded.Usage.OutputTokens,
		StopReason:   decoded.StopReason,
	}
	if result.Model == "" {
		result.Model = model
	}

	c.logger.Info("generation completed", map[string]interface{}{
		"model":        result.Model,
		"inputTokens":  result.InputTokens,
		"outputTokens": result.OutputTokens,
		"stopReason":   result.StopReason,
		"durationMs":   time.Since(start).Milliseconds(),
	})

	return result, nil
}
