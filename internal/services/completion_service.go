package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"packforge-backend/config"
	"packforge-backend/internal/utils"
)

// UpstreamError is returned when the completion backend is unreachable or
// answers with a non-success status. Body is logging-grade detail and must be
// sanitized before being shown to end users.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion backend unreachable: %v", e.Err)
	}
	return fmt.Sprintf("completion backend returned status %d", e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Transport reports whether the failure happened before any HTTP status was
// received.
func (e *UpstreamError) Transport() bool { return e.Err != nil }

// SanitizedBody strips anything secret-shaped from the upstream body before
// it goes into a client-visible response.
func (e *UpstreamError) SanitizedBody() string {
	body := e.Body
	if len(body) > 500 {
		body = body[:500]
	}
	if strings.Contains(strings.ToLower(body), "bearer") ||
		strings.Contains(strings.ToLower(body), "api key") ||
		strings.Contains(body, "sk-") {
		return "[redacted upstream error body]"
	}
	return body
}

// CompletionClient talks to an OpenAI-style chat-completions endpoint. It
// carries no retry policy; a failed call simply surfaces to the caller.
type CompletionClient struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	client    *http.Client
}

func NewCompletionClient(cfg *config.Config) *CompletionClient {
	return &CompletionClient{
		BaseURL:   strings.TrimRight(cfg.OpenAIAPIBase, "/"),
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.OpenAIModel,
		MaxTokens: cfg.CompletionMaxTokens,
		client:    utils.NewHTTPClient(time.Duration(cfg.CompletionTimeoutSec) * time.Second),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the instruction pair and returns the raw model text. The
// context bounds the whole call; a slow backend cannot hold a worker past the
// configured timeout.
func (cc *CompletionClient) Complete(ctx context.Context, systemInstructions, userInstructions string) (string, error) {
	messages := []chatMessage{}
	if systemInstructions != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemInstructions})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userInstructions})

	payload, err := json.Marshal(chatRequest{
		Model:       cc.Model,
		Messages:    messages,
		MaxTokens:   cc.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cc.BaseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", cc.APIKey))

	resp, err := cc.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		// Connection dropped mid-body; transport-class, not a bad payload.
		return "", &UpstreamError{Err: err}
	}
	if resp.StatusCode >= 400 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	if len(parsed.Choices) == 0 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	return parsed.Choices[0].Message.Content, nil
}
