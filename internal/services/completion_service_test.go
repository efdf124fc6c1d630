package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"packforge-backend/config"

	"github.com/stretchr/testify/assert"
)

func newTestCompletionClient(baseURL string) *CompletionClient {
	return NewCompletionClient(&config.Config{
		OpenAIAPIBase:        baseURL,
		OpenAIAPIKey:         "test-key",
		OpenAIModel:          "test-model",
		CompletionMaxTokens:  128,
		CompletionTimeoutSec: 5,
	})
}

func TestCompletionClientComplete(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"files\":[]}"}}]}`))
	}))
	defer server.Close()

	client := newTestCompletionClient(server.URL)

	text, err := client.Complete(context.Background(), "system instructions", "user prompt")
	assert.NoError(t, err)
	assert.Equal(t, `{"files":[]}`, text)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotBody["model"])
	assert.Equal(t, float64(128), gotBody["max_tokens"])

	messages := gotBody["messages"].([]interface{})
	assert.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "system instructions", first["content"])
}

func TestCompletionClientNoSystemMessage(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
	}))
	defer server.Close()

	client := newTestCompletionClient(server.URL)

	_, err := client.Complete(context.Background(), "", "user prompt")
	assert.NoError(t, err)

	messages := gotBody["messages"].([]interface{})
	assert.Len(t, messages, 1)
}

func TestCompletionClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := newTestCompletionClient(server.URL)

	_, err := client.Complete(context.Background(), "", "prompt")
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	assert.Contains(t, upstream.Body, "rate limited")
	assert.False(t, upstream.Transport())
}

func TestCompletionClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestCompletionClient(server.URL)

	_, err := client.Complete(context.Background(), "", "prompt")
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.True(t, upstream.Transport())
}

func TestCompletionClientTruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than the handler delivers, then hang up.
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte(`{"choices":[`))
	}))
	defer server.Close()

	client := newTestCompletionClient(server.URL)

	_, err := client.Complete(context.Background(), "", "prompt")
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.True(t, upstream.Transport())
}

func TestCompletionClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newTestCompletionClient(server.URL)

	_, err := client.Complete(context.Background(), "", "prompt")
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestCompletionClientContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	client := newTestCompletionClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "", "prompt")
	assert.Error(t, err)
}

func TestUpstreamErrorSanitizedBody(t *testing.T) {
	withSecret := &UpstreamError{StatusCode: 401, Body: `{"error":"Invalid Bearer token sk-abc123"}`}
	assert.Equal(t, "[redacted upstream error body]", withSecret.SanitizedBody())

	plain := &UpstreamError{StatusCode: 500, Body: `{"error":"model overloaded"}`}
	assert.Equal(t, `{"error":"model overloaded"}`, plain.SanitizedBody())
}
