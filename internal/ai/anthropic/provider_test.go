package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/contentpilot/internal/ai/transport"
	"github.com/kiranshivaraju/contentpilot/internal/config"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, 1024, req.MaxTokens)
		assert.Equal(t, "you plan posts", req.System)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, models.RoleAssistant, req.Messages[0].Role)

		w.Write([]byte(`{"content":[{"type":"text","text":"{\"clarify\":"},{"type":"text","text":"\"When?\"}"}],"stop_reason":"end_turn"}`))
	}))
	defer ts.Close()

	p := NewProvider(config.AnthropicConfig{BaseURL: ts.URL + "/", APIKey: "sk-ant-test", Model: "claude-test"})
	out, err := p.Complete(context.Background(), models.CompletionRequest{
		System:    "you plan posts",
		MaxTokens: 1024,
		Messages: []models.Message{
			{Role: models.RoleAssistant, Content: "Hi, what shall we plan?"},
			{Role: models.RoleUser, Content: "A week of posts"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"clarify":"When?"}`, out)
}

func TestComplete_DefaultMaxTokens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 4096, req.MaxTokens)
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer ts.Close()

	p := NewProvider(config.AnthropicConfig{BaseURL: ts.URL, Model: "m"})
	_, err := p.Complete(context.Background(), models.CompletionRequest{})
	require.NoError(t, err)
}

func TestComplete_EmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
	}))
	defer ts.Close()

	p := NewProvider(config.AnthropicConfig{BaseURL: ts.URL, Model: "m"})
	_, err := p.Complete(context.Background(), models.CompletionRequest{})
	assert.ErrorIs(t, err, transport.ErrInvalidResponse)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestComplete_Overloaded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
	}))
	defer ts.Close()

	p := NewProvider(config.AnthropicConfig{BaseURL: ts.URL, Model: "m"})
	_, err := p.Complete(context.Background(), models.CompletionRequest{})
	assert.ErrorIs(t, err, transport.ErrUnavailable)
}

func TestName(t *testing.T) {
	assert.Equal(t, "anthropic", NewProvider(config.AnthropicConfig{}).Name())
}
