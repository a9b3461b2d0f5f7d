package openai

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
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "plan posts", req.Messages[0].Content)
		assert.Equal(t, models.RoleUser, req.Messages[1].Role)
		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 256, *req.MaxTokens)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	}))
	defer ts.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: ts.URL, APIKey: "sk-test", Model: "gpt-test"})
	out, err := p.Complete(context.Background(), models.CompletionRequest{
		System:    "plan posts",
		MaxTokens: 256,
		Messages:  []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "openai", p.Name())
}

func TestComplete_NoAuthForCompatibleServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.MaxTokens)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer ts.Close()

	p := NewCompatible("vllm", ts.URL+"/v1", "", "mistral")
	out, err := p.Complete(context.Background(), models.CompletionRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "vllm", p.Name())
}

func TestComplete_NoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: ts.URL})
	_, err := p.Complete(context.Background(), models.CompletionRequest{})
	assert.ErrorIs(t, err, transport.ErrInvalidResponse)
}

func TestChatURL(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", chatURL("https://api.openai.com"))
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", chatURL("https://api.openai.com/v1/"))
	assert.Equal(t, "http://router/api/chat/completions", chatURL("http://router/api/chat/completions"))
}
