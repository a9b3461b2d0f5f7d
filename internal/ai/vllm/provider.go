package vllm

import (
	"github.com/kiranshivaraju/contentpilot/internal/ai/openai"
	"github.com/kiranshivaraju/contentpilot/internal/config"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// Provider implements models.LLMProvider using vLLM's OpenAI-compatible server.
type Provider struct {
	*openai.Provider
}

func NewProvider(cfg config.VLLMConfig) *Provider {
	return &Provider{Provider: openai.NewCompatible("vllm", cfg.BaseURL, "", cfg.Model)}
}

var _ models.LLMProvider = (*Provider)(nil)
