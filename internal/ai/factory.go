package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/contentpilot/internal/ai/anthropic"
	"github.com/kiranshivaraju/contentpilot/internal/ai/ollama"
	"github.com/kiranshivaraju/contentpilot/internal/ai/openai"
	"github.com/kiranshivaraju/contentpilot/internal/ai/vllm"
	"github.com/kiranshivaraju/contentpilot/internal/config"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// ErrUnknownProvider is returned for an AI_PROVIDER the factory cannot build.
var ErrUnknownProvider = errors.New("unknown AI provider")

// NewProvider builds the language-model provider named by cfg.Provider.
// Called once at server startup; the name is matched case-insensitively.
func NewProvider(cfg config.AIConfig) (models.LLMProvider, error) {
	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider)); name {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("%w %q: must be one of ollama, vllm, openai, anthropic", ErrUnknownProvider, cfg.Provider)
	}
}
