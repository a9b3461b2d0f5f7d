package ai

import "github.com/kiranshivaraju/contentpilot/internal/ai/transport"

// Provider errors. The provider packages return these wrapped with %w.
var (
	ErrProviderUnavailable = transport.ErrUnavailable
	ErrInferenceTimeout    = transport.ErrTimeout
	ErrInvalidResponse     = transport.ErrInvalidResponse
)
