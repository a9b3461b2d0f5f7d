package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/contentpilot/internal/ai"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// SamplePlan is the canned reply of NewMockProvider: a two-item plan whose
// second item is left without an id.
const SamplePlan = "```json\n" + `{
  "type": "content_plan",
  "name": "Mock launch week",
  "platform": "instagram",
  "schedule_items": [
    {"id": "mock-1", "date": "2024-03-01", "time": "09:30", "type": "image", "caption": "Teaser", "hashtags": ["launch"], "media_prompt": "a teaser photo", "status": "ready", "media_url": "https://cdn.example.com/old.png"},
    {"date": "2024-03-02", "type": "video", "caption": "Behind the scenes", "hashtags": ["#bts"]},
  ]
}` + "\n```"

// MockProvider satisfies models.LLMProvider for testing.
type MockProvider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (string, error)

	mu       sync.Mutex
	requests []models.CompletionRequest
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// Requests returns a copy of every request received so far.
func (m *MockProvider) Requests() []models.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CompletionRequest(nil), m.requests...)
}

// NewMockProvider returns a MockProvider that always answers with SamplePlan.
func NewMockProvider() *MockProvider {
	return NewReplyProvider(SamplePlan)
}

// NewReplyProvider returns a MockProvider that always answers with reply.
func NewReplyProvider(reply string) *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return reply, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements LLMProvider.
var _ models.LLMProvider = (*MockProvider)(nil)
