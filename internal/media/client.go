// Package media is the HTTP client for the external media generation provider.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/config"
)

// Sentinel errors for media provider failures.
var (
	ErrProviderUnavailable = errors.New("media provider unavailable")
	ErrTimeout             = errors.New("media provider timeout")
	ErrRejected            = errors.New("media provider rejected request")
)

// DefaultSubmitTimeout bounds how long an async submission is waited for.
const DefaultSubmitTimeout = 120 * time.Second

// Client is the interface for requesting media for a schedule item.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// GenerateRequest asks the provider for media for one item. With Async set the
// provider only acknowledges the submission and fills the item in later.
type GenerateRequest struct {
	PlanID uuid.UUID
	ItemID string
	Type   string
	Prompt string
	Async  bool
}

// GenerateResult is the provider's answer. Generated counts the assets produced
// by a synchronous call; an async submission reports zero.
type GenerateResult struct {
	Generated int
	Message   string
	MediaURLs []string
	RequestID string
}

// HTTPClient implements Client against the provider's JSON API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a media client. The timeout bounds synchronous
// generation, which can take minutes.
func NewHTTPClient(cfg config.MediaConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	body := generateRequest{
		PlanID: req.PlanID.String(),
		Item: generateItem{
			ID:     req.ItemID,
			Type:   req.Type,
			Prompt: req.Prompt,
		},
		Async: req.Async,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, bytes.TrimSpace(snippet))
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding media response: %w", err)
	}

	urls := make([]string, 0, len(out.MediaURLs))
	for _, u := range out.MediaURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return &GenerateResult{
		Generated: out.Generated,
		Message:   out.Message,
		MediaURLs: urls,
		RequestID: out.RequestID,
	}, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

// --- wire types ---

type generateRequest struct {
	PlanID string       `json:"plan_id"`
	Item   generateItem `json:"item"`
	Async  bool         `json:"async"`
}

type generateItem struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Generated int      `json:"generated"`
	Message   string   `json:"message"`
	MediaURLs []string `json:"media_urls"`
	RequestID string   `json:"request_id"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
