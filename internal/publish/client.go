// Package publish is the HTTP client for the external publishing provider.
package publish

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

	"github.com/kiranshivaraju/contentpilot/internal/config"
)

// Sentinel errors for publishing provider failures.
var (
	ErrUnavailable = errors.New("publishing provider unavailable")
	ErrTimeout     = errors.New("publishing provider timeout")
	ErrRejected    = errors.New("publishing provider rejected post")
)

// Post kinds understood by the provider.
const (
	KindVideo  = "video"
	KindPhotos = "photos"
	KindText   = "text"
)

// scheduledLayout is a wall-clock time; the provider applies Post.Timezone.
const scheduledLayout = "2006-01-02T15:04:05"

// Client schedules posts with the publishing provider.
type Client interface {
	Schedule(ctx context.Context, post Post) (*Receipt, error)
}

// Post is one scheduled post. ScheduledAt is interpreted in Timezone.
type Post struct {
	User        string
	Kind        string
	Platforms   []string
	Title       string
	MediaURL    string
	MediaURLs   []string
	ScheduledAt time.Time
	Timezone    string
}

// Receipt is what the provider returned for an accepted post. Both fields may be empty.
type Receipt struct {
	ID     string
	Status string
}

// HTTPClient implements Client against the provider's JSON API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new publishing client.
func NewHTTPClient(cfg config.PublishConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) Schedule(ctx context.Context, post Post) (*Receipt, error) {
	if len(post.Platforms) == 0 {
		return nil, fmt.Errorf("%w: no platforms", ErrRejected)
	}

	body := postRequest{
		User:          post.User,
		Type:          post.Kind,
		Platforms:     post.Platforms,
		Title:         post.Title,
		MediaURL:      post.MediaURL,
		MediaURLs:     post.MediaURLs,
		ScheduledDate: post.ScheduledAt.Format(scheduledLayout),
		Timezone:      post.Timezone,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/posts", bytes.NewReader(payload))
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

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := bytes.TrimSpace(raw)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, snippet)
	}

	// Any 2xx is success; the body is informational.
	var out postResponse
	_ = json.Unmarshal(raw, &out)
	return &Receipt{ID: out.ID, Status: out.Status}, nil
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

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// --- wire types ---

type postRequest struct {
	User          string   `json:"user"`
	Type          string   `json:"type"`
	Platforms     []string `json:"platforms"`
	Title         string   `json:"title"`
	MediaURL      string   `json:"media_url,omitempty"`
	MediaURLs     []string `json:"media_urls,omitempty"`
	ScheduledDate string   `json:"scheduled_date"`
	Timezone      string   `json:"timezone"`
}

type postResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
