// Package events publishes plan and item status transitions to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Topics, relative to the configured subject prefix.
const (
	TopicPlanLive        = "plan.live"
	TopicGenerationWatch = "generation.watch"
	TopicRecoverySweep   = "recovery.sweep"
)

// ItemTopic is the topic for an item entering status.
func ItemTopic(status string) string {
	return "item." + status
}

// Publisher emits events. Publishing is best-effort; callers log and continue on error.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// ItemEvent describes a schedule item status change.
type ItemEvent struct {
	PlanID    string    `json:"plan_id"`
	ItemID    string    `json:"item_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	MediaURLs []string  `json:"media_urls,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

// PlanEvent describes a plan-level transition.
type PlanEvent struct {
	PlanID         string    `json:"plan_id"`
	Status         string    `json:"status"`
	CalendarEvents int64     `json:"calendar_events"`
	PostsScheduled int       `json:"posts_scheduled"`
	PostsFailed    int       `json:"posts_failed"`
	At             time.Time `json:"at"`
}

// NATSPublisher publishes JSON payloads on <prefix>.<topic>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials NATS and returns a publisher rooted at prefix.
func Connect(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("contentpilot"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSPublisher(conn, prefix), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the full subject for topic.
func (p *NATSPublisher) Subject(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(topic), data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NoopPublisher discards every event. Used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
