// Package poller detects completion of asynchronous media generation by
// re-reading the item at a fixed interval.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/store"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// Defaults give roughly two minutes of polling.
const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 40
)

// Outcome is how a poll loop ended.
type Outcome string

const (
	// OutcomeReady: the item is ready with media different from the baseline.
	OutcomeReady Outcome = "ready"
	// OutcomeFailed: the item was marked failed, or it no longer exists.
	OutcomeFailed Outcome = "failed"
	// OutcomeInconclusive: attempts ran out with neither observed. Check later.
	OutcomeInconclusive Outcome = "inconclusive"
	// OutcomeCancelled: the loop was stopped before reaching a verdict.
	OutcomeCancelled Outcome = "cancelled"
)

// ItemReader reads one item.
type ItemReader interface {
	GetItem(ctx context.Context, planID uuid.UUID, itemID string) (*models.ScheduleItem, error)
}

// Result is the verdict of one poll loop. Item is the last successful read.
type Result struct {
	Outcome  Outcome              `json:"outcome"`
	Attempts int                  `json:"attempts"`
	Item     *models.ScheduleItem `json:"item,omitempty"`
}

// Poller checks a single item until it settles or attempts run out.
type Poller struct {
	items       ItemReader
	interval    time.Duration
	maxAttempts int
}

// New creates a Poller. Non-positive values fall back to the defaults.
func New(items ItemReader, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{items: items, interval: interval, maxAttempts: maxAttempts}
}

// Poll waits one interval before every check and stops at the first check
// that settles the item. It never writes to the item.
func (p *Poller) Poll(ctx context.Context, planID uuid.UUID, itemID, baseline string) Result {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *models.ScheduleItem
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeCancelled, Attempts: attempt - 1, Item: last}
		case <-ticker.C:
		}

		item, err := p.items.GetItem(ctx, planID, itemID)
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrItemNotFound) {
			slog.Warn("polled item no longer exists", "plan_id", planID, "item_id", itemID)
			return Result{Outcome: OutcomeFailed, Attempts: attempt}
		}
		if err != nil {
			if ctx.Err() != nil {
				return Result{Outcome: OutcomeCancelled, Attempts: attempt, Item: last}
			}
			slog.Warn("poll check failed", "plan_id", planID, "item_id", itemID, "attempt", attempt, "error", err)
			continue
		}
		last = item

		if outcome, done := settled(item, baseline); done {
			return Result{Outcome: outcome, Attempts: attempt, Item: item}
		}
	}
	return Result{Outcome: OutcomeInconclusive, Attempts: p.maxAttempts, Item: last}
}

func settled(item *models.ScheduleItem, baseline string) (Outcome, bool) {
	switch item.Status {
	case models.ItemStatusFailed:
		return OutcomeFailed, true
	case models.ItemStatusReady:
		if url := primaryMedia(item); url != "" && url != baseline {
			return OutcomeReady, true
		}
	}
	return "", false
}

func primaryMedia(item *models.ScheduleItem) string {
	if item.MediaURL != nil && *item.MediaURL != "" {
		return *item.MediaURL
	}
	if len(item.MediaURLs) > 0 {
		return item.MediaURLs[0]
	}
	return ""
}
