package poller

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/cache"
	"github.com/kiranshivaraju/contentpilot/internal/events"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

var (
	ErrAlreadyWatching = errors.New("item is already being watched")
	ErrShuttingDown    = errors.New("poll coordinator is shutting down")
)

// StateCache mirrors poll outcomes for observers.
type StateCache interface {
	SetGenerationState(ctx context.Context, state models.GenerationState, ttl time.Duration) error
}

// Observer receives one call per finished watch; internal/metrics implements it.
type Observer interface {
	ObservePoll(outcome string, attempts int)
}

type nopObserver struct{}

func (nopObserver) ObservePoll(string, int) {}

// WatchInfo describes an active watch.
type WatchInfo struct {
	PlanID    uuid.UUID `json:"plan_id"`
	ItemID    string    `json:"item_id"`
	Baseline  string    `json:"baseline_media_url,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// WatchEvent is published when a watch ends.
type WatchEvent struct {
	PlanID   string    `json:"plan_id"`
	ItemID   string    `json:"item_id"`
	Outcome  Outcome   `json:"outcome"`
	Attempts int       `json:"attempts"`
	At       time.Time `json:"at"`
}

type watchKey struct {
	planID uuid.UUID
	itemID string
}

type session struct {
	info   WatchInfo
	cancel context.CancelFunc
}

// Coordinator runs one poll loop per item, each in its own goroutine.
type Coordinator struct {
	poller   *Poller
	cache    StateCache
	events   events.Publisher
	observer Observer
	onResult func(WatchInfo, Result)

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool

	sessions map[watchKey]*session
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

func WithCache(c StateCache) CoordinatorOption {
	return func(co *Coordinator) { co.cache = c }
}

func WithPublisher(p events.Publisher) CoordinatorOption {
	return func(co *Coordinator) { co.events = p }
}

func WithObserver(o Observer) CoordinatorOption {
	return func(co *Coordinator) { co.observer = o }
}

// WithResultHandler is called once per finished watch, after it is removed from the active set.
func WithResultHandler(fn func(WatchInfo, Result)) CoordinatorOption {
	return func(co *Coordinator) { co.onResult = fn }
}

// NewCoordinator creates a Coordinator around p.
func NewCoordinator(p *Poller, opts ...CoordinatorOption) *Coordinator {
	ctx, stop := context.WithCancel(context.Background())
	c := &Coordinator{
		poller:   p,
		events:   events.NoopPublisher{},
		observer: nopObserver{},
		ctx:      ctx,
		stop:     stop,
		sessions: make(map[watchKey]*session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Watch starts polling the item in the background. A second watch on the same
// item is refused while the first is running.
func (c *Coordinator) Watch(planID uuid.UUID, itemID, baseline string) (WatchInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return WatchInfo{}, ErrShuttingDown
	}
	key := watchKey{planID, itemID}
	if _, ok := c.sessions[key]; ok {
		return WatchInfo{}, ErrAlreadyWatching
	}

	ctx, cancel := context.WithCancel(c.ctx)
	s := &session{
		info:   WatchInfo{PlanID: planID, ItemID: itemID, Baseline: baseline, StartedAt: time.Now().UTC()},
		cancel: cancel,
	}
	c.sessions[key] = s

	c.wg.Add(1)
	go c.run(ctx, key, s)

	slog.Info("poll watch started", "plan_id", planID, "item_id", itemID)
	return s.info, nil
}

func (c *Coordinator) run(ctx context.Context, key watchKey, s *session) {
	defer c.wg.Done()
	defer s.cancel()

	res := c.poller.Poll(ctx, key.planID, key.itemID, s.info.Baseline)

	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()

	slog.Info("poll watch finished", "plan_id", key.planID, "item_id", key.itemID,
		"outcome", res.Outcome, "attempts", res.Attempts)
	c.observer.ObservePoll(string(res.Outcome), res.Attempts)

	// The watch context may be cancelled already; reporting must still go out.
	reportCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.cache != nil {
		status := models.ItemStatusGenerating
		if res.Item != nil {
			status = res.Item.Status
		}
		err := c.cache.SetGenerationState(reportCtx, models.GenerationState{
			PlanID:   key.planID.String(),
			ItemID:   key.itemID,
			Status:   status,
			Outcome:  string(res.Outcome),
			Attempts: res.Attempts,
		}, cache.DefaultGenerationStateTTL)
		if err != nil {
			slog.Debug("failed to mirror poll outcome", "plan_id", key.planID, "item_id", key.itemID, "error", err)
		}
	}

	ev := WatchEvent{
		PlanID:   key.planID.String(),
		ItemID:   key.itemID,
		Outcome:  res.Outcome,
		Attempts: res.Attempts,
		At:       time.Now().UTC(),
	}
	if err := c.events.Publish(reportCtx, events.TopicGenerationWatch, ev); err != nil {
		slog.Warn("failed to publish watch event", "plan_id", key.planID, "item_id", key.itemID, "error", err)
	}

	if c.onResult != nil {
		c.onResult(s.info, res)
	}
}

// Cancel stops the item's watch. It reports whether one was running.
func (c *Coordinator) Cancel(planID uuid.UUID, itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[watchKey{planID, itemID}]
	if !ok {
		return false
	}
	s.cancel()
	return true
}

// Active lists running watches, oldest first.
func (c *Coordinator) Active() []WatchInfo {
	c.mu.Lock()
	out := make([]WatchInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s.info)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Shutdown cancels every watch, refuses new ones and waits for the loops to exit.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stop()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
