// Package recovery forces stuck in-flight jobs into a terminal failed state.
package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/contentpilot/internal/events"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Reason is written to every job failed by a sweep.
const Reason = "Cancelled by recovery sweep"

// Store is the slice of the data layer a sweep touches.
type Store interface {
	FailInFlightTasks(ctx context.Context, reason string) (int64, error)
	FailInFlightPreviewJobs(ctx context.Context, reason string) (int64, error)
	FailGeneratingItems(ctx context.Context, reason string) (int64, error)
}

// Observer receives sweep results; internal/metrics implements it.
type Observer interface {
	ObserveSweep(r models.RecoverySweepResult)
}

type nopObserver struct{}

func (nopObserver) ObserveSweep(models.RecoverySweepResult) {}

// SweepEvent is published after every sweep, including partially failed ones.
type SweepEvent struct {
	models.RecoverySweepResult
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// Sweeper runs recovery sweeps.
type Sweeper struct {
	store    Store
	events   events.Publisher
	observer Observer
}

// Option configures a Sweeper.
type Option func(*Sweeper)

func WithPublisher(p events.Publisher) Option {
	return func(s *Sweeper) { s.events = p }
}

func WithObserver(o Observer) Option {
	return func(s *Sweeper) { s.observer = o }
}

// New creates a Sweeper.
func New(st Store, opts ...Option) *Sweeper {
	s := &Sweeper{store: st, events: events.NoopPublisher{}, observer: nopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep fails tasks, preview jobs and generating schedule items concurrently.
// The three updates are independent: one failing does not stop the others, and
// the counts of those that succeeded are returned alongside the first error.
// Running it twice in a row affects nothing the second time.
func (s *Sweeper) Sweep(ctx context.Context) (models.RecoverySweepResult, error) {
	var res models.RecoverySweepResult

	// Plain Group, not WithContext: a failed sweep must not cancel its siblings.
	var g errgroup.Group
	g.Go(func() error {
		n, err := s.store.FailInFlightTasks(ctx, Reason)
		res.Tasks = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.FailInFlightPreviewJobs(ctx, Reason)
		res.PreviewJobs = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.FailGeneratingItems(ctx, Reason)
		res.ScheduleItems = n
		return err
	})
	err := g.Wait()

	s.observer.ObserveSweep(res)
	ev := SweepEvent{RecoverySweepResult: res, At: time.Now().UTC()}
	if err != nil {
		ev.Error = err.Error()
		slog.Error("recovery sweep incomplete", "tasks", res.Tasks, "preview_jobs", res.PreviewJobs,
			"schedule_items", res.ScheduleItems, "error", err)
	} else {
		slog.Info("recovery sweep complete", "tasks", res.Tasks, "preview_jobs", res.PreviewJobs,
			"schedule_items", res.ScheduleItems)
	}
	if perr := s.events.Publish(ctx, events.TopicRecoverySweep, ev); perr != nil {
		slog.Warn("failed to publish sweep event", "error", perr)
	}
	return res, err
}
