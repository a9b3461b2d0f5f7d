// Package generation drives media generation for a single schedule item.
//
// Videos are submitted asynchronously and completed out of band (see
// internal/poller); every other content type is generated synchronously.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/cache"
	"github.com/kiranshivaraju/contentpilot/internal/events"
	"github.com/kiranshivaraju/contentpilot/internal/media"
	"github.com/kiranshivaraju/contentpilot/internal/store"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// Modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// RetryableMessage is recorded on an item when the provider produced nothing.
const RetryableMessage = "No media was generated. Try generating again."

// Store is the slice of the plan store the orchestrator needs.
type Store interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*models.ContentPlan, error)
	UpdateItemStatus(ctx context.Context, planID uuid.UUID, itemID string, status string, opts ...store.ItemUpdateOption) (*models.ScheduleItem, error)
}

// StateCache mirrors generation progress for observers.
type StateCache interface {
	SetGenerationState(ctx context.Context, state models.GenerationState, ttl time.Duration) error
}

// Observer receives one result per Generate call; internal/metrics implements it.
type Observer interface {
	ObserveGeneration(mode, result string)
}

type nopObserver struct{}

func (nopObserver) ObserveGeneration(string, string) {}

// Result reports what Generate did. For the async path Submitted is true and
// Baseline is the media URL the poller must see replaced.
type Result struct {
	Mode      string               `json:"mode"`
	Status    string               `json:"status"`
	Submitted bool                 `json:"submitted"`
	Baseline  string               `json:"baseline_media_url,omitempty"`
	Message   string               `json:"message,omitempty"`
	Item      *models.ScheduleItem `json:"item"`
}

// Orchestrator routes items to the sync or async generation path.
type Orchestrator struct {
	store         Store
	media         media.Client
	cache         StateCache
	events        events.Publisher
	observer      Observer
	submitTimeout time.Duration

	inflight sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithCache(c StateCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithSubmitTimeout bounds the background async submission. Default 120s.
func WithSubmitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.submitTimeout = d }
}

// New creates an Orchestrator.
func New(st Store, mc media.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         st,
		media:         mc,
		events:        events.NoopPublisher{},
		observer:      nopObserver{},
		submitTimeout: media.DefaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate moves the item to generating and then either blocks on the
// provider (sync) or hands the submission to a background goroutine (async).
//
// A sync provider error is returned as is and the item is left generating;
// only a call that succeeds with zero assets marks the item failed.
func (o *Orchestrator) Generate(ctx context.Context, planID uuid.UUID, itemID string) (*Result, error) {
	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	item := plan.FindItem(itemID)
	if item == nil {
		return nil, store.ErrItemNotFound
	}

	baseline := deref(item.MediaURL)
	prompt := deref(item.MediaPrompt)
	if prompt == "" {
		prompt = item.Caption
	}

	item, err = o.store.UpdateItemStatus(ctx, planID, itemID, models.ItemStatusGenerating, store.ClearRequestID())
	if err != nil {
		return nil, fmt.Errorf("mark item generating: %w", err)
	}
	o.emit(ctx, planID, item, "")

	req := media.GenerateRequest{PlanID: planID, ItemID: itemID, Type: item.Type, Prompt: prompt}

	if item.Type == models.ContentTypeVideo {
		req.Async = true
		o.submitAsync(ctx, req)
		o.observer.ObserveGeneration(ModeAsync, "submitted")
		return &Result{
			Mode:      ModeAsync,
			Status:    models.ItemStatusGenerating,
			Submitted: true,
			Baseline:  baseline,
			Item:      item,
		}, nil
	}

	return o.generateSync(ctx, planID, item, req, baseline)
}

func (o *Orchestrator) generateSync(ctx context.Context, planID uuid.UUID, item *models.ScheduleItem, req media.GenerateRequest, baseline string) (*Result, error) {
	res, err := o.media.Generate(ctx, req)
	if err != nil {
		o.observer.ObserveGeneration(ModeSync, "error")
		o.mirror(ctx, planID, item.ID, models.ItemStatusGenerating, "provider_error", err.Error(), "")
		return nil, fmt.Errorf("generate media for item %s: %w", item.ID, err)
	}

	assets := res.Generated
	if len(res.MediaURLs) > assets {
		assets = len(res.MediaURLs)
	}
	if assets == 0 {
		return o.fail(ctx, planID, item.ID, retryableMessage(res.Message))
	}

	// The provider may have written the media onto the item itself.
	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("re-fetch plan: %w", err)
	}
	current := plan.FindItem(item.ID)
	if current == nil {
		return nil, store.ErrItemNotFound
	}

	urls := res.MediaURLs
	if len(urls) == 0 {
		if written := mediaOf(current); len(written) > 0 && written[0] != baseline {
			urls = written
		}
	}
	if len(urls) == 0 {
		return o.fail(ctx, planID, item.ID, retryableMessage(res.Message))
	}

	updated, err := o.store.UpdateItemStatus(ctx, planID, item.ID, models.ItemStatusReady,
		store.WithMediaURLs(urls...), store.ClearRequestID())
	if err != nil {
		return nil, fmt.Errorf("mark item ready: %w", err)
	}
	o.observer.ObserveGeneration(ModeSync, models.ItemStatusReady)
	o.emit(ctx, planID, updated, res.Message)

	slog.Info("media generated", "plan_id", planID, "item_id", item.ID, "assets", len(urls))
	return &Result{Mode: ModeSync, Status: updated.Status, Message: res.Message, Item: updated}, nil
}

func (o *Orchestrator) fail(ctx context.Context, planID uuid.UUID, itemID, msg string) (*Result, error) {
	updated, err := o.store.UpdateItemStatus(ctx, planID, itemID, models.ItemStatusFailed,
		store.WithErrorMessage(msg), store.ClearRequestID())
	if err != nil {
		return nil, fmt.Errorf("mark item failed: %w", err)
	}
	o.observer.ObserveGeneration(ModeSync, models.ItemStatusFailed)
	o.emit(ctx, planID, updated, msg)

	slog.Warn("media generation produced no assets", "plan_id", planID, "item_id", itemID)
	return &Result{Mode: ModeSync, Status: updated.Status, Message: msg, Item: updated}, nil
}

// submitAsync runs the submission in the background under its own timer. The
// caller's cancellation does not abort it; a timeout means the provider is
// still working and is not a failure.
func (o *Orchestrator) submitAsync(ctx context.Context, req media.GenerateRequest) {
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()

		subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.submitTimeout)
		defer cancel()

		res, err := o.media.Generate(subCtx, req)
		switch {
		case err == nil:
			if res.RequestID == "" {
				slog.Info("async generation submitted", "plan_id", req.PlanID, "item_id", req.ItemID)
				return
			}
			item, err := o.store.UpdateItemStatus(subCtx, req.PlanID, req.ItemID, models.ItemStatusGenerating,
				store.WithRequestID(res.RequestID))
			if err != nil {
				slog.Warn("failed to record generation request id", "plan_id", req.PlanID, "item_id", req.ItemID, "error", err)
				return
			}
			o.emit(subCtx, req.PlanID, item, res.Message)
			slog.Info("async generation submitted", "plan_id", req.PlanID, "item_id", req.ItemID, "request_id", res.RequestID)

		case errors.Is(err, media.ErrTimeout):
			slog.Info("async generation still running after submit timeout", "plan_id", req.PlanID, "item_id", req.ItemID)

		case errors.Is(err, media.ErrRejected):
			msg := "Media provider rejected the request: " + err.Error()
			item, uerr := o.store.UpdateItemStatus(subCtx, req.PlanID, req.ItemID, models.ItemStatusFailed,
				store.WithErrorMessage(msg), store.ClearRequestID())
			if uerr != nil {
				slog.Warn("failed to mark rejected generation", "plan_id", req.PlanID, "item_id", req.ItemID, "error", uerr)
				return
			}
			o.emit(subCtx, req.PlanID, item, msg)

		default:
			slog.Warn("async generation submit failed", "plan_id", req.PlanID, "item_id", req.ItemID, "error", err)
		}
	}()
}

// Wait blocks until background submissions finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) emit(ctx context.Context, planID uuid.UUID, item *models.ScheduleItem, msg string) {
	requestID := deref(item.GenerationRequestID)
	if msg == "" {
		msg = deref(item.ErrorMessage)
	}
	o.mirror(ctx, planID, item.ID, item.Status, "", msg, requestID)

	ev := events.ItemEvent{
		PlanID:    planID.String(),
		ItemID:    item.ID,
		Status:    item.Status,
		Message:   msg,
		MediaURLs: mediaOf(item),
		RequestID: requestID,
		At:        time.Now().UTC(),
	}
	if err := o.events.Publish(ctx, events.ItemTopic(item.Status), ev); err != nil {
		slog.Warn("failed to publish item event", "plan_id", planID, "item_id", item.ID, "error", err)
	}
}

func (o *Orchestrator) mirror(ctx context.Context, planID uuid.UUID, itemID, status, outcome, msg, requestID string) {
	if o.cache == nil {
		return
	}
	err := o.cache.SetGenerationState(ctx, models.GenerationState{
		PlanID:    planID.String(),
		ItemID:    itemID,
		Status:    status,
		Outcome:   outcome,
		RequestID: requestID,
		Message:   msg,
	}, cache.DefaultGenerationStateTTL)
	if err != nil {
		slog.Debug("failed to mirror generation state", "plan_id", planID, "item_id", itemID, "error", err)
	}
}

func retryableMessage(providerMsg string) string {
	if providerMsg == "" {
		return RetryableMessage
	}
	return RetryableMessage + " (" + providerMsg + ")"
}

// mediaOf returns every media URL on the item, primary first.
func mediaOf(it *models.ScheduleItem) []string {
	if len(it.MediaURLs) > 0 {
		return it.MediaURLs
	}
	if u := deref(it.MediaURL); u != "" {
		return []string{u}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
