package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/internal/generation"
	"github.com/kiranshivaraju/contentpilot/internal/poller"
	"github.com/kiranshivaraju/contentpilot/internal/store"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// MediaGenerator starts media generation for one item.
type MediaGenerator interface {
	Generate(ctx context.Context, planID uuid.UUID, itemID string) (*generation.Result, error)
}

// Watcher manages background poll loops.
type Watcher interface {
	Watch(planID uuid.UUID, itemID, baseline string) (poller.WatchInfo, error)
	Cancel(planID uuid.UUID, itemID string) bool
	Active() []poller.WatchInfo
}

// StateReader reads the mirrored generation state of an item.
type StateReader interface {
	GetGenerationState(ctx context.Context, planID uuid.UUID, itemID string) (*models.GenerationState, bool, error)
}

type generateResponse struct {
	*generation.Result
	Watch *poller.WatchInfo `json:"watch,omitempty"`
}

// NewGenerateHandler returns an http.HandlerFunc for
// POST /api/v1/plans/{planID}/items/{itemID}/generate. Async submissions are
// handed to the watcher and answered with 202.
func NewGenerateHandler(plans PlanGetter, gen MediaGenerator, watcher Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, plans)
		if !ok {
			return
		}
		itemID := chi.URLParam(r, "itemID")

		res, err := gen.Generate(r.Context(), plan.ID, itemID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if !res.Submitted {
			response.JSON(w, generateResponse{Result: res})
			return
		}

		out := generateResponse{Result: res}
		info, err := watcher.Watch(plan.ID, itemID, res.Baseline)
		switch {
		case err == nil:
			out.Watch = &info
		case errors.Is(err, poller.ErrAlreadyWatching):
			// the running loop keeps its original baseline
			out.Watch = findWatch(watcher, plan.ID, itemID)
		default:
			writeError(w, r, err)
			return
		}
		response.Accepted(w, out)
	}
}

type watchStatus struct {
	Watching bool                    `json:"watching"`
	Watch    *poller.WatchInfo       `json:"watch,omitempty"`
	State    *models.GenerationState `json:"state,omitempty"`
	Item     *models.ScheduleItem    `json:"item"`
}

// NewWatchStatusHandler returns an http.HandlerFunc for
// GET /api/v1/plans/{planID}/items/{itemID}/watch.
func NewWatchStatusHandler(plans PlanGetter, watcher Watcher, states StateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, plans)
		if !ok {
			return
		}
		item := plan.FindItem(chi.URLParam(r, "itemID"))
		if item == nil {
			writeError(w, r, store.ErrItemNotFound)
			return
		}

		out := watchStatus{Item: item, Watch: findWatch(watcher, plan.ID, item.ID)}
		out.Watching = out.Watch != nil
		if states != nil {
			// advisory only; a cache miss or error leaves State empty
			if st, found, err := states.GetGenerationState(r.Context(), plan.ID, item.ID); err == nil && found {
				out.State = st
			}
		}
		response.JSON(w, out)
	}
}

// NewWatchStartHandler returns an http.HandlerFunc for
// POST /api/v1/plans/{planID}/items/{itemID}/watch. It re-attaches a watch,
// e.g. after a restart. The baseline defaults to the item's current media.
func NewWatchStartHandler(plans PlanGetter, watcher Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, plans)
		if !ok {
			return
		}
		item := plan.FindItem(chi.URLParam(r, "itemID"))
		if item == nil {
			writeError(w, r, store.ErrItemNotFound)
			return
		}

		var req struct {
			Baseline *string `json:"baseline_media_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
		baseline := ""
		switch {
		case req.Baseline != nil:
			baseline = *req.Baseline
		case item.MediaURL != nil:
			baseline = *item.MediaURL
		}

		info, err := watcher.Watch(plan.ID, item.ID, baseline)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Accepted(w, info)
	}
}

// NewWatchCancelHandler returns an http.HandlerFunc for
// DELETE /api/v1/plans/{planID}/items/{itemID}/watch.
func NewWatchCancelHandler(plans PlanGetter, watcher Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, plans)
		if !ok {
			return
		}
		itemID := chi.URLParam(r, "itemID")
		if !watcher.Cancel(plan.ID, itemID) {
			response.Error(w, http.StatusNotFound, "WATCH_NOT_FOUND", "No active watch for this item", nil)
			return
		}
		response.JSON(w, map[string]any{"plan_id": plan.ID, "item_id": itemID, "cancelled": true})
	}
}

func findWatch(watcher Watcher, planID uuid.UUID, itemID string) *poller.WatchInfo {
	for _, info := range watcher.Active() {
		if info.PlanID == planID && info.ItemID == itemID {
			return &info
		}
	}
	return nil
}
