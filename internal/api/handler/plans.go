package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/contentpilot/internal/api/middleware"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/internal/store"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// PlanGetter loads a plan by id.
type PlanGetter interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*models.ContentPlan, error)
}

// PlanStore is the plan CRUD the plan handlers need.
type PlanStore interface {
	PlanGetter
	ListPlansByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.ContentPlan, error)
	UpdateItems(ctx context.Context, planID uuid.UUID, items []models.ScheduleItem, opts ...store.PlanUpdateOption) (int, error)
	DeletePlans(ctx context.Context, profileID uuid.UUID, platforms []string) (int64, error)
}

// ownedPlan loads the {planID} plan and checks it belongs to the caller's
// profile. A foreign plan is reported as not found.
func ownedPlan(w http.ResponseWriter, r *http.Request, plans PlanGetter) (*models.ContentPlan, bool) {
	profileID, ok := mw.GetProfileID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing profile", nil)
		return nil, false
	}
	planID, ok := uuidParam(w, r, "planID")
	if !ok {
		return nil, false
	}
	plan, err := plans.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if plan.ProfileID != profileID {
		writeError(w, r, store.ErrNotFound)
		return nil, false
	}
	return plan, true
}

// NewListPlansHandler returns an http.HandlerFunc for GET /api/v1/plans.
func NewListPlansHandler(plans PlanStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID, ok := mw.GetProfileID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing profile", nil)
			return
		}

		list, err := plans.ListPlansByProfile(r.Context(), profileID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		platform := r.URL.Query().Get("platform")
		out := make([]*models.ContentPlan, 0, len(list))
		for _, p := range list {
			if platform == "" || strings.EqualFold(p.Platform, platform) {
				out = append(out, p)
			}
		}
		var filters map[string]string
		if platform != "" {
			filters = map[string]string{"platform": platform}
		}
		response.Collection(w, out, len(out), filters)
	}
}

// NewGetPlanHandler returns an http.HandlerFunc for GET /api/v1/plans/{planID}.
func NewGetPlanHandler(plans PlanGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, plans)
		if !ok {
			return
		}
		response.JSON(w, plan)
	}
}

// NewReplaceItemsHandler returns an http.HandlerFunc for PUT /api/v1/plans/{planID}/items.
// The body carries the complete ordered item list. expected_version turns the
// replace into a compare-and-swap.
func NewReplaceItemsHandler(plans PlanStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, plans)
		if !ok {
			return
		}

		var req struct {
			Items           []models.ScheduleItem `json:"schedule_items"`
			ExpectedVersion *int                  `json:"expected_version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
		if len(req.Items) == 0 {
			response.BadRequest(w, "schedule_items must not be empty")
			return
		}
		seen := make(map[string]bool, len(req.Items))
		for _, it := range req.Items {
			if seen[it.ID] {
				response.BadRequest(w, "duplicate schedule item id "+it.ID)
				return
			}
			seen[it.ID] = true
		}

		var opts []store.PlanUpdateOption
		if req.ExpectedVersion != nil {
			opts = append(opts, store.WithExpectedVersion(*req.ExpectedVersion))
		}
		version, err := plans.UpdateItems(r.Context(), plan.ID, req.Items, opts...)
		if err != nil {
			writeError(w, r, err)
			return
		}

		response.JSON(w, map[string]any{
			"plan_id": plan.ID,
			"version": version,
			"items":   len(req.Items),
		})
	}
}

// NewResetPlansHandler returns an http.HandlerFunc for DELETE /api/v1/plans?platform=...
// Every plan of the caller's profile on the named platforms is removed.
func NewResetPlansHandler(plans PlanStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID, ok := mw.GetProfileID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing profile", nil)
			return
		}

		var platforms []string
		for _, p := range r.URL.Query()["platform"] {
			if p = strings.TrimSpace(p); p != "" {
				platforms = append(platforms, p)
			}
		}
		if len(platforms) == 0 {
			response.BadRequest(w, "at least one platform is required")
			return
		}

		n, err := plans.DeletePlans(r.Context(), profileID, platforms)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, map[string]any{"deleted": n, "platforms": platforms})
	}
}
