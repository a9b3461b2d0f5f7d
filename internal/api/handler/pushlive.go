package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/internal/pushlive"
)

// PushLiver promotes a draft plan to live.
type PushLiver interface {
	PushLive(ctx context.Context, planID uuid.UUID) (*pushlive.Result, error)
}

// NewPushLiveHandler returns an http.HandlerFunc for POST /api/v1/plans/{planID}/push-live.
// Per-item scheduling failures are part of a 200 response; only a failed
// status write is an error.
func NewPushLiveHandler(plans PlanGetter, svc PushLiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, ok := ownedPlan(w, r, plans)
		if !ok {
			return
		}

		res, err := svc.PushLive(r.Context(), plan.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, res)
	}
}
