package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// Sweeper fails every stuck in-flight job.
type Sweeper interface {
	Sweep(ctx context.Context) (models.RecoverySweepResult, error)
}

type purgeResponse struct {
	models.RecoverySweepResult
	Total int64 `json:"total"`
}

// NewPurgeHandler returns an http.HandlerFunc for POST /api/v1/admin/purge.
// A partial sweep answers 500 with the counts that did succeed in details.
func NewPurgeHandler(svc Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Sweep(r.Context())
		out := purgeResponse{RecoverySweepResult: res, Total: res.Total()}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "SWEEP_INCOMPLETE", err.Error(), out)
			return
		}
		response.JSON(w, out)
	}
}
