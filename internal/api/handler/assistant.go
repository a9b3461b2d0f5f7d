package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/contentpilot/internal/api/middleware"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/internal/planner"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

const maxHistoryTurns = 40

// Assistant answers one user turn.
type Assistant interface {
	Generate(ctx context.Context, req planner.Request) (planner.Response, error)
}

// ProfileGetter loads a profile by id.
type ProfileGetter interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type assistantResponse struct {
	Kind    planner.Kind             `json:"kind"`
	Clarify *planner.ClarifyResponse `json:"clarify,omitempty"`
	Plan    *planner.PlanResponse    `json:"plan,omitempty"`
	Actions *planner.ActionsResponse `json:"actions,omitempty"`
	Message *planner.MessageResponse `json:"message,omitempty"`
}

// NewAssistantHandler returns an http.HandlerFunc for POST /api/v1/assistant.
func NewAssistantHandler(svc Assistant, profiles ProfileGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID, ok := mw.GetProfileID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing profile", nil)
			return
		}

		var req struct {
			Prompt   string           `json:"prompt"`
			Platform string           `json:"platform"`
			History  []models.Message `json:"history"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}

		req.Prompt = strings.TrimSpace(req.Prompt)
		if req.Prompt == "" {
			response.BadRequest(w, "prompt is required")
			return
		}
		if req.Platform == "" {
			response.BadRequest(w, "platform is required")
			return
		}
		for _, m := range req.History {
			if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
				response.BadRequest(w, "history roles must be user or assistant")
				return
			}
		}
		if len(req.History) > maxHistoryTurns {
			req.History = req.History[len(req.History)-maxHistoryTurns:]
		}

		profile, err := profiles.GetProfile(r.Context(), profileID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp, err := svc.Generate(r.Context(), planner.Request{
			Prompt:   req.Prompt,
			Profile:  *profile,
			Platform: strings.ToLower(req.Platform),
			History:  req.History,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		out := assistantResponse{Kind: resp.Kind()}
		switch v := resp.(type) {
		case *planner.ClarifyResponse:
			out.Clarify = v
		case *planner.PlanResponse:
			out.Plan = v
			response.Created(w, out)
			return
		case *planner.ActionsResponse:
			out.Actions = v
		case *planner.MessageResponse:
			out.Message = v
		}
		response.JSON(w, out)
	}
}
