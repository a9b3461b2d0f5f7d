package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/ai"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
	"github.com/kiranshivaraju/contentpilot/internal/media"
	"github.com/kiranshivaraju/contentpilot/internal/poller"
	"github.com/kiranshivaraju/contentpilot/internal/store"
)

// writeError maps domain errors onto the JSON error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrItemNotFound):
		response.Error(w, http.StatusNotFound, "ITEM_NOT_FOUND", "Schedule item not found", nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Resource not found", nil)
	case errors.Is(err, store.ErrVersionConflict):
		response.Error(w, http.StatusConflict, "VERSION_CONFLICT",
			"The plan was changed by someone else; reload and retry", nil)
	case errors.Is(err, store.ErrInvalidTransition):
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, store.ErrDuplicateKey):
		response.Error(w, http.StatusConflict, "DUPLICATE_KEY", "A resource with this name already exists", nil)
	case errors.Is(err, store.ErrInvalidItem):
		response.Error(w, http.StatusBadRequest, "INVALID_ITEM", err.Error(), nil)
	case errors.Is(err, poller.ErrAlreadyWatching):
		response.Error(w, http.StatusConflict, "ALREADY_WATCHING", "This item is already being watched", nil)
	case errors.Is(err, poller.ErrShuttingDown):
		response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "The server is shutting down", nil)
	case errors.Is(err, ai.ErrProviderUnavailable):
		response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
			"The AI provider is not available", nil)
	case errors.Is(err, ai.ErrInferenceTimeout):
		response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
			"The AI provider took too long and was cancelled", nil)
	case errors.Is(err, media.ErrProviderUnavailable):
		response.Error(w, http.StatusBadGateway, "MEDIA_PROVIDER_UNAVAILABLE",
			"The media provider is not available", nil)
	case errors.Is(err, media.ErrTimeout):
		response.Error(w, http.StatusGatewayTimeout, "MEDIA_PROVIDER_TIMEOUT",
			"The media provider took too long to answer", nil)
	case errors.Is(err, media.ErrRejected):
		response.Error(w, http.StatusUnprocessableEntity, "MEDIA_REJECTED", err.Error(), nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Internal(w, "An unexpected error occurred")
	}
}

// uuidParam parses a UUID path parameter, writing a 400 on failure.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.BadRequest(w, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
