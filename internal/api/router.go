package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/contentpilot/internal/api/middleware"
	"github.com/kiranshivaraju/contentpilot/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	// HTTPObserver, when set, counts every request.
	HTTPObserver mw.HTTPObserver

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	AssistantHandler    http.HandlerFunc
	ListPlansHandler    http.HandlerFunc
	GetPlanHandler      http.HandlerFunc
	ReplaceItemsHandler http.HandlerFunc
	ResetPlansHandler   http.HandlerFunc
	GenerateHandler     http.HandlerFunc
	WatchStatusHandler  http.HandlerFunc
	WatchStartHandler   http.HandlerFunc
	WatchCancelHandler  http.HandlerFunc
	PushLiveHandler     http.HandlerFunc

	PurgeHandler     http.HandlerFunc
	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if deps.HTTPObserver != nil {
		r.Use(mw.Instrument(deps.HTTPObserver))
	}

	// Public
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/assistant", orNotImplemented(deps.AssistantHandler))

		r.Route("/api/v1/plans", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.ListPlansHandler))
			r.Delete("/", orNotImplemented(deps.ResetPlansHandler))

			r.Route("/{planID}", func(r chi.Router) {
				r.Get("/", orNotImplemented(deps.GetPlanHandler))
				r.Put("/items", orNotImplemented(deps.ReplaceItemsHandler))
				r.Post("/push-live", orNotImplemented(deps.PushLiveHandler))

				r.Post("/items/{itemID}/generate", orNotImplemented(deps.GenerateHandler))
				r.Get("/items/{itemID}/watch", orNotImplemented(deps.WatchStatusHandler))
				r.Post("/items/{itemID}/watch", orNotImplemented(deps.WatchStartHandler))
				r.Delete("/items/{itemID}/watch", orNotImplemented(deps.WatchCancelHandler))
			})
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeAdmin))

			r.Post("/api/v1/admin/purge", orNotImplemented(deps.PurgeHandler))
			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
