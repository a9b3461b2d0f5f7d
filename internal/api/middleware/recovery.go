package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kiranshivaraju/contentpilot/internal/api/response"
)

// Recovery turns a handler panic into a 500 envelope. The panicking request's
// profile, when authenticated, is logged with the stack.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			attrs := []any{
				"error", rec,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			}
			if id, ok := GetProfileID(r); ok {
				attrs = append(attrs, "profile_id", id)
			}
			slog.Error("panic recovered", attrs...)
			response.Internal(w, "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}
