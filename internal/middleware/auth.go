package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "marketpulse/internal/errors"
)

// APIKeyAuth rejects requests whose X-API-Key header does not match key.
// An empty key disables the check.
func APIKeyAuth(logger *slog.Logger, key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			provided := r.Header.Get("X-API-Key")
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				logger.WarnContext(ctx, "rejected API key",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("missing", provided == ""),
					slog.String("remote_addr", r.RemoteAddr))

				problem := apperrors.NewProblemDetails(
					http.StatusUnauthorized,
					apperrors.TypeUnauthorized,
					"Unauthorized",
					"A valid X-API-Key header is required",
					r.URL.Path,
				)
				render.Render(w, r, problem)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
