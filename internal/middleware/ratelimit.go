package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per authenticated actor. Requests without an
// actor in context are keyed by client IP. A receiver polling peek faster
// than the limit gets 429 with the window length in Retry-After.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	window := time.Minute
	return httprate.Limit(
		requestsPerMinute,
		window,
		httprate.WithKeyFuncs(keyByActor),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limit", "rate limit exceeded")
		}),
	)
}

func keyByActor(r *http.Request) (string, error) {
	if a, ok := GetActor(r.Context()); ok {
		return "actor:" + a.String(), nil
	}
	return httprate.KeyByIP(r)
}
