package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/classboard/classboard/internal/platform/httpx"
	"github.com/classboard/classboard/internal/shared"
)

// RateLimitKey buckets authenticated requests by identity and the rest by
// client IP. It must run after Authenticate.
func RateLimitKey(r *http.Request) (string, error) {
	if ident, ok := IdentityFromContext(r.Context()); ok {
		return "identity:" + ident.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

// RateLimit allows limit requests per window for each RateLimitKey bucket
// and answers the excess with a 429 problem.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(RateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.RespondError(w, fmt.Errorf("%w: retry after %s", shared.ErrRateLimited, window))
		}),
	)
}
