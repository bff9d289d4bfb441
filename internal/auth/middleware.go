package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/classboard/classboard/internal/platform/httpx"
	"github.com/classboard/classboard/internal/shared"
)

// Middleware resolves bearer tokens into request identities.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate attaches the identity behind the Authorization header. A
// request without the header continues anonymously; a bad token is rejected.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			httpx.RespondError(w, shared.ErrInvalidCredentials)
			return
		}
		ident, err := m.Service.Authenticate(r.Context(), raw)
		if err != nil {
			if !isClientError(err) && m.Logger != nil {
				m.Logger.Error("authenticate token", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

// RequireIdentity rejects anonymous requests.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isClientError(err error) bool {
	return shared.UserSafeMessage(err) != "internal error"
}
