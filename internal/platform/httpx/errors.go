// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/classboard/classboard/internal/shared"
)

type problemKind struct {
	err    error
	status int
	title  string
}

// Checked in order; the first sentinel the error wraps decides the status.
var problemKinds = []problemKind{
	{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
	{shared.ErrConflict, http.StatusConflict, "Conflict"},
	{shared.ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{shared.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{shared.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized"},
	{shared.ErrInvalidCredentials, http.StatusUnauthorized, "Unauthorized"},
	{shared.ErrRateLimited, http.StatusTooManyRequests, "Too Many Requests"},
}

// RespondError writes err as an RFC7807 problem. Errors outside the shared
// sentinels become a 500 with no detail.
func RespondError(w http.ResponseWriter, err error) {
	for _, k := range problemKinds {
		if !errors.Is(err, k.err) {
			continue
		}
		if k.status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Bearer realm="classboard"`)
		}
		Problem(w, k.status, k.title, shared.UserSafeMessage(err))
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
