// Package auth issues API tokens and resolves the bearer identity of a
// request.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/classboard/classboard/internal/shared"
)

// Token is a stored API token. The secret is kept only as a bcrypt hash.
type Token struct {
	ID         string     `json:"id"`
	IdentityID string     `json:"identity_id"`
	Label      string     `json:"label,omitempty"`
	SecretHash string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the token was revoked.
func (t Token) Revoked() bool { return t.RevokedAt != nil }

// IssuedToken is returned once, at creation; the plaintext is not stored.
type IssuedToken struct {
	Token
	Plaintext string `json:"token"`
}

// IssueInput labels a new token.
type IssueInput struct {
	Label string `json:"label" validate:"max=80"`
}

const tokenSeparator = "."

var errMalformedToken = errors.New("malformed token")

// formatToken joins id and secret into the bearer value "<id>.<secret>".
func formatToken(id, secret string) string {
	return id + tokenSeparator + secret
}

func parseToken(raw string) (id, secret string, err error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(raw), tokenSeparator)
	if !ok || id == "" || secret == "" {
		return "", "", fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, errMalformedToken)
	}
	return id, secret, nil
}
