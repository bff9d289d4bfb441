package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/shared"
)

const secretBytes = 32

// IdentityLoader resolves the current identity snapshot for an id.
type IdentityLoader interface {
	Load(ctx context.Context, id string) (access.Identity, error)
}

// Service wraps token issuance and authentication.
type Service struct {
	repo   Repository
	loader IdentityLoader
	gate   *access.Gate
	logger *slog.Logger
	cost   int
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithGate sets the gate used for auditing token changes.
func WithGate(g *access.Gate) Option {
	return func(s *Service) { s.gate = g }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs a new Service.
func NewService(repo Repository, loader IdentityLoader, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		loader: loader,
		gate:   access.NewGate(),
		logger: slog.Default(),
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a token for identityID. Identities may issue their own
// tokens; issuing for others requires MANAGE_USERS.
func (s *Service) Issue(ctx context.Context, actor access.Identity, identityID string, in IssueInput) (IssuedToken, error) {
	if err := s.authorizeFor(actor, identityID); err != nil {
		return IssuedToken{}, err
	}
	if _, err := s.loader.Load(ctx, identityID); err != nil {
		return IssuedToken{}, err
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return IssuedToken{}, fmt.Errorf("auth: generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("auth: hash secret: %w", err)
	}

	token := Token{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Label:      in.Label,
		SecretHash: string(hash),
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateToken(ctx, token); err != nil {
		return IssuedToken{}, err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "token.issue",
		Target:  "identity:" + identityID,
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"token_id": token.ID},
	})
	return IssuedToken{Token: token, Plaintext: formatToken(token.ID, secret)}, nil
}

// Authenticate validates a bearer value and returns the identity behind it.
// Every failure is reported as shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, raw string) (access.Identity, error) {
	id, secret, err := parseToken(raw)
	if err != nil {
		return access.Identity{}, err
	}
	token, err := s.repo.FindToken(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return access.Identity{}, shared.ErrInvalidCredentials
		}
		return access.Identity{}, err
	}
	if token.Revoked() {
		return access.Identity{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(token.SecretHash), []byte(secret)); err != nil {
		return access.Identity{}, shared.ErrInvalidCredentials
	}
	ident, err := s.loader.Load(ctx, token.IdentityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return access.Identity{}, shared.ErrInvalidCredentials
		}
		return access.Identity{}, err
	}
	if err := s.repo.TouchToken(ctx, token.ID, s.now()); err != nil {
		s.logger.Warn("touch token failed", slog.String("token_id", token.ID), slog.Any("error", err))
	}
	return ident, nil
}

// Revoke disables a token. Owners may revoke their own tokens.
func (s *Service) Revoke(ctx context.Context, actor access.Identity, tokenID string) error {
	token, err := s.repo.FindToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if err := s.authorizeFor(actor, token.IdentityID); err != nil {
		return err
	}
	if err := s.repo.RevokeToken(ctx, tokenID, s.now()); err != nil {
		return err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "token.revoke",
		Target:  "identity:" + token.IdentityID,
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"token_id": tokenID},
	})
	return nil
}

func (s *Service) authorizeFor(actor access.Identity, identityID string) error {
	if actor.Anonymous() {
		return shared.ErrUnauthenticated
	}
	if actor.ID == identityID {
		return nil
	}
	return access.RequireCapability(actor, access.CapManageUsers)
}
