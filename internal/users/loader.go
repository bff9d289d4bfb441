package users

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/classboard/classboard/internal/access"
)

// Loader resolves identity snapshots through the cache, coalescing
// concurrent misses for the same id into one repository read.
type Loader struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewLoader constructs a Loader. cache may be nil.
func NewLoader(repo Repository, cache *Cache, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{repo: repo, cache: cache, logger: logger}
}

// Load returns the current snapshot for id.
func (l *Loader) Load(ctx context.Context, id string) (access.Identity, error) {
	if l.cache != nil {
		ident, ok, err := l.cache.Get(ctx, id)
		if err != nil {
			l.logger.Warn("identity cache read failed", slog.String("identity_id", id), slog.Any("error", err))
		} else if ok {
			return ident, nil
		}
	}

	v, err, _ := l.group.Do(id, func() (any, error) {
		stored, err := l.repo.Get(ctx, id)
		if err != nil {
			return access.Identity{}, err
		}
		ident := stored.Access()
		if err := access.ValidateIdentity(ident); err != nil {
			return access.Identity{}, err
		}
		if l.cache != nil {
			if err := l.cache.Set(ctx, ident); err != nil {
				l.logger.Warn("identity cache write failed", slog.String("identity_id", id), slog.Any("error", err))
			}
		}
		return ident, nil
	})
	if err != nil {
		return access.Identity{}, err
	}
	return v.(access.Identity), nil
}

// Invalidate drops the cached snapshot so the next Load reads storage.
func (l *Loader) Invalidate(ctx context.Context, id string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, id); err != nil {
		l.logger.Error("identity cache invalidate failed", slog.String("identity_id", id), slog.Any("error", err))
	}
}
