package classes

import (
	"context"

	"github.com/classboard/classboard/internal/access"
)

// Directory adapts a Repository to access.ClassDirectory.
type Directory struct {
	repo Repository
}

// NewDirectory wraps repo.
func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// LookupClass resolves a class id; unknown ids wrap shared.ErrNotFound.
func (d *Directory) LookupClass(ctx context.Context, classID string) (access.Class, error) {
	c, err := d.repo.Get(ctx, classID)
	if err != nil {
		return access.Class{}, err
	}
	return c.Access(), nil
}

var _ access.ClassDirectory = (*Directory)(nil)
