// Package classes is the class directory: the set of (year, section)
// classes identities belong to and class-scoped content targets.
package classes

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/classboard/classboard/internal/access"
)

// Class is a school class such as year 1, section A.
type Class struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Section   string    `json:"section"`
	CreatedAt time.Time `json:"created_at"`
}

// Name renders the class the way the school writes it, e.g. "1A".
func (c Class) Name() string { return fmt.Sprintf("%d%s", c.Year, c.Section) }

// Access returns the directory view consumed by the access engine.
func (c Class) Access() access.Class {
	return access.Class{ID: c.ID, Year: c.Year, Section: c.Section}
}

// CreateInput registers a class.
type CreateInput struct {
	Year    int    `json:"year" validate:"required,min=1,max=20"`
	Section string `json:"section" validate:"required,max=8"`
}

var sectionCaser = cases.Upper(language.Und)

// NormalizeSection trims and upper-cases a section label.
func NormalizeSection(section string) string {
	return sectionCaser.String(strings.TrimSpace(section))
}
