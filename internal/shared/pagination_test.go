package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	p := PageFromQuery(url.Values{"page": {"3"}, "per_page": {"10"}})
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 4, p.WithTotal(31).TotalPages)

	p = PageFromQuery(url.Values{"page": {"x"}, "per_page": {"1000"}})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.PerPage)
	assert.Equal(t, 0, p.Offset())
}
