package pagination

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func contextFor(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextFor("/"), 0)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextFor("/?page=3&per_page=25"), 50)

	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.PerPage)
	assert.Equal(t, 50, p.Offset())
}

func TestFromContext_MalformedFallsBack(t *testing.T) {
	p := FromContext(contextFor("/?page=abc&per_page=x1"), 40)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 40, p.PerPage)
}

func TestFromContext_NonPositive(t *testing.T) {
	p := FromContext(contextFor("/?page=-2&per_page=0"), 10)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PerPage)
}

func TestFromContext_MaxPerPage(t *testing.T) {
	p := FromContext(contextFor("/?per_page=10000"), 50)

	assert.Equal(t, MaxPerPage, p.PerPage)
}

func TestSlice(t *testing.T) {
	items := []int{10, 20, 30, 40, 50}

	assert.Equal(t, []int{30, 40}, Slice(items, Params{Page: 2, PerPage: 2}))
	assert.Equal(t, []int{50}, Slice(items, Params{Page: 3, PerPage: 2}))
	assert.Equal(t, []int{10, 20, 30, 40, 50}, Slice(items, Params{Page: 1, PerPage: 50}))

	out := Slice(items, Params{Page: 10, PerPage: 2})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestNewResponse(t *testing.T) {
	p := Params{Page: 2, PerPage: 2}
	resp := NewResponse([]int{3, 4}, 5, p)

	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 3, resp.Pages)
	assert.True(t, resp.HasMore)

	last := NewResponse([]int{5}, 5, Params{Page: 3, PerPage: 2})
	assert.False(t, last.HasMore)
}

func TestFromContext_HugePageStaysInRange(t *testing.T) {
	p := FromContext(contextFor("/?page=184467440737095518&per_page=50"), 50)

	assert.Equal(t, 50, p.PerPage)
	assert.GreaterOrEqual(t, p.Offset(), 0)
	assert.Empty(t, Slice([]int{1, 2, 3, 4, 5}, p))
	assert.False(t, p.HasNext(5))
}

func TestParams_OffsetSaturates(t *testing.T) {
	p := Params{Page: math.MaxInt, PerPage: MaxPerPage}

	assert.Equal(t, math.MaxInt, p.Offset())
	out := Slice([]int{1, 2, 3}, p)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.False(t, p.HasNext(3))

	resp := NewResponse(out, 3, p)
	assert.Equal(t, 3, resp.Total)
	assert.False(t, resp.HasMore)
}
