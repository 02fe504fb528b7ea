package query

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func contextFor(target string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return c
}

func TestParseQueryParamsDefaults(t *testing.T) {
	p := ParseQueryParams(contextFor("/api/users"))

	if p.Page != 1 || p.Limit != DefaultLimit {
		t.Errorf("expected page 1 limit %d, got page %d limit %d", DefaultLimit, p.Page, p.Limit)
	}
	if p.Sort.Field != "created_at" || p.Sort.Order != "desc" {
		t.Errorf("unexpected default sort %+v", p.Sort)
	}
	if len(p.Filters) != 0 {
		t.Errorf("expected no filters, got %v", p.Filters)
	}
}

func TestParseQueryParams(t *testing.T) {
	c := contextFor("/api/tasks?page=3&limit=500&q=design&filters[role]=admin&status=pending&sort[field]=title&sort[order]=ASC")
	p := ParseQueryParams(c, "status")

	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
	if p.Search != "design" {
		t.Errorf("expected search from q, got %q", p.Search)
	}
	if p.Filters["role"] != "admin" || p.Filters["status"] != "pending" {
		t.Errorf("unexpected filters %v", p.Filters)
	}
	if p.Sort.Field != "title" || p.Sort.Order != "asc" {
		t.Errorf("unexpected sort %+v", p.Sort)
	}
	if p.Offset() != 2*MaxLimit {
		t.Errorf("expected offset %d, got %d", 2*MaxLimit, p.Offset())
	}
}

func TestParseQueryParamsIgnoresUnlistedPlainFilters(t *testing.T) {
	p := ParseQueryParams(contextFor("/api/tasks?status=pending"))
	if _, ok := p.Filters["status"]; ok {
		t.Error("expected status to be ignored when not whitelisted")
	}
}

func TestParseCursor(t *testing.T) {
	cur := ParseCursor(contextFor("/api/posts?before=42&limit=0"))
	if cur.Before != 42 || cur.After != 0 {
		t.Errorf("unexpected cursor %+v", cur)
	}
	if cur.Limit != DefaultLimit {
		t.Errorf("expected default limit, got %d", cur.Limit)
	}
}

func TestBuildPaginationResponse(t *testing.T) {
	resp := BuildPaginationResponse(2, 10, 25)
	if resp.TotalPages != 3 || !resp.HasNext || !resp.HasPrev {
		t.Errorf("unexpected pagination %+v", resp)
	}

	last := BuildPaginationResponse(3, 10, 25)
	if last.HasNext {
		t.Error("expected no next page on the last page")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := EscapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("unexpected escape %q", got)
	}
}
