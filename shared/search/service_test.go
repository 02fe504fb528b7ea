package search

import (
	"errors"
	"testing"
)

type stubSearcher struct {
	results []Result
	total   int
	err     error
	calls   int
	last    Query
}

func (s *stubSearcher) Search(q Query) ([]Result, int, error) {
	s.calls++
	s.last = q
	return s.results, s.total, s.err
}

func (s *stubSearcher) Healthy() bool { return true }

func TestServiceFallsBackToSQLWithoutMeili(t *testing.T) {
	fallback := &stubSearcher{results: []Result{{Type: ResultOffice, ID: "1", Title: "Harbor"}}, total: 1}
	svc := NewService(nil, fallback)

	resp := svc.Search(Query{Text: "harbor", FilterType: ResultOffice})

	if fallback.calls != 1 {
		t.Fatalf("expected sql searcher to be called once, got %d", fallback.calls)
	}
	if fallback.last.FilterType != ResultOffice {
		t.Fatalf("filter type not forwarded: %q", fallback.last.FilterType)
	}
	if resp.Engine != "sql" || resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestServiceReturnsEmptyResultsOnError(t *testing.T) {
	svc := NewService(nil, &stubSearcher{err: errors.New("boom")})

	resp := svc.Search(Query{Text: "x"})

	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", resp.Results)
	}
}

func TestIndexingIsNoopWithoutMeili(t *testing.T) {
	svc := NewService(nil, &stubSearcher{})

	// must not panic or block
	svc.IndexOffice(OfficeRecord{ID: "o"}, true)
	svc.IndexService(ServiceRecord{ID: "s"}, false)
	svc.IndexPost(PostRecord{ID: "p"})
	svc.DeletePost("p")
	svc.Reindex(nil, nil, nil)
	svc.Close()
}

func TestParseResultType(t *testing.T) {
	if ParseResultType("office") != ResultOffice {
		t.Error("office")
	}
	if ParseResultType("document") != "" {
		t.Error("unknown types search everything")
	}
}

func TestTruncate(t *testing.T) {
	if truncate("short", 10) != "short" {
		t.Error("short strings are unchanged")
	}
	if got := truncate("ábcdef", 3); got != "ábc…" {
		t.Errorf("unexpected %q", got)
	}
}
