// Package search finds offices, services and posts. Meilisearch serves queries when
// reachable; PostgreSQL ILIKE matching covers the rest.
package search

type ResultType string

const (
	ResultOffice  ResultType = "office"
	ResultService ResultType = "service"
	ResultPost    ResultType = "post"
)

// ParseResultType returns "" (all types) for unknown values
func ParseResultType(s string) ResultType {
	switch ResultType(s) {
	case ResultOffice, ResultService, ResultPost:
		return ResultType(s)
	}
	return ""
}

// Result is a single search hit
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	OfficeID string     `json:"office_id,omitempty"`
	Slug     string     `json:"slug,omitempty"`
}

type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Searcher can execute a search
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// OfficeRecord is what gets indexed for a published office
type OfficeRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ServiceRecord is what gets indexed for an active service
type ServiceRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OfficeID    string `json:"officeId"`
}

type PostRecord struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	AuthorID string `json:"authorId"`
	OfficeID string `json:"officeId"`
}
