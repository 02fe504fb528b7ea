package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params carries list options parsed from the query string
type Params struct {
	Filters map[string]string `json:"filters"`
	Sort    SortParams        `json:"sort"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	Search  string            `json:"search"`
}

// SortParams represents sorting parameters
type SortParams struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// PaginationResponse represents pagination metadata
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Cursor pages through id-ordered collections such as feeds and chat history
type Cursor struct {
	Before uint
	After  uint
	Limit  int
}

// NewParams returns defaults: first page, newest first
func NewParams() Params {
	return Params{
		Filters: map[string]string{},
		Sort:    SortParams{Field: "created_at", Order: "desc"},
		Page:    1,
		Limit:   DefaultLimit,
	}
}

// ParseQueryParams reads page, limit, search, filters[field]=value and sort[field]/sort[order].
// Plain ?field=value pairs are also accepted as filters for the keys listed in plainFilters.
func ParseQueryParams(c *gin.Context, plainFilters ...string) Params {
	p := NewParams()

	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.Limit = clampLimit(c.Query("limit"))
	if p.Page < 1 {
		p.Page = 1
	}

	p.Search = strings.TrimSpace(firstNonEmpty(c.Query("search"), c.Query("q")))

	for key, values := range c.Request.URL.Query() {
		if strings.HasPrefix(key, "filters[") && strings.HasSuffix(key, "]") {
			fieldName := key[8 : len(key)-1]
			if len(values) > 0 && values[0] != "" {
				p.Filters[fieldName] = values[0]
			}
		}
	}
	for _, key := range plainFilters {
		if v := c.Query(key); v != "" {
			p.Filters[key] = v
		}
	}

	if field := c.Query("sort[field]"); field != "" {
		p.Sort.Field = field
	}
	if order := strings.ToLower(c.Query("sort[order]")); order == "asc" || order == "desc" {
		p.Sort.Order = order
	}

	return p
}

// ParseCursor reads ?before=<id>&after=<id>&limit=<n>
func ParseCursor(c *gin.Context) Cursor {
	before, _ := strconv.ParseUint(c.Query("before"), 10, 64)
	after, _ := strconv.ParseUint(c.Query("after"), 10, 64)
	return Cursor{
		Before: uint(before),
		After:  uint(after),
		Limit:  clampLimit(c.Query("limit")),
	}
}

func clampLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Offset is the row offset of the current page
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ApplyFilters applies whitelisted equality filters
func ApplyFilters(query *gorm.DB, filters map[string]string, allowedFields map[string]string) *gorm.DB {
	for field, value := range filters {
		if dbField, allowed := allowedFields[field]; allowed && value != "" {
			query = query.Where(fmt.Sprintf("%s = ?", dbField), value)
		}
	}
	return query
}

// ApplySearch ORs a case-insensitive substring match across searchFields
func ApplySearch(query *gorm.DB, search string, searchFields []string) *gorm.DB {
	if search == "" || len(searchFields) == 0 {
		return query
	}

	pattern := "%" + EscapeLike(search) + "%"
	conditions := make([]string, len(searchFields))
	args := make([]interface{}, len(searchFields))

	for i, field := range searchFields {
		conditions[i] = fmt.Sprintf("%s ILIKE ?", field)
		args[i] = pattern
	}

	return query.Where("("+strings.Join(conditions, " OR ")+")", args...)
}

// EscapeLike escapes LIKE wildcards in user input
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ApplySort orders by a whitelisted field, or by fallback when the field is not allowed
func ApplySort(query *gorm.DB, sort SortParams, allowedSortFields map[string]string, fallback string) *gorm.DB {
	if dbField, allowed := allowedSortFields[sort.Field]; allowed {
		return query.Order(fmt.Sprintf("%s %s", dbField, strings.ToUpper(sort.Order)))
	}
	return query.Order(fallback)
}

// ApplyPagination applies pagination to a GORM query
func ApplyPagination(query *gorm.DB, p Params) *gorm.DB {
	return query.Offset(p.Offset()).Limit(p.Limit)
}

// ApplyCursor limits an id-ordered query to one page around the cursor
func ApplyCursor(query *gorm.DB, column string, cur Cursor) *gorm.DB {
	if cur.Before > 0 {
		query = query.Where(fmt.Sprintf("%s < ?", column), cur.Before)
	}
	if cur.After > 0 {
		query = query.Where(fmt.Sprintf("%s > ?", column), cur.After)
	}
	limit := cur.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return query.Limit(limit)
}

// BuildPaginationResponse creates pagination metadata
func BuildPaginationResponse(page, limit int, total int64) PaginationResponse {
	if limit < 1 {
		limit = DefaultLimit
	}
	totalPages := (total + int64(limit) - 1) / int64(limit)

	return PaginationResponse{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    int64(page) < totalPages,
		HasPrev:    page > 1,
	}
}
