package search

import (
	"strings"

	"gorm.io/gorm"

	"desktown-backend/shared/utils/query"
)

// SQL searches with ILIKE over the primary database
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

// Healthy is always true; if PostgreSQL is down nothing else works either
func (s *SQL) Healthy() bool {
	return true
}

type sqlHit struct {
	Type     string
	ID       string
	Title    string
	Snippet  string
	OfficeID string
	Slug     string
}

func (s *SQL) Search(q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query.EscapeLike(text) + "%"

	var (
		parts []string
		args  []interface{}
	)
	if q.FilterType == "" || q.FilterType == ResultOffice {
		parts = append(parts, `
			SELECT 'office' AS type, o.id::text AS id, o.name AS title, LEFT(o.description, 200) AS snippet,
				o.id::text AS office_id, o.slug AS slug, o.created_at AS created_at
			FROM offices o
			WHERE o.is_published AND (o.name ILIKE ? OR o.description ILIKE ? OR o.category ILIKE ?)`)
		args = append(args, pattern, pattern, pattern)
	}
	if q.FilterType == "" || q.FilterType == ResultService {
		parts = append(parts, `
			SELECT 'service', s.id::text, s.name, LEFT(s.description, 200), s.office_id::text, '', s.created_at
			FROM office_services s
			JOIN offices o ON o.id = s.office_id AND o.is_published
			WHERE s.is_active AND (s.name ILIKE ? OR s.description ILIKE ?)`)
		args = append(args, pattern, pattern)
	}
	if q.FilterType == "" || q.FilterType == ResultPost {
		parts = append(parts, `
			SELECT 'post', p.id::text, LEFT(p.content, 80), LEFT(p.content, 200), COALESCE(p.office_id::text, ''), '', p.created_at
			FROM posts p
			WHERE p.content ILIKE ?`)
		args = append(args, pattern)
	}

	union := strings.Join(parts, " UNION ALL ")

	var total int64
	if err := s.db.Raw("SELECT COUNT(*) FROM ("+union+") hits", args...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	var hits []sqlHit
	pageArgs := append(append([]interface{}{}, args...), limit, q.Offset)
	if err := s.db.Raw(union+" ORDER BY created_at DESC LIMIT ? OFFSET ?", pageArgs...).Scan(&hits).Error; err != nil {
		return nil, 0, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Type:     ResultType(h.Type),
			ID:       h.ID,
			Title:    h.Title,
			Snippet:  h.Snippet,
			OfficeID: h.OfficeID,
			Slug:     h.Slug,
		})
	}
	return results, int(total), nil
}
