package search

import (
	"log"
)

// Service tries Meilisearch first and falls back to SQL
type Service struct {
	meili *Meili
	sql   Searcher
}

// NewService builds the facade. meili may be nil when MEILI_URL is unset.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, sql: fallback}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "meilisearch"}
		}
		log.Printf("search: meilisearch error, falling back to sql: %v", err)
	}

	results, total, err := s.sql.Search(q)
	if err != nil {
		log.Printf("❌ search: sql error: %v", err)
		return Response{Results: []Result{}, Query: q.Text, Engine: "sql"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "sql"}
}

func (s *Service) enabled() bool {
	return s != nil && s.meili != nil && s.meili.Healthy()
}

// IndexOffice pushes an office to the index in the background. Unpublished offices are removed.
func (s *Service) IndexOffice(rec OfficeRecord, published bool) {
	if !s.enabled() {
		return
	}
	go func() {
		var err error
		if published {
			err = s.meili.IndexOffices([]OfficeRecord{rec})
		} else {
			err = s.meili.delete(idxOffices, rec.ID)
		}
		if err != nil {
			log.Printf("search: index office %s: %v", rec.ID, err)
		}
	}()
}

func (s *Service) IndexService(rec ServiceRecord, active bool) {
	if !s.enabled() {
		return
	}
	go func() {
		var err error
		if active {
			err = s.meili.IndexServices([]ServiceRecord{rec})
		} else {
			err = s.meili.delete(idxServices, rec.ID)
		}
		if err != nil {
			log.Printf("search: index service %s: %v", rec.ID, err)
		}
	}()
}

func (s *Service) IndexPost(rec PostRecord) {
	if !s.enabled() {
		return
	}
	go func() {
		if err := s.meili.IndexPosts([]PostRecord{rec}); err != nil {
			log.Printf("search: index post %s: %v", rec.ID, err)
		}
	}()
}

func (s *Service) DeleteOffice(id string)  { s.remove(idxOffices, id) }
func (s *Service) DeleteService(id string) { s.remove(idxServices, id) }
func (s *Service) DeletePost(id string)    { s.remove(idxPosts, id) }

func (s *Service) remove(uid, id string) {
	if !s.enabled() {
		return
	}
	go func() {
		if err := s.meili.delete(uid, id); err != nil {
			log.Printf("search: delete %s from %s: %v", id, uid, err)
		}
	}()
}

// Reindex pushes full record sets; used at startup when Meilisearch is reachable
func (s *Service) Reindex(offices []OfficeRecord, services []ServiceRecord, posts []PostRecord) {
	if !s.enabled() {
		return
	}
	if err := s.meili.IndexOffices(offices); err != nil {
		log.Printf("search: reindex offices: %v", err)
	}
	if err := s.meili.IndexServices(services); err != nil {
		log.Printf("search: reindex services: %v", err)
	}
	if err := s.meili.IndexPosts(posts); err != nil {
		log.Printf("search: reindex posts: %v", err)
	}
	log.Printf("✅ search: reindexed %d offices, %d services, %d posts", len(offices), len(services), len(posts))
}

// Close stops the Meilisearch health loop
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
