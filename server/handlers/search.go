package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/search"
)

// Search godoc
// @Summary Search offices, services and posts
// @Description Served by Meilisearch when healthy, PostgreSQL otherwise. The engine field says which one answered.
// @Tags search
// @Produce json
// @Param q query string true "Search text"
// @Param type query string false "office, service or post"
// @Param limit query int false "Max results (default 20, max 50)"
// @Param offset query int false "Offset"
// @Success 200 {object} search.Response
// @Router /search [get]
func (h *Handler) Search(c *gin.Context) {
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		badRequest(c, "q is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}

	respond(c, http.StatusOK, h.search.Search(search.Query{
		Text:       text,
		FilterType: search.ParseResultType(c.Query("type")),
		Limit:      limit,
		Offset:     offset,
	}))
}

// ReindexSearch rebuilds the search index from the database
func ReindexSearch(ctx context.Context, store *storage.Storage, index *search.Service) error {
	docs, err := store.ListSearchDocuments(ctx)
	if err != nil {
		return err
	}

	offices := make([]search.OfficeRecord, 0, len(docs.Offices))
	for i := range docs.Offices {
		offices = append(offices, officeRecord(&docs.Offices[i]))
	}
	svcs := make([]search.ServiceRecord, 0, len(docs.Services))
	for i := range docs.Services {
		svcs = append(svcs, serviceRecord(&docs.Services[i]))
	}
	posts := make([]search.PostRecord, 0, len(docs.Posts))
	for i := range docs.Posts {
		posts = append(posts, postRecord(&docs.Posts[i]))
	}

	index.Reindex(offices, svcs, posts)
	return nil
}
