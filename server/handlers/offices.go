package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"desktown-backend/server/middleware"
	"desktown-backend/server/services"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/search"
	utils "desktown-backend/shared/utils/auth"
	"desktown-backend/shared/utils/query"
)

type CreateOfficeRequest struct {
	Name        string `json:"name" binding:"required" example:"Acme Legal"`
	Slug        string `json:"slug" example:"acme-legal"`
	Description string `json:"description"`
	Category    string `json:"category" example:"legal"`
	LogoURL     string `json:"logo_url"`
	CoverURL    string `json:"cover_url"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	IsPublished *bool  `json:"is_published"`
}

type UpdateOfficeRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	LogoURL     *string `json:"logo_url"`
	CoverURL    *string `json:"cover_url"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
	IsPublished *bool   `json:"is_published"`
}

type CreateDepartmentRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
	SortOrder   int    `json:"sort_order"`
}

type AddMediaRequest struct {
	URL       string `json:"url" binding:"required"`
	MediaType string `json:"media_type" example:"image"`
	Caption   string `json:"caption"`
}

type OfficeMessageRequest struct {
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`
	Body        string `json:"body" binding:"required"`
}

func officeRecord(o *models.Office) search.OfficeRecord {
	return search.OfficeRecord{
		ID:          o.ID.String(),
		Name:        o.Name,
		Slug:        o.Slug,
		Description: o.Description,
		Category:    o.Category,
	}
}

// ListOffices godoc
// @Summary Office directory
// @Description Published offices; ?mine=true lists the caller's own offices including drafts
// @Tags offices
// @Produce json
// @Param search query string false "Search name, description and category"
// @Param category query string false "Category"
// @Param mine query bool false "Only my offices"
// @Success 200 {object} PaginatedResponse
// @Router /offices [get]
func (h *Handler) ListOffices(c *gin.Context) {
	f := storage.OfficeFilter{PublishedOnly: true, Category: c.Query("category")}
	if c.Query("mine") == "true" {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, "Unauthorized", "Not authenticated")
			return
		}
		f.PublishedOnly = false
		f.OwnerID = &user.ID
	}

	params := query.ParseQueryParams(c)
	offices, total, err := h.store.ListOffices(c.Request.Context(), f, params)
	if err != nil {
		storageError(c, err, "Office")
		return
	}
	respondList(c, offices, params, total)
}

// CreateOffice godoc
// @Summary Open an office
// @Description office_renter, admin and super_admin only
// @Tags offices
// @Accept json
// @Produce json
// @Param body body CreateOfficeRequest true "Office"
// @Success 201 {object} models.Office
// @Failure 409 {object} ErrorResponse "Slug taken"
// @Router /offices [post]
func (h *Handler) CreateOffice(c *gin.Context) {
	var req CreateOfficeRequest
	if !bind(c, &req) {
		return
	}
	if err := utils.ValidateLength(req.Name, "name", 2, 200); err != nil {
		badRequest(c, err.Error())
		return
	}
	slug := req.Slug
	if slug == "" {
		slug = utils.Slugify(req.Name)
	}
	if err := utils.ValidateSlug(slug); err != nil {
		badRequest(c, err.Error())
		return
	}

	user := currentUser(c)
	office := &models.Office{
		OwnerID:     user.ID,
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Description: req.Description,
		Category:    req.Category,
		LogoURL:     req.LogoURL,
		CoverURL:    req.CoverURL,
		Address:     req.Address,
		Phone:       req.Phone,
		Website:     req.Website,
		IsPublished: req.IsPublished == nil || *req.IsPublished,
	}
	if err := h.store.CreateOffice(c.Request.Context(), office); err != nil {
		storageError(c, err, "Office")
		return
	}
	office.Owner = user
	h.search.IndexOffice(officeRecord(office), office.IsPublished)

	log.Printf("✅ Office created: %s (%s)", office.Name, office.Slug)
	respond(c, http.StatusCreated, office)
}

// GetOffice godoc
// @Summary Get office
// @Tags offices
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {object} models.Office
// @Router /offices/{id} [get]
func (h *Handler) GetOffice(c *gin.Context) {
	office, ok := h.loadOffice(c, false)
	if !ok {
		return
	}
	respond(c, http.StatusOK, office)
}

// GetOfficeBySlug godoc
// @Summary Get office by slug
// @Tags offices
// @Produce json
// @Param slug path string true "Office slug"
// @Success 200 {object} models.Office
// @Router /offices/slug/{slug} [get]
func (h *Handler) GetOfficeBySlug(c *gin.Context) {
	office, err := h.store.GetOfficeBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		storageError(c, err, "Office")
		return
	}
	if !h.officeVisible(c, office) {
		storageError(c, storage.ErrNotFound, "Office")
		return
	}
	respond(c, http.StatusOK, office)
}

// UpdateOffice godoc
// @Summary Update office
// @Description Owner or admin
// @Tags offices
// @Accept json
// @Produce json
// @Param id path string true "Office ID"
// @Param body body UpdateOfficeRequest true "Fields to change"
// @Success 200 {object} models.Office
// @Router /offices/{id} [patch]
func (h *Handler) UpdateOffice(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	var req UpdateOfficeRequest
	if !bind(c, &req) {
		return
	}

	if req.Name != nil {
		if err := utils.ValidateLength(*req.Name, "name", 2, 200); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	updates := map[string]interface{}{}
	str := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	str("name", req.Name)
	str("description", req.Description)
	str("category", req.Category)
	str("logo_url", req.LogoURL)
	str("cover_url", req.CoverURL)
	str("address", req.Address)
	str("phone", req.Phone)
	str("website", req.Website)
	if req.Slug != nil {
		if err := utils.ValidateSlug(*req.Slug); err != nil {
			badRequest(c, err.Error())
			return
		}
		updates["slug"] = *req.Slug
	}
	if req.IsPublished != nil {
		updates["is_published"] = *req.IsPublished
	}

	updated, err := h.store.UpdateOffice(c.Request.Context(), office.ID, updates)
	if err != nil {
		storageError(c, err, "Office")
		return
	}
	h.search.IndexOffice(officeRecord(updated), updated.IsPublished)
	respond(c, http.StatusOK, updated)
}

// DeleteOffice godoc
// @Summary Delete office
// @Description Owner or admin. Departments, media, messages, comments, posts, services and ratings go with it; orders are kept.
// @Tags offices
// @Param id path string true "Office ID"
// @Success 200 {object} map[string]interface{}
// @Router /offices/{id} [delete]
func (h *Handler) DeleteOffice(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	if err := h.removeOffice(c.Request.Context(), office.ID); err != nil {
		storageError(c, err, "Office")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Office deleted"})
}

// removeOffice deletes the office row and clears its documents from the search index
func (h *Handler) removeOffice(ctx context.Context, id uuid.UUID) error {
	svcs, _ := h.store.ListServicesByOffice(ctx, id, false)
	posts, _ := h.store.ListPostsByOffice(ctx, id)
	media, _ := h.store.ListOfficeMedia(ctx, id)

	if err := h.store.DeleteOffice(ctx, id); err != nil {
		return err
	}

	h.search.DeleteOffice(id.String())
	for _, s := range svcs {
		h.search.DeleteService(fmt.Sprint(s.ID))
	}
	for _, p := range posts {
		h.search.DeletePost(fmt.Sprint(p.ID))
	}
	for _, m := range media {
		h.removeObject(ctx, m.ObjectKey)
	}
	log.Printf("🗑️  Office deleted: %s", id)
	return nil
}

// ListDepartments godoc
// @Summary Department tree
// @Tags offices
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {array} models.OfficeDepartment
// @Router /offices/{id}/departments [get]
func (h *Handler) ListDepartments(c *gin.Context) {
	office, ok := h.loadOffice(c, false)
	if !ok {
		return
	}
	flat, err := h.store.ListDepartments(c.Request.Context(), office.ID)
	if err != nil {
		storageError(c, err, "Department")
		return
	}
	respond(c, http.StatusOK, storage.BuildDepartmentTree(flat))
}

// CreateDepartment godoc
// @Summary Add a department or section
// @Description parent_id nests it under another department of the same office
// @Tags offices
// @Accept json
// @Produce json
// @Param id path string true "Office ID"
// @Param body body CreateDepartmentRequest true "Department"
// @Success 201 {object} models.OfficeDepartment
// @Router /offices/{id}/departments [post]
func (h *Handler) CreateDepartment(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	var req CreateDepartmentRequest
	if !bind(c, &req) {
		return
	}

	dept := &models.OfficeDepartment{
		OfficeID:    office.ID,
		ParentID:    req.ParentID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		SortOrder:   req.SortOrder,
	}
	if err := h.store.CreateDepartment(c.Request.Context(), dept); err != nil {
		storageError(c, err, "Department")
		return
	}
	respond(c, http.StatusCreated, dept)
}

// DeleteDepartment godoc
// @Summary Remove a department
// @Description Sub-sections are removed with it
// @Tags offices
// @Param id path string true "Office ID"
// @Param deptId path int true "Department ID"
// @Success 200 {object} map[string]interface{}
// @Router /offices/{id}/departments/{deptId} [delete]
func (h *Handler) DeleteDepartment(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	deptID, ok := uintParam(c, "deptId")
	if !ok {
		return
	}
	if err := h.store.DeleteDepartment(c.Request.Context(), office.ID, deptID); err != nil {
		storageError(c, err, "Department")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Department deleted"})
}

// ListOfficeMedia godoc
// @Summary Office gallery
// @Tags offices
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {array} models.OfficeMedia
// @Router /offices/{id}/media [get]
func (h *Handler) ListOfficeMedia(c *gin.Context) {
	office, ok := h.loadOffice(c, false)
	if !ok {
		return
	}
	media, err := h.store.ListOfficeMedia(c.Request.Context(), office.ID)
	if err != nil {
		storageError(c, err, "Media")
		return
	}
	respond(c, http.StatusOK, media)
}

// AddOfficeMedia godoc
// @Summary Add gallery media
// @Description Multipart upload (field "file") stored publicly, or JSON with an external url
// @Tags offices
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param id path string true "Office ID"
// @Param file formData file false "Image or video"
// @Param caption formData string false "Caption"
// @Success 201 {object} models.OfficeMedia
// @Router /offices/{id}/media [post]
func (h *Handler) AddOfficeMedia(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	user := currentUser(c)
	media := &models.OfficeMedia{OfficeID: office.ID, UploaderID: user.ID}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		stored, ok := h.acceptUpload(c, user, services.VisibilityPublic)
		if !ok {
			return
		}
		media.URL = stored.URL
		media.ObjectKey = stored.Key
		media.MediaType = mediaKind(stored.ContentType)
		media.Caption = c.PostForm("caption")
	} else {
		var req AddMediaRequest
		if !bind(c, &req) {
			return
		}
		media.URL = req.URL
		media.MediaType = req.MediaType
		media.Caption = req.Caption
	}
	if media.MediaType == "" {
		media.MediaType = "image"
	}

	if err := h.store.AddOfficeMedia(c.Request.Context(), media); err != nil {
		h.removeObject(c.Request.Context(), media.ObjectKey)
		storageError(c, err, "Media")
		return
	}
	respond(c, http.StatusCreated, media)
}

// DeleteOfficeMedia godoc
// @Summary Remove gallery media
// @Tags offices
// @Param id path string true "Office ID"
// @Param mediaId path int true "Media ID"
// @Success 200 {object} map[string]interface{}
// @Router /offices/{id}/media/{mediaId} [delete]
func (h *Handler) DeleteOfficeMedia(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	mediaID, ok := uintParam(c, "mediaId")
	if !ok {
		return
	}
	media, err := h.store.DeleteOfficeMedia(c.Request.Context(), office.ID, mediaID)
	if err != nil {
		storageError(c, err, "Media")
		return
	}
	h.removeObject(c.Request.Context(), media.ObjectKey)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Media deleted"})
}

// ListOfficeMessages godoc
// @Summary Contact messages
// @Description Owner or admin
// @Tags offices
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {object} PaginatedResponse
// @Router /offices/{id}/messages [get]
func (h *Handler) ListOfficeMessages(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	params := query.ParseQueryParams(c)
	msgs, total, err := h.store.ListOfficeMessages(c.Request.Context(), office.ID, params)
	if err != nil {
		storageError(c, err, "Message")
		return
	}
	respondList(c, msgs, params, total)
}

// SendOfficeMessage godoc
// @Summary Contact an office
// @Description Anyone may write; signed-in users default to their own name and email
// @Tags offices
// @Accept json
// @Produce json
// @Param id path string true "Office ID"
// @Param body body OfficeMessageRequest true "Message"
// @Success 201 {object} models.OfficeMessage
// @Router /offices/{id}/messages [post]
func (h *Handler) SendOfficeMessage(c *gin.Context) {
	office, ok := h.loadOffice(c, false)
	if !ok {
		return
	}
	var req OfficeMessageRequest
	if !bind(c, &req) {
		return
	}

	msg := &models.OfficeMessage{
		OfficeID:    office.ID,
		SenderName:  strings.TrimSpace(req.SenderName),
		SenderEmail: strings.TrimSpace(req.SenderEmail),
		Body:        strings.TrimSpace(req.Body),
	}
	if user, ok := middleware.CurrentUser(c); ok {
		msg.SenderID = &user.ID
		if msg.SenderName == "" {
			msg.SenderName = user.FullName()
		}
		if msg.SenderEmail == "" {
			msg.SenderEmail = user.Email
		}
	}
	if msg.SenderName == "" || msg.Body == "" {
		badRequest(c, "sender_name and body are required")
		return
	}
	if err := utils.ValidateEmail(msg.SenderEmail); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.store.AddOfficeMessage(ctx, msg); err != nil {
		storageError(c, err, "Message")
		return
	}

	h.notify(ctx, &notification.Notification{
		UserID:   office.OwnerID,
		Type:     notification.TypeOfficeMessage,
		Title:    "New message for " + office.Name,
		Message:  msg.SenderName + " sent a message",
		Link:     fmt.Sprintf("/offices/%s/messages", office.ID),
		Entity:   "office",
		EntityID: office.ID.String(),
	})
	if office.Owner != nil && h.mailer != nil {
		go func(ownerEmail string) {
			if err := h.mailer.SendOfficeMessage(ownerEmail, office, msg); err != nil && !errors.Is(err, services.ErrEmailDisabled) {
				log.Printf("⚠️  Office message email to %s failed: %v", ownerEmail, err)
			}
		}(office.Owner.Email)
	}
	respond(c, http.StatusCreated, msg)
}

// MarkOfficeMessageRead godoc
// @Summary Mark a contact message read
// @Tags offices
// @Param id path string true "Office ID"
// @Param msgId path int true "Message ID"
// @Success 200 {object} map[string]interface{}
// @Router /offices/{id}/messages/{msgId}/read [patch]
func (h *Handler) MarkOfficeMessageRead(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	msgID, ok := uintParam(c, "msgId")
	if !ok {
		return
	}
	if err := h.store.MarkOfficeMessageRead(c.Request.Context(), office.ID, msgID); err != nil {
		storageError(c, err, "Message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListOfficeComments godoc
// @Summary Public comments on an office
// @Tags offices
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {array} models.OfficeComment
// @Router /offices/{id}/comments [get]
func (h *Handler) ListOfficeComments(c *gin.Context) {
	office, ok := h.loadOffice(c, false)
	if !ok {
		return
	}
	comments, err := h.store.ListOfficeComments(c.Request.Context(), office.ID)
	if err != nil {
		storageError(c, err, "Comment")
		return
	}
	respond(c, http.StatusOK, comments)
}

// AddOfficeComment godoc
// @Summary Comment on an office
// @Tags offices
// @Accept json
// @Produce json
// @Param id path string true "Office ID"
// @Param body body CommentRequest true "Comment"
// @Success 201 {object} models.OfficeComment
// @Router /offices/{id}/comments [post]
func (h *Handler) AddOfficeComment(c *gin.Context) {
	office, ok := h.loadOffice(c, false)
	if !ok {
		return
	}
	user, signedIn := middleware.CurrentUser(c)
	if !signedIn {
		abortWith(c, http.StatusUnauthorized, "Unauthorized", "Sign in to comment")
		return
	}
	var req CommentRequest
	if !bind(c, &req) {
		return
	}

	comment := &models.OfficeComment{OfficeID: office.ID, AuthorID: user.ID, Body: strings.TrimSpace(req.Body)}
	if err := h.store.AddOfficeComment(c.Request.Context(), comment); err != nil {
		storageError(c, err, "Comment")
		return
	}
	comment.Author = user
	respond(c, http.StatusCreated, comment)
}

// OfficeStats godoc
// @Summary Storefront statistics
// @Description Owner or admin
// @Tags offices
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {object} models.OfficeStats
// @Router /offices/{id}/stats [get]
func (h *Handler) OfficeStats(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	stats, err := h.store.OfficeStats(c.Request.Context(), office.ID)
	if err != nil {
		storageError(c, err, "Office")
		return
	}
	respond(c, http.StatusOK, stats)
}

// officeVisible hides drafts from everyone but their managers
func (h *Handler) officeVisible(c *gin.Context, office *models.Office) bool {
	if office.IsPublished {
		return true
	}
	user, _ := middleware.CurrentUser(c)
	return office.CanManage(user)
}

// loadOffice resolves :id. manage requires the caller to own the office or be an admin.
func (h *Handler) loadOffice(c *gin.Context, manage bool) (*models.Office, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return nil, false
	}
	office, err := h.store.GetOffice(c.Request.Context(), id)
	if err != nil {
		storageError(c, err, "Office")
		return nil, false
	}
	if !h.officeVisible(c, office) {
		storageError(c, storage.ErrNotFound, "Office")
		return nil, false
	}
	if manage {
		user, _ := middleware.CurrentUser(c)
		if !office.CanManage(user) {
			forbidden(c, "Only the office owner or an admin can do this")
			return nil, false
		}
	}
	return office, true
}
