package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
)

type CreateStatusRequest struct {
	Content         string `json:"content"`
	MediaURL        string `json:"media_url"`
	MediaType       string `json:"media_type" example:"text"`
	BackgroundColor string `json:"background_color" example:"#1e88e5"`
}

// ListStatuses godoc
// @Summary Active statuses
// @Description Expired statuses are never returned even before they are purged
// @Tags statuses
// @Produce json
// @Success 200 {array} models.Status
// @Router /statuses [get]
func (h *Handler) ListStatuses(c *gin.Context) {
	statuses, err := h.store.ListActiveStatuses(c.Request.Context())
	if err != nil {
		storageError(c, err, "Status")
		return
	}
	respond(c, http.StatusOK, statuses)
}

// CreateStatus godoc
// @Summary Post a status
// @Description Visible until STATUS_TTL_HOURS have passed
// @Tags statuses
// @Accept json
// @Produce json
// @Param body body CreateStatusRequest true "Status"
// @Success 201 {object} models.Status
// @Router /statuses [post]
func (h *Handler) CreateStatus(c *gin.Context) {
	var req CreateStatusRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" && req.MediaURL == "" {
		badRequest(c, "content or media_url is required")
		return
	}
	mediaType := req.MediaType
	switch {
	case mediaType == "" && req.MediaURL != "":
		mediaType = "image"
	case mediaType == "":
		mediaType = "text"
	case mediaType != "text" && mediaType != "image" && mediaType != "video":
		badRequest(c, "media_type must be text, image or video")
		return
	}

	user := currentUser(c)
	status := &models.Status{
		UserID:          user.ID,
		Content:         strings.TrimSpace(req.Content),
		MediaURL:        req.MediaURL,
		MediaType:       mediaType,
		BackgroundColor: req.BackgroundColor,
	}
	if err := h.store.CreateStatus(c.Request.Context(), status, h.cfg.StatusTTL()); err != nil {
		storageError(c, err, "Status")
		return
	}
	status.User = user
	msg := notification.NewWebSocketMessage("status.created", status)
	h.sockets.BroadcastToAll(&msg)
	respond(c, http.StatusCreated, status)
}

// ListUserStatuses godoc
// @Summary Active statuses of one user
// @Tags statuses
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {array} models.Status
// @Router /statuses/user/{userId} [get]
func (h *Handler) ListUserStatuses(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	statuses, err := h.store.ListActiveStatusesForUser(c.Request.Context(), userID)
	if err != nil {
		storageError(c, err, "Status")
		return
	}
	respond(c, http.StatusOK, statuses)
}

// ViewStatus godoc
// @Summary Record a status view
// @Description Each viewer is counted once; owners viewing their own status are not counted
// @Tags statuses
// @Produce json
// @Param id path int true "Status ID"
// @Success 200 {object} map[string]interface{}
// @Router /statuses/{id}/view [post]
func (h *Handler) ViewStatus(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	status, err := h.store.GetActiveStatus(ctx, id)
	if err != nil {
		storageError(c, err, "Status")
		return
	}

	user := currentUser(c)
	recorded := false
	if status.UserID != user.ID {
		if recorded, err = h.store.RecordStatusView(ctx, id, user.ID); err != nil {
			storageError(c, err, "Status")
			return
		}
	}
	respond(c, http.StatusOK, gin.H{"recorded": recorded})
}

// ListStatusViewers godoc
// @Summary Who viewed a status
// @Description Owner only
// @Tags statuses
// @Produce json
// @Param id path int true "Status ID"
// @Success 200 {array} models.StatusView
// @Router /statuses/{id}/viewers [get]
func (h *Handler) ListStatusViewers(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	status, err := h.store.GetActiveStatus(ctx, id)
	if err != nil {
		storageError(c, err, "Status")
		return
	}
	if status.UserID != currentUser(c).ID {
		forbidden(c, "Only the author can see who viewed a status")
		return
	}
	views, err := h.store.ListStatusViewers(ctx, id)
	if err != nil {
		storageError(c, err, "Status")
		return
	}
	respond(c, http.StatusOK, views)
}

// DeleteStatus godoc
// @Summary Delete own status
// @Tags statuses
// @Param id path int true "Status ID"
// @Success 200 {object} map[string]interface{}
// @Router /statuses/{id} [delete]
func (h *Handler) DeleteStatus(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteStatus(c.Request.Context(), id, currentUser(c).ID); err != nil {
		storageError(c, err, "Status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Status deleted"})
}
