package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"desktown-backend/shared/utils/query"
)

// ListNotifications godoc
// @Summary Notifications of the caller
// @Tags notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Success 200 {object} PaginatedResponse
// @Router /notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	params := query.ParseQueryParams(c)
	items, total, err := h.store.ListNotifications(c.Request.Context(), currentUser(c).ID, c.Query("unread") == "true", params)
	if err != nil {
		storageError(c, err, "Notification")
		return
	}
	respondList(c, items, params, total)
}

// NotificationUnreadCount godoc
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /notifications/unread-count [get]
func (h *Handler) NotificationUnreadCount(c *gin.Context) {
	count, err := h.store.NotificationUnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		storageError(c, err, "Notification")
		return
	}
	respond(c, http.StatusOK, gin.H{"count": count})
}

// MarkNotificationRead godoc
// @Summary Mark one notification read
// @Tags notifications
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]interface{}
// @Router /notifications/{id}/read [patch]
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.MarkNotificationRead(c.Request.Context(), id, currentUser(c).ID); err != nil {
		storageError(c, err, "Notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllNotificationsRead godoc
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /notifications/read-all [post]
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := h.store.MarkAllNotificationsRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		storageError(c, err, "Notification")
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": updated})
}

// DeleteNotification godoc
// @Summary Delete a notification
// @Tags notifications
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]interface{}
// @Router /notifications/{id} [delete]
func (h *Handler) DeleteNotification(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteNotification(c.Request.Context(), id, currentUser(c).ID); err != nil {
		storageError(c, err, "Notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification deleted"})
}
