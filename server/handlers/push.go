package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"desktown-backend/shared/database/models/notification"
)

// PushSubscribeRequest mirrors the browser PushSubscription JSON
type PushSubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys"`
}

type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// VAPIDPublicKey godoc
// @Summary Web push application server key
// @Tags push
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} ErrorResponse "Push not configured"
// @Router /push/vapid-public-key [get]
func (h *Handler) VAPIDPublicKey(c *gin.Context) {
	if h.cfg.VAPIDPublicKey == "" {
		abortWith(c, http.StatusServiceUnavailable, "Push disabled", "Web push is not configured on this server")
		return
	}
	respond(c, http.StatusOK, gin.H{"public_key": h.cfg.VAPIDPublicKey})
}

// PushSubscribe godoc
// @Summary Register a browser for web push
// @Tags push
// @Accept json
// @Produce json
// @Param body body PushSubscribeRequest true "Subscription"
// @Success 201 {object} notification.PushSubscription
// @Router /push/subscribe [post]
func (h *Handler) PushSubscribe(c *gin.Context) {
	var req PushSubscribeRequest
	if !bind(c, &req) {
		return
	}
	sub := &notification.PushSubscription{
		UserID:    currentUser(c).ID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: c.Request.UserAgent(),
	}
	if err := h.store.UpsertPushSubscription(c.Request.Context(), sub); err != nil {
		storageError(c, err, "Subscription")
		return
	}
	respond(c, http.StatusCreated, sub)
}

// PushUnsubscribe godoc
// @Summary Remove a web push subscription
// @Tags push
// @Accept json
// @Param body body PushUnsubscribeRequest true "Endpoint"
// @Success 200 {object} map[string]interface{}
// @Router /push/unsubscribe [post]
func (h *Handler) PushUnsubscribe(c *gin.Context) {
	var req PushUnsubscribeRequest
	if !bind(c, &req) {
		return
	}
	if err := h.store.DeletePushSubscription(c.Request.Context(), req.Endpoint, currentUser(c).ID); err != nil {
		storageError(c, err, "Subscription")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
