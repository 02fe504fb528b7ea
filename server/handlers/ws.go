package handlers

import (
	"github.com/gin-gonic/gin"
)

// WebSocket godoc
// @Summary Realtime event stream
// @Description Upgrades to a websocket carrying chat.message, notification, presence and call.* events
// @Tags realtime
// @Router /ws [get]
func (h *Handler) WebSocket(c *gin.Context) {
	h.sockets.HandleConnection(c.Writer, c.Request, currentUser(c).ID)
}
