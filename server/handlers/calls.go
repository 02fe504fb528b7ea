package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
)

type StartCallRequest struct {
	CalleeID uuid.UUID `json:"callee_id" binding:"required"`
	Kind     string    `json:"kind" example:"video"`
}

// SignalRequest is an opaque WebRTC payload (offer, answer or ICE candidate) relayed to the peer
type SignalRequest struct {
	Type    string          `json:"type" binding:"required" example:"offer"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// StartCall godoc
// @Summary Ring another user
// @Tags calls
// @Accept json
// @Produce json
// @Param body body StartCallRequest true "Callee"
// @Success 201 {object} models.VideoCall
// @Router /calls [post]
func (h *Handler) StartCall(c *gin.Context) {
	var req StartCallRequest
	if !bind(c, &req) {
		return
	}
	user := currentUser(c)
	if req.CalleeID == user.ID {
		badRequest(c, "You cannot call yourself")
		return
	}
	if req.Kind != "" && req.Kind != "video" && req.Kind != "audio" {
		badRequest(c, "kind must be video or audio")
		return
	}

	ctx := c.Request.Context()
	callee, err := h.store.GetUser(ctx, req.CalleeID)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	if !callee.IsActive {
		badRequest(c, "This user is not available")
		return
	}

	call := &models.VideoCall{CallerID: user.ID, CalleeID: callee.ID, Kind: req.Kind}
	if err := h.store.CreateCall(ctx, call); err != nil {
		storageError(c, err, "Call")
		return
	}
	call.Caller = user
	call.Callee = callee

	h.notify(ctx, &notification.Notification{
		UserID:   callee.ID,
		Type:     notification.TypeCallIncoming,
		Title:    "Incoming call",
		Message:  user.FullName() + " is calling you",
		Entity:   "call",
		EntityID: fmt.Sprint(call.ID),
	})
	h.notifier.Emit(callee.ID, "call.ringing", call)
	respond(c, http.StatusCreated, call)
}

// ListCalls godoc
// @Summary Call history
// @Tags calls
// @Produce json
// @Success 200 {array} models.VideoCall
// @Router /calls [get]
func (h *Handler) ListCalls(c *gin.Context) {
	calls, err := h.store.ListCallsForUser(c.Request.Context(), currentUser(c).ID, 50)
	if err != nil {
		storageError(c, err, "Call")
		return
	}
	respond(c, http.StatusOK, calls)
}

// GetCall godoc
// @Summary Get call
// @Tags calls
// @Produce json
// @Param id path int true "Call ID"
// @Success 200 {object} models.VideoCall
// @Router /calls/{id} [get]
func (h *Handler) GetCall(c *gin.Context) {
	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, call)
}

// AcceptCall godoc
// @Summary Accept a ringing call
// @Tags calls
// @Produce json
// @Param id path int true "Call ID"
// @Success 200 {object} models.VideoCall
// @Failure 409 {object} ErrorResponse
// @Router /calls/{id}/accept [post]
func (h *Handler) AcceptCall(c *gin.Context) {
	h.transitionCall(c, models.CallAccepted, true)
}

// DeclineCall godoc
// @Summary Decline a ringing call
// @Tags calls
// @Produce json
// @Param id path int true "Call ID"
// @Success 200 {object} models.VideoCall
// @Router /calls/{id}/decline [post]
func (h *Handler) DeclineCall(c *gin.Context) {
	h.transitionCall(c, models.CallDeclined, true)
}

// EndCall godoc
// @Summary Hang up
// @Description Either side may end a ringing or accepted call
// @Tags calls
// @Produce json
// @Param id path int true "Call ID"
// @Success 200 {object} models.VideoCall
// @Router /calls/{id}/end [post]
func (h *Handler) EndCall(c *gin.Context) {
	h.transitionCall(c, models.CallEnded, false)
}

// transitionCall moves the call and tells both sides. calleeOnly guards accept and decline.
func (h *Handler) transitionCall(c *gin.Context, status string, calleeOnly bool) {
	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	user := currentUser(c)
	if calleeOnly && call.CalleeID != user.ID {
		forbidden(c, "Only the callee can answer this call")
		return
	}

	updated, err := h.store.TransitionCall(c.Request.Context(), call.ID, status)
	if err != nil {
		storageError(c, err, "Call")
		return
	}
	h.notifier.EmitMany([]uuid.UUID{updated.CallerID, updated.CalleeID}, "call."+status, updated)
	respond(c, http.StatusOK, updated)
}

// SignalCall godoc
// @Summary Relay a WebRTC signal
// @Description Forwarded to the other party as call.signal; nothing is stored
// @Tags calls
// @Accept json
// @Produce json
// @Param id path int true "Call ID"
// @Param body body SignalRequest true "Signal"
// @Success 202 {object} map[string]interface{}
// @Failure 409 {object} ErrorResponse "Call already finished"
// @Router /calls/{id}/signal [post]
func (h *Handler) SignalCall(c *gin.Context) {
	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	if call.Status != models.CallRinging && call.Status != models.CallAccepted {
		abortWith(c, http.StatusConflict, "Call is over", "Signals can only be sent on a live call")
		return
	}
	var req SignalRequest
	if !bind(c, &req) {
		return
	}

	user := currentUser(c)
	peer := call.Peer(user.ID)
	msg := notification.NewWebSocketMessage("call.signal", gin.H{
		"call_id": call.ID,
		"room_id": call.RoomID,
		"from":    user.ID,
		"type":    req.Type,
		"payload": req.Payload,
	})
	delivered := h.sockets.SendToUser(peer, &msg) == nil
	c.JSON(http.StatusAccepted, gin.H{"success": true, "delivered": delivered})
}

func (h *Handler) loadCall(c *gin.Context) (*models.VideoCall, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	call, err := h.store.GetCall(c.Request.Context(), id)
	if err != nil {
		storageError(c, err, "Call")
		return nil, false
	}
	if !call.IsParty(currentUser(c).ID) {
		forbidden(c, "You are not part of this call")
		return nil, false
	}
	return call, true
}
