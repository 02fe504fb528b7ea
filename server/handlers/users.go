package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/utils/query"
)

// UpdateProfileRequest holds the fields a user may change on their own profile
type UpdateProfileRequest struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Phone      *string `json:"phone"`
	Avatar     *string `json:"avatar"`
	JobTitle   *string `json:"job_title"`
	Department *string `json:"department"`
	Bio        *string `json:"bio"`
}

type PresenceRequest struct {
	Presence string `json:"presence" binding:"required" example:"online"`
}

// ListUsers godoc
// @Summary User directory
// @Description Active users with search, filters and pagination
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 20)"
// @Param search query string false "Search across name, username, email, title and department"
// @Param filters[role] query string false "Filter by role"
// @Param filters[department] query string false "Filter by department"
// @Success 200 {object} PaginatedResponse
// @Router /users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	params := query.ParseQueryParams(c, "role", "department", "presence")
	params.Filters["is_active"] = "true"

	users, total, err := h.store.ListUsers(c.Request.Context(), params)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	respondList(c, users, params, total)
}

// GetUser godoc
// @Summary Get user by ID
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	respond(c, http.StatusOK, user)
}

// ListOnlineUsers godoc
// @Summary Users currently online, away or busy
// @Tags users
// @Produce json
// @Success 200 {array} models.User
// @Router /users/online [get]
func (h *Handler) ListOnlineUsers(c *gin.Context) {
	users, err := h.store.ListOnlineUsers(c.Request.Context())
	if err != nil {
		storageError(c, err, "User")
		return
	}
	respond(c, http.StatusOK, users)
}

// UpdateProfile godoc
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Param body body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Router /users/me [patch]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !bind(c, &req) {
		return
	}

	updates := map[string]interface{}{}
	set := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	set("first_name", req.FirstName)
	set("last_name", req.LastName)
	set("phone", req.Phone)
	set("avatar", req.Avatar)
	set("job_title", req.JobTitle)
	set("department", req.Department)
	set("bio", req.Bio)

	user, err := h.store.UpdateUser(c.Request.Context(), currentUser(c).ID, updates)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	respond(c, http.StatusOK, user)
}

// UpdatePresence godoc
// @Summary Presence heartbeat
// @Description Records presence and last seen time, then broadcasts it
// @Tags users
// @Accept json
// @Produce json
// @Param body body PresenceRequest true "Presence"
// @Success 200 {object} models.User
// @Router /users/me/presence [post]
func (h *Handler) UpdatePresence(c *gin.Context) {
	var req PresenceRequest
	if !bind(c, &req) {
		return
	}
	if !models.ValidPresence(req.Presence) {
		badRequest(c, "presence must be one of online, away, busy, offline")
		return
	}

	user, err := h.store.UpdatePresence(c.Request.Context(), currentUser(c).ID, req.Presence)
	if err != nil {
		storageError(c, err, "User")
		return
	}

	msg := notification.NewWebSocketMessage("presence", gin.H{
		"user_id":      user.ID,
		"presence":     user.Presence,
		"last_seen_at": user.LastSeenAt,
	})
	h.sockets.BroadcastToAll(&msg)

	respond(c, http.StatusOK, user)
}
