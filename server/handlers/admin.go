package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/utils/query"
)

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required" example:"manager"`
}

// AdminListUsers godoc
// @Summary All users, including deactivated ones
// @Tags admin
// @Produce json
// @Param filters[is_active] query bool false "Filter by active flag"
// @Param filters[role] query string false "Filter by role"
// @Success 200 {object} PaginatedResponse
// @Router /admin/users [get]
func (h *Handler) AdminListUsers(c *gin.Context) {
	params := query.ParseQueryParams(c, "role", "is_active")
	users, total, err := h.store.ListUsers(c.Request.Context(), params)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	respondList(c, users, params, total)
}

// AdminUpdateRole godoc
// @Summary Change a user's role
// @Description Only super_admin may grant or revoke admin and super_admin
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body UpdateRoleRequest true "Role"
// @Success 200 {object} models.User
// @Router /admin/users/{id}/role [patch]
func (h *Handler) AdminUpdateRole(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !bind(c, &req) {
		return
	}
	if !models.ValidRole(req.Role) {
		badRequest(c, "Unknown role "+req.Role)
		return
	}

	actor := currentUser(c)
	if actor.ID == id {
		forbidden(c, "You cannot change your own role")
		return
	}
	ctx := c.Request.Context()
	target, err := h.store.GetUser(ctx, id)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	if !actor.HasRole(models.RoleSuperAdmin) && (target.IsAdmin() || req.Role == models.RoleAdmin || req.Role == models.RoleSuperAdmin) {
		forbidden(c, "Only a super admin can manage administrators")
		return
	}

	updated, err := h.store.UpdateUserRole(ctx, id, req.Role)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	log.Printf("🔑 Role of %s changed to %s by %s", updated.Email, updated.Role, actor.Email)
	respond(c, http.StatusOK, updated)
}

// AdminDeactivateUser godoc
// @Summary Deactivate an account
// @Description Every cookie session and employee token of the user is revoked
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Router /admin/users/{id}/deactivate [post]
func (h *Handler) AdminDeactivateUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	actor := currentUser(c)
	if actor.ID == id {
		forbidden(c, "You cannot deactivate your own account")
		return
	}
	ctx := c.Request.Context()
	target, err := h.store.GetUser(ctx, id)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	if target.HasRole(models.RoleSuperAdmin) && !actor.HasRole(models.RoleSuperAdmin) {
		forbidden(c, "Only a super admin can deactivate a super admin")
		return
	}

	updated, err := h.store.DeactivateUser(ctx, id)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	revoked, err := h.sessions.RevokeUser(ctx, id.String())
	if err != nil {
		log.Printf("⚠️  Could not revoke sessions of %s: %v", id, err)
	}
	log.Printf("🚫 User %s deactivated by %s (%d sessions revoked)", updated.Email, actor.Email, revoked)

	msg := notification.NewWebSocketMessage("presence", gin.H{
		"user_id":  updated.ID,
		"presence": updated.Presence,
	})
	h.sockets.BroadcastToAll(&msg)
	respond(c, http.StatusOK, updated)
}

// AdminStats godoc
// @Summary Platform dashboard
// @Tags admin
// @Produce json
// @Success 200 {object} storage.PlatformStats
// @Router /admin/stats [get]
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.store.PlatformStats(c.Request.Context())
	if err != nil {
		storageError(c, err, "Stats")
		return
	}
	respond(c, http.StatusOK, stats)
}

// AdminListOffices godoc
// @Summary Every office, including drafts
// @Tags admin
// @Produce json
// @Success 200 {object} PaginatedResponse
// @Router /admin/offices [get]
func (h *Handler) AdminListOffices(c *gin.Context) {
	params := query.ParseQueryParams(c)
	offices, total, err := h.store.ListOffices(c.Request.Context(), storage.OfficeFilter{Category: c.Query("category")}, params)
	if err != nil {
		storageError(c, err, "Office")
		return
	}
	respondList(c, offices, params, total)
}

// AdminDeleteOffice godoc
// @Summary Remove any office
// @Tags admin
// @Param id path string true "Office ID"
// @Success 200 {object} map[string]interface{}
// @Router /admin/offices/{id} [delete]
func (h *Handler) AdminDeleteOffice(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.removeOffice(c.Request.Context(), id); err != nil {
		storageError(c, err, "Office")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Office deleted"})
}

// AdminPurgeStatuses godoc
// @Summary Delete expired statuses
// @Description Expired statuses are already hidden; this reclaims their rows
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/statuses/purge [post]
func (h *Handler) AdminPurgeStatuses(c *gin.Context) {
	purged, err := h.store.PurgeExpiredStatuses(c.Request.Context())
	if err != nil {
		storageError(c, err, "Status")
		return
	}
	log.Printf("🧹 Purged %d expired statuses", purged)
	respond(c, http.StatusOK, gin.H{"purged": purged})
}

// AdminAuditLogs godoc
// @Summary Audit trail of admin actions
// @Tags admin
// @Produce json
// @Param filters[action] query string false "Filter by action"
// @Success 200 {object} PaginatedResponse
// @Router /admin/audit-logs [get]
func (h *Handler) AdminAuditLogs(c *gin.Context) {
	params := query.ParseQueryParams(c, "action", "user_id")
	logs, total, err := h.store.ListAuditLogs(c.Request.Context(), params)
	if err != nil {
		storageError(c, err, "Audit log")
		return
	}
	respondList(c, logs, params, total)
}
