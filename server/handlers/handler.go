// Package handlers implements the DeskTown HTTP API on top of gin.
package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"desktown-backend/server/middleware"
	"desktown-backend/server/services"
	"desktown-backend/shared/clients"
	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/search"
	"desktown-backend/shared/session"
	"desktown-backend/shared/utils/query"
)

// Dependencies are the collaborators shared by every route group
type Dependencies struct {
	Store      *storage.Storage
	Sessions   *session.RedisStore
	Sockets    *services.WebSocketManager
	Notifier   *services.Notifier
	Payments   *services.PaymentService
	Automation *clients.AutomationClient
	Objects    *services.ObjectStorage
	Search     *search.Service
	Mailer     services.Mailer
	Config     *config.Config
}

// Handler serves every /api route
type Handler struct {
	store      *storage.Storage
	sessions   *session.RedisStore
	sockets    *services.WebSocketManager
	notifier   *services.Notifier
	payments   *services.PaymentService
	automation *clients.AutomationClient
	objects    *services.ObjectStorage
	search     *search.Service
	mailer     services.Mailer
	cfg        *config.Config
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		store:      deps.Store,
		sessions:   deps.Sessions,
		sockets:    deps.Sockets,
		notifier:   deps.Notifier,
		payments:   deps.Payments,
		automation: deps.Automation,
		objects:    deps.Objects,
		search:     deps.Search,
		mailer:     deps.Mailer,
		cfg:        deps.Config,
	}
}

// PaginatedResponse is the envelope for list endpoints
type PaginatedResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items      interface{}              `json:"items"`
		Pagination query.PaginationResponse `json:"pagination"`
	} `json:"data"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondList(c *gin.Context, items interface{}, params query.Params, total int64) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"items":      items,
			"pagination": query.BuildPaginationResponse(params.Page, params.Limit, total),
		},
	})
}

func abortWith(c *gin.Context, status int, title, message string) {
	c.JSON(status, gin.H{
		"error":   title,
		"message": message,
	})
}

func badRequest(c *gin.Context, message string) {
	abortWith(c, http.StatusBadRequest, "Invalid request", message)
}

func forbidden(c *gin.Context, message string) {
	abortWith(c, http.StatusForbidden, "Forbidden", message)
}

// storageError maps storage sentinels onto HTTP statuses. resource names the entity for 404s.
func storageError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		abortWith(c, http.StatusNotFound, resource+" not found", resource+" with the given ID does not exist")
	case errors.Is(err, storage.ErrConflict):
		abortWith(c, http.StatusConflict, resource+" already exists", err.Error())
	case errors.Is(err, storage.ErrInvalidTransition):
		abortWith(c, http.StatusConflict, "Invalid status transition", err.Error())
	case errors.Is(err, storage.ErrForbidden):
		forbidden(c, "You are not allowed to access this "+resource)
	default:
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		abortWith(c, http.StatusInternalServerError, "Internal server error", "Failed to process "+resource)
	}
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWith(c, http.StatusBadRequest, "Invalid request format", err.Error())
		return false
	}
	return true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// currentUser is only called behind SessionAuth or EmployeeAuth
func currentUser(c *gin.Context) *models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}

func isStaff(user *models.User) bool {
	return user.HasRole(models.RoleManager, models.RoleAdmin, models.RoleSuperAdmin)
}
