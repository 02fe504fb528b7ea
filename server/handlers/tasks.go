package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"desktown-backend/shared/clients"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/utils/query"
)

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required" example:"Prepare quarterly report"`
	Description string     `json:"description"`
	Priority    string     `json:"priority" example:"medium"`
	Status      string     `json:"status" example:"pending"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

type UpdateTaskRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Priority      *string    `json:"priority"`
	Status        *string    `json:"status"`
	AssigneeID    *uuid.UUID `json:"assignee_id"`
	ClearAssignee bool       `json:"clear_assignee"`
	DueDate       *time.Time `json:"due_date"`
}

type TaskStatusRequest struct {
	Status string `json:"status" binding:"required" example:"in_progress"`
}

func canSeeTask(user *models.User, task *models.Task) bool {
	if isStaff(user) || task.CreatorID == user.ID {
		return true
	}
	return task.AssigneeID != nil && *task.AssigneeID == user.ID
}

func canEditTask(user *models.User, task *models.Task) bool {
	return task.CreatorID == user.ID || isStaff(user)
}

// taskFilterFor reads ?assignee=me|<uuid>, ?creator=me|<uuid>, ?status and ?priority.
// Non-staff callers only ever see tasks they created or are assigned to.
func taskFilterFor(c *gin.Context, user *models.User) (storage.TaskFilter, error) {
	f := storage.TaskFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	}

	parse := func(raw string) (*uuid.UUID, error) {
		if raw == "" {
			return nil, nil
		}
		if raw == "me" {
			id := user.ID
			return &id, nil
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		return &id, nil
	}

	var err error
	if f.AssigneeID, err = parse(c.Query("assignee")); err != nil {
		return f, fmt.Errorf("invalid assignee")
	}
	if f.CreatorID, err = parse(c.Query("creator")); err != nil {
		return f, fmt.Errorf("invalid creator")
	}
	if f.Status != "" && !models.ValidTaskStatus(f.Status) {
		return f, fmt.Errorf("invalid status")
	}

	if !isStaff(user) {
		me := user.ID
		f.Involving = &me
	}
	return f, nil
}

// ListTasks godoc
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Param assignee query string false "me or a user id"
// @Param creator query string false "me or a user id"
// @Param status query string false "pending, in_progress, completed, cancelled"
// @Param priority query string false "low, medium, high, urgent"
// @Param search query string false "Search title and description"
// @Success 200 {object} PaginatedResponse
// @Router /tasks [get]
func (h *Handler) ListTasks(c *gin.Context) {
	user := currentUser(c)
	f, err := taskFilterFor(c, user)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	params := query.ParseQueryParams(c)

	tasks, total, err := h.store.ListTasks(c.Request.Context(), f, params)
	if err != nil {
		storageError(c, err, "Task")
		return
	}
	respondList(c, tasks, params, total)
}

// CreateTask godoc
// @Summary Create task
// @Tags tasks
// @Accept json
// @Produce json
// @Param body body CreateTaskRequest true "Task"
// @Success 201 {object} models.Task
// @Failure 400 {object} ErrorResponse
// @Router /tasks [post]
func (h *Handler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if !bind(c, &req) {
		return
	}
	if req.Priority != "" && !models.ValidPriority(req.Priority) {
		badRequest(c, "priority must be one of low, medium, high, urgent")
		return
	}
	if req.Status != "" && !models.ValidTaskStatus(req.Status) {
		badRequest(c, "invalid status")
		return
	}

	user := currentUser(c)
	task := &models.Task{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		AssigneeID:  req.AssigneeID,
		CreatorID:   user.ID,
		DueDate:     req.DueDate,
	}
	ctx := c.Request.Context()
	if err := h.store.CreateTask(ctx, task); err != nil {
		storageError(c, err, "Task")
		return
	}

	if task.AssigneeID != nil && *task.AssigneeID != user.ID {
		h.notifyTaskAssigned(ctx, task, user)
	}
	respond(c, http.StatusCreated, task)
}

// GetTask godoc
// @Summary Get task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} models.Task
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [get]
func (h *Handler) GetTask(c *gin.Context) {
	task, ok := h.loadTask(c, canSeeTask)
	if !ok {
		return
	}
	respond(c, http.StatusOK, task)
}

// UpdateTask godoc
// @Summary Update task
// @Description Creator or manager and above
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param body body UpdateTaskRequest true "Fields to change"
// @Success 200 {object} models.Task
// @Router /tasks/{id} [patch]
func (h *Handler) UpdateTask(c *gin.Context) {
	task, ok := h.loadTask(c, canEditTask)
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if !bind(c, &req) {
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			badRequest(c, "title cannot be empty")
			return
		}
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Priority != nil {
		if !models.ValidPriority(*req.Priority) {
			badRequest(c, "priority must be one of low, medium, high, urgent")
			return
		}
		updates["priority"] = *req.Priority
	}
	if req.Status != nil {
		if !models.ValidTaskStatus(*req.Status) {
			badRequest(c, "invalid status")
			return
		}
		updates["status"] = *req.Status
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.ClearAssignee {
		updates["assignee_id"] = nil
	} else if req.AssigneeID != nil {
		updates["assignee_id"] = *req.AssigneeID
	}

	ctx := c.Request.Context()
	updated, err := h.store.UpdateTask(ctx, task.ID, updates)
	if err != nil {
		storageError(c, err, "Task")
		return
	}

	user := currentUser(c)
	if req.AssigneeID != nil && !req.ClearAssignee && *req.AssigneeID != user.ID &&
		(task.AssigneeID == nil || *task.AssigneeID != *req.AssigneeID) {
		h.notifyTaskAssigned(ctx, updated, user)
	}
	respond(c, http.StatusOK, updated)
}

// UpdateTaskStatus godoc
// @Summary Change task status
// @Description Assignee, creator or manager and above
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param body body TaskStatusRequest true "New status"
// @Success 200 {object} models.Task
// @Router /tasks/{id}/status [patch]
func (h *Handler) UpdateTaskStatus(c *gin.Context) {
	task, ok := h.loadTask(c, canSeeTask)
	if !ok {
		return
	}
	h.changeTaskStatus(c, task)
}

func (h *Handler) changeTaskStatus(c *gin.Context, task *models.Task) {
	var req TaskStatusRequest
	if !bind(c, &req) {
		return
	}
	if !models.ValidTaskStatus(req.Status) {
		badRequest(c, "status must be one of pending, in_progress, completed, cancelled")
		return
	}

	ctx := c.Request.Context()
	updated, err := h.store.UpdateTaskStatus(ctx, task.ID, req.Status)
	if err != nil {
		storageError(c, err, "Task")
		return
	}

	user := currentUser(c)
	if updated.CreatorID != user.ID && task.Status != updated.Status {
		h.notify(ctx, &notification.Notification{
			UserID:   updated.CreatorID,
			Type:     notification.TypeTaskStatus,
			Title:    "Task updated",
			Message:  fmt.Sprintf("%s moved \"%s\" to %s", user.FullName(), updated.Title, updated.Status),
			Link:     fmt.Sprintf("/tasks/%d", updated.ID),
			Entity:   "task",
			EntityID: fmt.Sprint(updated.ID),
		})
	}
	respond(c, http.StatusOK, updated)
}

// DeleteTask godoc
// @Summary Delete task
// @Description Creator or manager and above
// @Tags tasks
// @Param id path int true "Task ID"
// @Success 200 {object} map[string]interface{}
// @Router /tasks/{id} [delete]
func (h *Handler) DeleteTask(c *gin.Context) {
	task, ok := h.loadTask(c, canEditTask)
	if !ok {
		return
	}
	if err := h.store.DeleteTask(c.Request.Context(), task.ID); err != nil {
		storageError(c, err, "Task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Task deleted"})
}

// AutomateTask godoc
// @Summary Send task to the automation workflow
// @Description Posts the task once to the configured webhook; the task is marked queued or failed
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 202 {object} models.Task
// @Failure 502 {object} models.Task
// @Failure 503 {object} ErrorResponse
// @Router /tasks/{id}/automate [post]
func (h *Handler) AutomateTask(c *gin.Context) {
	task, ok := h.loadTask(c, canSeeTask)
	if !ok {
		return
	}
	if !h.automation.Enabled() {
		abortWith(c, http.StatusServiceUnavailable, "Automation unavailable", "No automation webhook is configured")
		return
	}

	ctx := c.Request.Context()
	queued, err := h.store.SetTaskAutomation(ctx, task.ID, models.AutomationQueued, nil)
	if err != nil {
		storageError(c, err, "Task")
		return
	}

	// a callback may land before SendTask returns
	sendErr := h.automation.SendTask(ctx, clients.TaskAutomationRequest{
		TaskID:      task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		Status:      task.Status,
		RequestedBy: currentUser(c).ID.String(),
		CallbackURL: h.publicURL("/api/automations/callback"),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if sendErr != nil {
		log.Printf("❌ Task %d automation failed: %v", task.ID, sendErr)
		failed, err := h.store.FailQueuedAutomation(ctx, task.ID)
		if err != nil {
			storageError(c, err, "Task")
			return
		}
		respond(c, http.StatusBadGateway, failed)
		return
	}

	latest, err := h.store.GetTask(ctx, task.ID)
	if err != nil {
		latest = queued
	}
	respond(c, http.StatusAccepted, latest)
}

// loadTask resolves :id and applies allow; it writes the error response itself
func (h *Handler) loadTask(c *gin.Context, allow func(*models.User, *models.Task) bool) (*models.Task, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	task, err := h.store.GetTask(c.Request.Context(), id)
	if err != nil {
		storageError(c, err, "Task")
		return nil, false
	}
	if !allow(currentUser(c), task) {
		forbidden(c, "You are not allowed to access this task")
		return nil, false
	}
	return task, true
}

func (h *Handler) notifyTaskAssigned(ctx context.Context, task *models.Task, by *models.User) {
	h.notify(ctx, &notification.Notification{
		UserID:   *task.AssigneeID,
		Type:     notification.TypeTaskAssigned,
		Title:    "New task assigned",
		Message:  fmt.Sprintf("%s assigned you \"%s\"", by.FullName(), task.Title),
		Link:     fmt.Sprintf("/tasks/%d", task.ID),
		Entity:   "task",
		EntityID: fmt.Sprint(task.ID),
		Data:     datatypes.JSONMap{"priority": task.Priority},
	})
}

// notify never fails the request; delivery problems are logged
func (h *Handler) notify(ctx context.Context, item *notification.Notification) {
	if err := h.notifier.Notify(ctx, item); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("⚠️  Notification %s for %s not stored: %v", item.Type, item.UserID, err)
	}
}

// publicURL joins path onto the configured public API address
func (h *Handler) publicURL(path string) string {
	return strings.TrimRight(h.cfg.PublicAPIURL, "/") + path
}
