package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/utils/query"
)

// EmployeeMe godoc
// @Summary Employee portal profile
// @Tags employee
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Router /employee/me [get]
func (h *Handler) EmployeeMe(c *gin.Context) {
	respond(c, http.StatusOK, currentUser(c))
}

// EmployeeTasks godoc
// @Summary Tasks assigned to the employee
// @Tags employee
// @Security BearerAuth
// @Produce json
// @Param status query string false "Task status"
// @Success 200 {object} PaginatedResponse
// @Router /employee/tasks [get]
func (h *Handler) EmployeeTasks(c *gin.Context) {
	user := currentUser(c)
	params := query.ParseQueryParams(c)
	f := storage.TaskFilter{AssigneeID: &user.ID, Status: c.Query("status")}

	tasks, total, err := h.store.ListTasks(c.Request.Context(), f, params)
	if err != nil {
		storageError(c, err, "Task")
		return
	}
	respondList(c, tasks, params, total)
}

// EmployeeUpdateTaskStatus godoc
// @Summary Move an assigned task
// @Tags employee
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param body body TaskStatusRequest true "New status"
// @Success 200 {object} models.Task
// @Router /employee/tasks/{id}/status [patch]
func (h *Handler) EmployeeUpdateTaskStatus(c *gin.Context) {
	task, ok := h.loadTask(c, isAssignee)
	if !ok {
		return
	}
	h.changeTaskStatus(c, task)
}

func isAssignee(user *models.User, task *models.Task) bool {
	return task.AssigneeID != nil && *task.AssigneeID == user.ID
}
