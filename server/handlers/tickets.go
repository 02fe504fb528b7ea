package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/utils/query"
)

type CreateTicketRequest struct {
	Title       string `json:"title" binding:"required" example:"Projector in room 3 is broken"`
	Description string `json:"description"`
	Category    string `json:"category" example:"facilities"`
	Priority    string `json:"priority" example:"high"`
}

type UpdateTicketRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Priority    *string    `json:"priority"`
	Status      *string    `json:"status"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
}

type CommentRequest struct {
	Body string `json:"body" binding:"required"`
}

func canSeeTicket(user *models.User, t *models.Ticket) bool {
	if isStaff(user) || t.ReporterID == user.ID {
		return true
	}
	return t.AssigneeID != nil && *t.AssigneeID == user.ID
}

// ListTickets godoc
// @Summary List tickets
// @Description Staff see every ticket; everyone else sees tickets they reported or are assigned to
// @Tags tickets
// @Produce json
// @Param status query string false "open, in_progress, resolved, closed"
// @Param category query string false "Category"
// @Param assignee query string false "me"
// @Success 200 {object} PaginatedResponse
// @Router /tickets [get]
func (h *Handler) ListTickets(c *gin.Context) {
	user := currentUser(c)
	f := storage.TicketFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
	}
	me := user.ID
	switch {
	case c.Query("assignee") == "me":
		f.AssigneeID = &me
	case !isStaff(user):
		f.ReporterID = &me
	}

	params := query.ParseQueryParams(c)
	tickets, total, err := h.store.ListTickets(c.Request.Context(), f, params)
	if err != nil {
		storageError(c, err, "Ticket")
		return
	}
	respondList(c, tickets, params, total)
}

// CreateTicket godoc
// @Summary Open a ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Param body body CreateTicketRequest true "Ticket"
// @Success 201 {object} models.Ticket
// @Router /tickets [post]
func (h *Handler) CreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if !bind(c, &req) {
		return
	}
	if req.Priority != "" && !models.ValidPriority(req.Priority) {
		badRequest(c, "priority must be one of low, medium, high, urgent")
		return
	}

	ticket := &models.Ticket{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		ReporterID:  currentUser(c).ID,
	}
	if err := h.store.CreateTicket(c.Request.Context(), ticket); err != nil {
		storageError(c, err, "Ticket")
		return
	}
	respond(c, http.StatusCreated, ticket)
}

// GetTicket godoc
// @Summary Get ticket
// @Tags tickets
// @Produce json
// @Param id path int true "Ticket ID"
// @Success 200 {object} models.Ticket
// @Router /tickets/{id} [get]
func (h *Handler) GetTicket(c *gin.Context) {
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, ticket)
}

// UpdateTicket godoc
// @Summary Update ticket
// @Description Reporters may edit the text; status and assignment need manager or above
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path int true "Ticket ID"
// @Param body body UpdateTicketRequest true "Fields to change"
// @Success 200 {object} models.Ticket
// @Router /tickets/{id} [patch]
func (h *Handler) UpdateTicket(c *gin.Context) {
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	var req UpdateTicketRequest
	if !bind(c, &req) {
		return
	}

	user := currentUser(c)
	staff := isStaff(user)
	if !staff && ticket.ReporterID != user.ID {
		forbidden(c, "Only the reporter or staff can edit this ticket")
		return
	}
	if !staff && (req.AssigneeID != nil || (req.Status != nil && *req.Status != models.TicketStatusClosed)) {
		forbidden(c, "Only staff can assign or triage tickets")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Priority != nil {
		if !models.ValidPriority(*req.Priority) {
			badRequest(c, "priority must be one of low, medium, high, urgent")
			return
		}
		updates["priority"] = *req.Priority
	}
	if req.Status != nil {
		if !models.ValidTicketStatus(*req.Status) {
			badRequest(c, "status must be one of open, in_progress, resolved, closed")
			return
		}
		updates["status"] = *req.Status
	}
	if req.AssigneeID != nil {
		updates["assignee_id"] = *req.AssigneeID
	}

	updated, err := h.store.UpdateTicket(c.Request.Context(), ticket.ID, updates)
	if err != nil {
		storageError(c, err, "Ticket")
		return
	}
	respond(c, http.StatusOK, updated)
}

// DeleteTicket godoc
// @Summary Delete ticket
// @Description Reporter or manager and above; comments are removed with it
// @Tags tickets
// @Param id path int true "Ticket ID"
// @Success 200 {object} map[string]interface{}
// @Router /tickets/{id} [delete]
func (h *Handler) DeleteTicket(c *gin.Context) {
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	user := currentUser(c)
	if ticket.ReporterID != user.ID && !isStaff(user) {
		forbidden(c, "Only the reporter or staff can delete this ticket")
		return
	}
	if err := h.store.DeleteTicket(c.Request.Context(), ticket.ID); err != nil {
		storageError(c, err, "Ticket")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Ticket deleted"})
}

// ListTicketComments godoc
// @Summary Ticket comments
// @Tags tickets
// @Produce json
// @Param id path int true "Ticket ID"
// @Success 200 {array} models.TicketComment
// @Router /tickets/{id}/comments [get]
func (h *Handler) ListTicketComments(c *gin.Context) {
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	comments, err := h.store.ListTicketComments(c.Request.Context(), ticket.ID)
	if err != nil {
		storageError(c, err, "Ticket")
		return
	}
	respond(c, http.StatusOK, comments)
}

// AddTicketComment godoc
// @Summary Comment on a ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path int true "Ticket ID"
// @Param body body CommentRequest true "Comment"
// @Success 201 {object} models.TicketComment
// @Router /tickets/{id}/comments [post]
func (h *Handler) AddTicketComment(c *gin.Context) {
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	var req CommentRequest
	if !bind(c, &req) {
		return
	}

	user := currentUser(c)
	comment := &models.TicketComment{
		TicketID: ticket.ID,
		AuthorID: user.ID,
		Body:     strings.TrimSpace(req.Body),
	}
	ctx := c.Request.Context()
	if err := h.store.AddTicketComment(ctx, comment); err != nil {
		storageError(c, err, "Ticket")
		return
	}
	comment.Author = user

	// the other side of the conversation hears about it
	recipients := []uuid.UUID{ticket.ReporterID}
	if ticket.AssigneeID != nil {
		recipients = append(recipients, *ticket.AssigneeID)
	}
	for _, id := range recipients {
		if id == user.ID {
			continue
		}
		h.notify(ctx, &notification.Notification{
			UserID:   id,
			Type:     notification.TypeTicketComment,
			Title:    "New comment on ticket",
			Message:  fmt.Sprintf("%s commented on \"%s\"", user.FullName(), ticket.Title),
			Link:     fmt.Sprintf("/tickets/%d", ticket.ID),
			Entity:   "ticket",
			EntityID: fmt.Sprint(ticket.ID),
		})
	}
	respond(c, http.StatusCreated, comment)
}

func (h *Handler) loadTicket(c *gin.Context) (*models.Ticket, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	ticket, err := h.store.GetTicket(c.Request.Context(), id)
	if err != nil {
		storageError(c, err, "Ticket")
		return nil, false
	}
	if !canSeeTicket(currentUser(c), ticket) {
		forbidden(c, "You are not allowed to access this ticket")
		return nil, false
	}
	return ticket, true
}
