package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/utils/query"
)

type SendEmailRequest struct {
	To      []string `json:"to" binding:"required,min=1" example:"jane@desktown.app"`
	Subject string   `json:"subject" binding:"required"`
	Body    string   `json:"body"`
}

type UpdateEmailRequest struct {
	IsRead     *bool `json:"is_read"`
	IsStarred  *bool `json:"is_starred"`
	IsArchived *bool `json:"is_archived"`
}

// bindBytes decodes an already-read body and runs the binding validator on it
func bindBytes(body []byte, req interface{}) error {
	if err := json.Unmarshal(body, req); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(req)
}

// ListEmails godoc
// @Summary Mailbox
// @Tags emails
// @Produce json
// @Param folder query string false "inbox, sent, starred or archived" default(inbox)
// @Param search query string false "Search subject and body"
// @Success 200 {object} PaginatedResponse
// @Router /emails [get]
func (h *Handler) ListEmails(c *gin.Context) {
	folder := c.DefaultQuery("folder", models.FolderInbox)
	if !models.ValidFolder(folder) {
		badRequest(c, "folder must be inbox, sent, starred or archived")
		return
	}
	params := query.ParseQueryParams(c)
	emails, total, err := h.store.ListEmails(c.Request.Context(), currentUser(c).ID, folder, params)
	if err != nil {
		storageError(c, err, "Email")
		return
	}
	respondList(c, emails, params, total)
}

// SendEmail godoc
// @Summary Send an internal email
// @Description to accepts user IDs, email addresses or usernames
// @Tags emails
// @Accept json
// @Produce json
// @Param body body SendEmailRequest true "Email"
// @Success 201 {array} models.InternalEmail
// @Router /emails [post]
func (h *Handler) SendEmail(c *gin.Context) {
	var req SendEmailRequest
	if !bind(c, &req) {
		return
	}
	recipients, unresolved := h.resolveRecipients(c, req.To)
	if len(unresolved) > 0 {
		badRequest(c, "Unknown recipients: "+strings.Join(unresolved, ", "))
		return
	}

	user := currentUser(c)
	emails, err := h.store.SendEmail(c.Request.Context(), &user.ID, user.Email, recipients, strings.TrimSpace(req.Subject), req.Body)
	if err != nil {
		storageError(c, err, "Email")
		return
	}
	h.notifyEmails(c, emails, user.FullName())
	respond(c, http.StatusCreated, emails)
}

// GetEmail godoc
// @Summary Read an email
// @Description Opening an inbox email marks it read
// @Tags emails
// @Produce json
// @Param id path int true "Email ID"
// @Success 200 {object} models.InternalEmail
// @Router /emails/{id} [get]
func (h *Handler) GetEmail(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)
	email, err := h.store.GetEmail(ctx, id, user.ID)
	if err != nil {
		storageError(c, err, "Email")
		return
	}
	if email.RecipientID == user.ID && !email.IsRead {
		read := true
		if updated, err := h.store.UpdateEmailFlags(ctx, id, user.ID, storage.EmailFlags{Read: &read}); err == nil {
			email = updated
		}
	}
	respond(c, http.StatusOK, email)
}

// UpdateEmail godoc
// @Summary Flag an email
// @Description Recipient only
// @Tags emails
// @Accept json
// @Produce json
// @Param id path int true "Email ID"
// @Param body body UpdateEmailRequest true "Flags"
// @Success 200 {object} models.InternalEmail
// @Router /emails/{id} [patch]
func (h *Handler) UpdateEmail(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateEmailRequest
	if !bind(c, &req) {
		return
	}
	email, err := h.store.UpdateEmailFlags(c.Request.Context(), id, currentUser(c).ID, storage.EmailFlags{
		Read:     req.IsRead,
		Starred:  req.IsStarred,
		Archived: req.IsArchived,
	})
	if err != nil {
		storageError(c, err, "Email")
		return
	}
	respond(c, http.StatusOK, email)
}

// DeleteEmail godoc
// @Summary Delete an email from the caller's mailbox
// @Tags emails
// @Param id path int true "Email ID"
// @Success 200 {object} map[string]interface{}
// @Router /emails/{id} [delete]
func (h *Handler) DeleteEmail(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteEmail(c.Request.Context(), id, currentUser(c).ID); err != nil {
		storageError(c, err, "Email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email deleted"})
}

// EmailUnreadCount godoc
// @Summary Unread inbox count
// @Tags emails
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /emails/unread-count [get]
func (h *Handler) EmailUnreadCount(c *gin.Context) {
	count, err := h.store.EmailUnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		storageError(c, err, "Email")
		return
	}
	respond(c, http.StatusOK, gin.H{"count": count})
}

// resolveRecipients maps user IDs, emails and usernames onto active users
func (h *Handler) resolveRecipients(c *gin.Context, to []string) ([]uuid.UUID, []string) {
	ctx := c.Request.Context()
	var (
		ids        []uuid.UUID
		unresolved []string
	)
	for _, raw := range to {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		var (
			user *models.User
			err  error
		)
		if id, perr := uuid.Parse(addr); perr == nil {
			user, err = h.store.GetUser(ctx, id)
		} else {
			user, err = h.store.GetUserByLogin(ctx, addr)
		}
		if err != nil || !user.IsActive {
			unresolved = append(unresolved, addr)
			continue
		}
		ids = append(ids, user.ID)
	}
	return ids, unresolved
}

func (h *Handler) notifyEmails(c *gin.Context, emails []models.InternalEmail, from string) {
	ctx := c.Request.Context()
	for _, e := range emails {
		h.notify(ctx, &notification.Notification{
			UserID:   e.RecipientID,
			Type:     notification.TypeEmailReceived,
			Title:    "New email from " + from,
			Message:  e.Subject,
			Link:     fmt.Sprintf("/emails/%d", e.ID),
			Entity:   "email",
			EntityID: fmt.Sprint(e.ID),
		})
	}
}
