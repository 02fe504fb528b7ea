package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"desktown-backend/server/middleware"
	"desktown-backend/server/services"
	"desktown-backend/shared/clients"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/utils/webhook"
)

// maxWebhookBody caps inbound provider payloads
const maxWebhookBody = 1 << 20

type InboundEmailRequest struct {
	From    string   `json:"from" binding:"required" example:"billing@vendor.com"`
	To      []string `json:"to" binding:"required,min=1"`
	Subject string   `json:"subject" binding:"required"`
	Body    string   `json:"body"`
}

type InboundEmailResponse struct {
	Delivered  int      `json:"delivered"`
	Unresolved []string `json:"unresolved"`
}

// readSigned reads the raw body and checks it against the shared automation secret
func (h *Handler) readSigned(c *gin.Context, source string) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "Could not read request body")
		return nil, false
	}
	err = webhook.Verify([]byte(h.cfg.AutomationWebhookSecret), body, c.GetHeader(webhook.SignatureHeader), webhook.DefaultTolerance, time.Now())
	if err != nil {
		middleware.RecordWebhook(source, "rejected")
		log.Printf("⚠️  Rejected %s webhook from %s: %v", source, c.ClientIP(), err)
		abortWith(c, http.StatusUnauthorized, "Invalid signature", err.Error())
		return nil, false
	}
	return body, true
}

// PaymentWebhook godoc
// @Summary Payment provider webhook
// @Description Signed with X-DeskTown-Signature. Redelivered events are acknowledged without side effects.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-DeskTown-Signature header string true "t=<unix>,v1=<hmac>"
// @Success 200 {object} services.WebhookResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /webhooks/payments [post]
func (h *Handler) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "Could not read request body")
		return
	}

	result, err := h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(webhook.SignatureHeader))
	switch {
	case err == nil:
		middleware.RecordWebhook("payments", result.Outcome)
		respond(c, http.StatusOK, result)
	case errors.Is(err, services.ErrMalformedEvent):
		middleware.RecordWebhook("payments", "malformed")
		badRequest(c, err.Error())
	case isSignatureError(err):
		middleware.RecordWebhook("payments", "rejected")
		log.Printf("⚠️  Rejected payment webhook from %s: %v", c.ClientIP(), err)
		abortWith(c, http.StatusUnauthorized, "Invalid signature", err.Error())
	default:
		middleware.RecordWebhook("payments", "error")
		storageError(c, err, "Order")
	}
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrMissingSignature) ||
		errors.Is(err, webhook.ErrMalformedHeader) ||
		errors.Is(err, webhook.ErrInvalidSignature) ||
		errors.Is(err, webhook.ErrExpiredTimestamp) ||
		errors.Is(err, webhook.ErrNoSecret)
}

// AutomationCallback godoc
// @Summary Task automation result
// @Description Posted by the automation workflow, signed with the automation secret
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-DeskTown-Signature header string true "t=<unix>,v1=<hmac>"
// @Param body body clients.TaskAutomationCallback true "Result"
// @Success 200 {object} models.Task
// @Router /automations/callback [post]
func (h *Handler) AutomationCallback(c *gin.Context) {
	body, ok := h.readSigned(c, "automation")
	if !ok {
		return
	}
	var cb clients.TaskAutomationCallback
	if err := bindBytes(body, &cb); err != nil || cb.TaskID == 0 {
		badRequest(c, "task_id and status are required")
		return
	}

	status := strings.ToLower(cb.Status)
	switch status {
	case "completed", "success", "succeeded", "done":
		status = models.AutomationCompleted
	case "failed", "error":
		status = models.AutomationFailed
	default:
		badRequest(c, fmt.Sprintf("unknown automation status %q", cb.Status))
		return
	}

	ctx := c.Request.Context()
	task, duplicate, err := h.store.ApplyAutomationCallback(ctx, cb.TaskID, status, datatypes.JSON(cb.Result), cb.EventID)
	if err != nil {
		storageError(c, err, "Task")
		return
	}
	if duplicate {
		middleware.RecordWebhook("automation", "duplicate")
		respond(c, http.StatusOK, task)
		return
	}
	middleware.RecordWebhook("automation", status)

	level := notification.NotificationLevelSuccess
	if status == models.AutomationFailed {
		level = notification.NotificationLevelError
	}
	for _, userID := range taskAudience(task) {
		h.notify(ctx, &notification.Notification{
			UserID:   userID,
			Type:     notification.TypeTaskAutomated,
			Level:    level,
			Title:    "Automation " + status,
			Message:  task.Title,
			Link:     fmt.Sprintf("/tasks/%d", task.ID),
			Entity:   "task",
			EntityID: fmt.Sprint(task.ID),
		})
	}
	respond(c, http.StatusOK, task)
}

func taskAudience(task *models.Task) []uuid.UUID {
	ids := []uuid.UUID{task.CreatorID}
	if task.AssigneeID != nil && *task.AssigneeID != task.CreatorID {
		ids = append(ids, *task.AssigneeID)
	}
	return ids
}

// InboundEmail godoc
// @Summary Deliver an external email into DeskTown mailboxes
// @Description Recipients are matched by email address or username; unknown ones are reported back
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-DeskTown-Signature header string true "t=<unix>,v1=<hmac>"
// @Param body body InboundEmailRequest true "Email"
// @Success 201 {object} InboundEmailResponse
// @Failure 422 {object} ErrorResponse "No recipient matched"
// @Router /automations/internal-email [post]
func (h *Handler) InboundEmail(c *gin.Context) {
	body, ok := h.readSigned(c, "internal-email")
	if !ok {
		return
	}
	var req InboundEmailRequest
	if err := bindBytes(body, &req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	recipients, unresolved := h.resolveRecipients(c, req.To)
	if len(recipients) == 0 {
		abortWith(c, http.StatusUnprocessableEntity, "No recipients", "None of the addresses belong to a DeskTown user")
		return
	}

	emails, err := h.store.SendEmail(ctx, nil, strings.TrimSpace(req.From), recipients, req.Subject, req.Body)
	if err != nil {
		storageError(c, err, "Email")
		return
	}
	h.notifyEmails(c, emails, req.From)
	middleware.RecordWebhook("internal-email", "delivered")

	respond(c, http.StatusCreated, InboundEmailResponse{Delivered: len(emails), Unresolved: unresolved})
}
