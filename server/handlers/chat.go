package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/utils/query"
)

type CreateThreadRequest struct {
	Name           string      `json:"name"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" binding:"required,min=1"`
	IsGroup        bool        `json:"is_group"`
}

type SendMessageRequest struct {
	Body          string `json:"body"`
	AttachmentURL string `json:"attachment_url"`
}

type AddParticipantRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// ThreadDetail is a thread with its members
type ThreadDetail struct {
	*models.ChatThread
	Participants []models.ChatParticipant `json:"participants"`
}

// ListThreads godoc
// @Summary My chat threads
// @Description Most recent activity first, with last message and unread count
// @Tags chat
// @Produce json
// @Success 200 {array} models.ThreadSummary
// @Router /chat/threads [get]
func (h *Handler) ListThreads(c *gin.Context) {
	threads, err := h.store.ListThreadsForUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		storageError(c, err, "Thread")
		return
	}
	respond(c, http.StatusOK, threads)
}

// CreateThread godoc
// @Summary Start a thread
// @Description A direct thread with one other user is reused if it already exists
// @Tags chat
// @Accept json
// @Produce json
// @Param body body CreateThreadRequest true "Thread"
// @Success 201 {object} ThreadDetail
// @Success 200 {object} ThreadDetail "Existing direct thread"
// @Router /chat/threads [post]
func (h *Handler) CreateThread(c *gin.Context) {
	var req CreateThreadRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	users, err := h.store.GetUsers(ctx, req.ParticipantIDs)
	if err != nil {
		storageError(c, err, "User")
		return
	}
	if len(users) != len(uniqueIDs(req.ParticipantIDs)) {
		badRequest(c, "One or more participants do not exist")
		return
	}

	thread, created, err := h.store.CreateThread(ctx, currentUser(c).ID, strings.TrimSpace(req.Name), req.ParticipantIDs, req.IsGroup)
	if err != nil {
		storageError(c, err, "Thread")
		return
	}
	participants, err := h.store.ListParticipants(ctx, thread.ID)
	if err != nil {
		storageError(c, err, "Thread")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond(c, status, ThreadDetail{ChatThread: thread, Participants: participants})
}

// GetThread godoc
// @Summary Get a thread
// @Tags chat
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} ThreadDetail
// @Router /chat/threads/{id} [get]
func (h *Handler) GetThread(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	participants, err := h.store.ListParticipants(c.Request.Context(), thread.ID)
	if err != nil {
		storageError(c, err, "Thread")
		return
	}
	respond(c, http.StatusOK, ThreadDetail{ChatThread: thread, Participants: participants})
}

// ListMessages godoc
// @Summary Thread messages
// @Description Ascending by id. Without a cursor the newest page is returned.
// @Tags chat
// @Produce json
// @Param id path int true "Thread ID"
// @Param before query int false "Messages older than this id"
// @Param after query int false "Messages newer than this id"
// @Param limit query int false "Page size"
// @Success 200 {array} models.ChatMessage
// @Router /chat/threads/{id}/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	messages, err := h.store.ListMessages(c.Request.Context(), thread.ID, query.ParseCursor(c))
	if err != nil {
		storageError(c, err, "Thread")
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	respond(c, http.StatusOK, messages)
}

// SendMessage godoc
// @Summary Send a message
// @Description Stored, then pushed to every participant as chat.message
// @Tags chat
// @Accept json
// @Produce json
// @Param id path int true "Thread ID"
// @Param body body SendMessageRequest true "Message"
// @Success 201 {object} models.ChatMessage
// @Router /chat/threads/{id}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !bind(c, &req) {
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" && req.AttachmentURL == "" {
		badRequest(c, "Message body or attachment is required")
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	msg := &models.ChatMessage{
		ThreadID:      thread.ID,
		SenderID:      user.ID,
		Body:          body,
		AttachmentURL: req.AttachmentURL,
	}
	if err := h.store.SendMessage(ctx, msg); err != nil {
		storageError(c, err, "Thread")
		return
	}
	msg.Sender = user

	if ids, err := h.store.ParticipantIDs(ctx, thread.ID); err == nil {
		h.notifier.EmitMany(ids, notification.TypeChatMessage, msg)
	}
	respond(c, http.StatusCreated, msg)
}

// MarkThreadRead godoc
// @Summary Mark thread read
// @Description Moves the caller's read marker to the latest message; other participants are unaffected
// @Tags chat
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} map[string]interface{}
// @Router /chat/threads/{id}/read [post]
func (h *Handler) MarkThreadRead(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)
	lastRead, err := h.store.MarkThreadRead(ctx, thread.ID, user.ID)
	if err != nil {
		storageError(c, err, "Thread")
		return
	}

	h.notifier.Emit(user.ID, "chat.read", gin.H{"thread_id": thread.ID, "last_read_message_id": lastRead})
	respond(c, http.StatusOK, gin.H{"thread_id": thread.ID, "last_read_message_id": lastRead, "unread_count": 0})
}

// ThreadUnread godoc
// @Summary Unread count in one thread
// @Tags chat
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} map[string]interface{}
// @Router /chat/threads/{id}/unread [get]
func (h *Handler) ThreadUnread(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	count, err := h.store.UnreadCount(c.Request.Context(), thread.ID, currentUser(c).ID)
	if err != nil {
		storageError(c, err, "Thread")
		return
	}
	respond(c, http.StatusOK, gin.H{"thread_id": thread.ID, "unread_count": count})
}

// TotalUnread godoc
// @Summary Unread messages across all threads
// @Tags chat
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /chat/unread [get]
func (h *Handler) TotalUnread(c *gin.Context) {
	count, err := h.store.TotalUnread(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		storageError(c, err, "Thread")
		return
	}
	respond(c, http.StatusOK, gin.H{"unread_count": count})
}

// AddParticipant godoc
// @Summary Add someone to a thread
// @Description Any participant may add; the thread becomes a group
// @Tags chat
// @Accept json
// @Produce json
// @Param id path int true "Thread ID"
// @Param body body AddParticipantRequest true "User"
// @Success 200 {array} models.ChatParticipant
// @Router /chat/threads/{id}/participants [post]
func (h *Handler) AddParticipant(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	var req AddParticipantRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUser(ctx, req.UserID); err != nil {
		storageError(c, err, "User")
		return
	}
	if _, err := h.store.AddParticipant(ctx, thread.ID, req.UserID); err != nil {
		storageError(c, err, "Thread")
		return
	}
	participants, err := h.store.ListParticipants(ctx, thread.ID)
	if err != nil {
		storageError(c, err, "Thread")
		return
	}
	respond(c, http.StatusOK, participants)
}

// RemoveParticipant godoc
// @Summary Remove someone from a thread
// @Description Participants may leave; only the creator may remove others
// @Tags chat
// @Param id path int true "Thread ID"
// @Param userId path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Router /chat/threads/{id}/participants/{userId} [delete]
func (h *Handler) RemoveParticipant(c *gin.Context) {
	thread, ok := h.loadThread(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}
	user := currentUser(c)
	if userID != user.ID && thread.CreatedByID != user.ID {
		forbidden(c, "Only the thread creator can remove other participants")
		return
	}
	if err := h.store.RemoveParticipant(c.Request.Context(), thread.ID, userID); err != nil {
		storageError(c, err, "Participant")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Participant removed"})
}

// loadThread resolves :id and requires the caller to be a participant
func (h *Handler) loadThread(c *gin.Context) (*models.ChatThread, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	ctx := c.Request.Context()
	thread, err := h.store.GetThread(ctx, id)
	if err != nil {
		storageError(c, err, "Thread")
		return nil, false
	}
	member, err := h.store.IsParticipant(ctx, thread.ID, currentUser(c).ID)
	if err != nil {
		storageError(c, err, "Thread")
		return nil, false
	}
	if !member {
		forbidden(c, "You are not a participant of this thread")
		return nil, false
	}
	return thread, true
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
