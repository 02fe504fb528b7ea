package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
)

type CreateMeetingRequest struct {
	Title          string      `json:"title" binding:"required"`
	Description    string      `json:"description"`
	Location       string      `json:"location"`
	MeetingURL     string      `json:"meeting_url"`
	StartsAt       time.Time   `json:"starts_at" binding:"required"`
	EndsAt         time.Time   `json:"ends_at" binding:"required"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type UpdateMeetingRequest struct {
	Title          *string     `json:"title"`
	Description    *string     `json:"description"`
	Location       *string     `json:"location"`
	MeetingURL     *string     `json:"meeting_url"`
	StartsAt       *time.Time  `json:"starts_at"`
	EndsAt         *time.Time  `json:"ends_at"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type RSVPRequest struct {
	Response string `json:"response" binding:"required" example:"accepted"`
}

// ListMeetings godoc
// @Summary My meetings
// @Description Meetings I organize or am invited to, ascending by start
// @Tags meetings
// @Produce json
// @Param from query string false "RFC3339; only meetings ending after this time"
// @Success 200 {array} models.Meeting
// @Router /meetings [get]
func (h *Handler) ListMeetings(c *gin.Context) {
	var from *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "from must be an RFC3339 timestamp")
			return
		}
		from = &t
	}

	meetings, err := h.store.ListMeetingsForUser(c.Request.Context(), currentUser(c).ID, from)
	if err != nil {
		storageError(c, err, "Meeting")
		return
	}
	respond(c, http.StatusOK, meetings)
}

// CreateMeeting godoc
// @Summary Schedule a meeting
// @Tags meetings
// @Accept json
// @Produce json
// @Param body body CreateMeetingRequest true "Meeting"
// @Success 201 {object} models.Meeting
// @Router /meetings [post]
func (h *Handler) CreateMeeting(c *gin.Context) {
	var req CreateMeetingRequest
	if !bind(c, &req) {
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		badRequest(c, "ends_at must be after starts_at")
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	meeting := &models.Meeting{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		MeetingURL:  req.MeetingURL,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		OrganizerID: user.ID,
	}
	if err := h.store.CreateMeeting(ctx, meeting, req.ParticipantIDs); err != nil {
		storageError(c, err, "Meeting")
		return
	}

	for _, p := range meeting.Participants {
		if p.UserID != user.ID {
			h.notifyInvite(c, meeting, p.UserID, user)
		}
	}
	respond(c, http.StatusCreated, meeting)
}

// GetMeeting godoc
// @Summary Get meeting
// @Tags meetings
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} models.Meeting
// @Router /meetings/{id} [get]
func (h *Handler) GetMeeting(c *gin.Context) {
	meeting, ok := h.loadMeeting(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, meeting)
}

// UpdateMeeting godoc
// @Summary Update meeting
// @Description Organizer only; participant_ids adds new invitees
// @Tags meetings
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param body body UpdateMeetingRequest true "Fields to change"
// @Success 200 {object} models.Meeting
// @Router /meetings/{id} [patch]
func (h *Handler) UpdateMeeting(c *gin.Context) {
	meeting, ok := h.loadMeeting(c)
	if !ok {
		return
	}
	user := currentUser(c)
	if meeting.OrganizerID != user.ID && !user.IsAdmin() {
		forbidden(c, "Only the organizer can edit this meeting")
		return
	}
	var req UpdateMeetingRequest
	if !bind(c, &req) {
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.MeetingURL != nil {
		updates["meeting_url"] = *req.MeetingURL
	}
	starts, ends := meeting.StartsAt, meeting.EndsAt
	if req.StartsAt != nil {
		starts = *req.StartsAt
		updates["starts_at"] = starts
	}
	if req.EndsAt != nil {
		ends = *req.EndsAt
		updates["ends_at"] = ends
	}
	if !ends.After(starts) {
		badRequest(c, "ends_at must be after starts_at")
		return
	}

	invited := map[uuid.UUID]bool{}
	for _, p := range meeting.Participants {
		invited[p.UserID] = true
	}

	updated, err := h.store.UpdateMeeting(c.Request.Context(), meeting.ID, updates, req.ParticipantIDs)
	if err != nil {
		storageError(c, err, "Meeting")
		return
	}
	for _, p := range updated.Participants {
		if !invited[p.UserID] {
			h.notifyInvite(c, updated, p.UserID, user)
		}
	}
	respond(c, http.StatusOK, updated)
}

// DeleteMeeting godoc
// @Summary Cancel meeting
// @Tags meetings
// @Param id path int true "Meeting ID"
// @Success 200 {object} map[string]interface{}
// @Router /meetings/{id} [delete]
func (h *Handler) DeleteMeeting(c *gin.Context) {
	meeting, ok := h.loadMeeting(c)
	if !ok {
		return
	}
	user := currentUser(c)
	if meeting.OrganizerID != user.ID && !user.IsAdmin() {
		forbidden(c, "Only the organizer can cancel this meeting")
		return
	}
	if err := h.store.DeleteMeeting(c.Request.Context(), meeting.ID); err != nil {
		storageError(c, err, "Meeting")
		return
	}

	ids := make([]uuid.UUID, 0, len(meeting.Participants))
	for _, p := range meeting.Participants {
		ids = append(ids, p.UserID)
	}
	h.notifier.EmitMany(ids, "meeting.cancelled", gin.H{"meeting_id": meeting.ID, "title": meeting.Title})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Meeting cancelled"})
}

// RSVPMeeting godoc
// @Summary Respond to an invitation
// @Tags meetings
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param body body RSVPRequest true "accepted, declined or tentative"
// @Success 200 {object} models.Meeting
// @Router /meetings/{id}/rsvp [post]
func (h *Handler) RSVPMeeting(c *gin.Context) {
	meeting, ok := h.loadMeeting(c)
	if !ok {
		return
	}
	var req RSVPRequest
	if !bind(c, &req) {
		return
	}
	if !models.ValidRSVP(req.Response) {
		badRequest(c, "response must be accepted, declined or tentative")
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	if err := h.store.RSVP(ctx, meeting.ID, user.ID, req.Response); err != nil {
		storageError(c, err, "Invitation")
		return
	}
	updated, err := h.store.GetMeeting(ctx, meeting.ID)
	if err != nil {
		storageError(c, err, "Meeting")
		return
	}
	if meeting.OrganizerID != user.ID {
		h.notifier.Emit(meeting.OrganizerID, "meeting.rsvp", gin.H{
			"meeting_id": meeting.ID,
			"user_id":    user.ID,
			"response":   req.Response,
		})
	}
	respond(c, http.StatusOK, updated)
}

func (h *Handler) loadMeeting(c *gin.Context) (*models.Meeting, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	ctx := c.Request.Context()
	meeting, err := h.store.GetMeeting(ctx, id)
	if err != nil {
		storageError(c, err, "Meeting")
		return nil, false
	}
	user := currentUser(c)
	if meeting.OrganizerID == user.ID || user.IsAdmin() {
		return meeting, true
	}
	for _, p := range meeting.Participants {
		if p.UserID == user.ID {
			return meeting, true
		}
	}
	forbidden(c, "You are not invited to this meeting")
	return nil, false
}

func (h *Handler) notifyInvite(c *gin.Context, meeting *models.Meeting, userID uuid.UUID, organizer *models.User) {
	h.notify(c.Request.Context(), &notification.Notification{
		UserID:   userID,
		Type:     notification.TypeMeetingInvite,
		Title:    "Meeting invitation",
		Message:  fmt.Sprintf("%s invited you to \"%s\"", organizer.FullName(), meeting.Title),
		Link:     fmt.Sprintf("/meetings/%d", meeting.ID),
		Entity:   "meeting",
		EntityID: fmt.Sprint(meeting.ID),
		Data:     datatypes.JSONMap{"starts_at": meeting.StartsAt.Format(time.RFC3339)},
	})
}
