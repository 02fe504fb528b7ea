package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"desktown-backend/server/middleware"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/search"
	utils "desktown-backend/shared/utils/auth"
)

type CreateServiceRequest struct {
	Name            string `json:"name" binding:"required" example:"Contract review"`
	Description     string `json:"description"`
	PriceCents      int64  `json:"price_cents" binding:"min=0" example:"4900"`
	Currency        string `json:"currency" example:"usd"`
	DurationMinutes int    `json:"duration_minutes" binding:"min=0"`
	ImageURL        string `json:"image_url"`
	IsActive        *bool  `json:"is_active"`
}

type UpdateServiceRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	PriceCents      *int64  `json:"price_cents" binding:"omitempty,min=0"`
	Currency        *string `json:"currency"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,min=0"`
	ImageURL        *string `json:"image_url"`
	IsActive        *bool   `json:"is_active"`
}

type RateServiceRequest struct {
	Score   int    `json:"score" binding:"required,min=1,max=5" example:"5"`
	Comment string `json:"comment"`
}

type RatingsResponse struct {
	Average float64                `json:"average"`
	Count   int64                  `json:"count"`
	Ratings []models.ServiceRating `json:"ratings"`
}

func serviceRecord(s *models.OfficeService) search.ServiceRecord {
	return search.ServiceRecord{
		ID:          fmt.Sprint(s.ID),
		Name:        s.Name,
		Description: s.Description,
		OfficeID:    s.OfficeID.String(),
	}
}

// ListOfficeServices godoc
// @Summary Services offered by an office
// @Description Inactive services are only listed for the office owner and admins
// @Tags services
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {array} models.OfficeService
// @Router /offices/{id}/services [get]
func (h *Handler) ListOfficeServices(c *gin.Context) {
	office, ok := h.loadOffice(c, false)
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	svcs, err := h.store.ListServicesByOffice(c.Request.Context(), office.ID, !office.CanManage(user))
	if err != nil {
		storageError(c, err, "Service")
		return
	}
	respond(c, http.StatusOK, svcs)
}

// CreateOfficeService godoc
// @Summary Add a service to an office
// @Description Owner or admin. A share token is generated for the public link.
// @Tags services
// @Accept json
// @Produce json
// @Param id path string true "Office ID"
// @Param body body CreateServiceRequest true "Service"
// @Success 201 {object} models.OfficeService
// @Router /offices/{id}/services [post]
func (h *Handler) CreateOfficeService(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	var req CreateServiceRequest
	if !bind(c, &req) {
		return
	}

	token, err := utils.GenerateShareToken()
	if err != nil {
		storageError(c, err, "Service")
		return
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = h.cfg.DefaultCurrency
	}
	if len(currency) != 3 {
		badRequest(c, "currency must be a 3-letter ISO code")
		return
	}

	svc := &models.OfficeService{
		OfficeID:        office.ID,
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		PriceCents:      req.PriceCents,
		Currency:        currency,
		DurationMinutes: req.DurationMinutes,
		ImageURL:        req.ImageURL,
		ShareToken:      token,
		IsActive:        req.IsActive == nil || *req.IsActive,
	}
	if err := h.store.CreateService(c.Request.Context(), svc); err != nil {
		storageError(c, err, "Service")
		return
	}
	h.search.IndexService(serviceRecord(svc), svc.IsActive && office.IsPublished)
	respond(c, http.StatusCreated, svc)
}

// GetOfficeService godoc
// @Summary Get service
// @Tags services
// @Produce json
// @Param id path int true "Service ID"
// @Success 200 {object} models.OfficeService
// @Router /services/{id} [get]
func (h *Handler) GetOfficeService(c *gin.Context) {
	svc, _, ok := h.loadService(c, false)
	if !ok {
		return
	}
	respond(c, http.StatusOK, svc)
}

// GetSharedService godoc
// @Summary Resolve a service share link
// @Tags services
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} models.OfficeService
// @Router /services/share/{token} [get]
func (h *Handler) GetSharedService(c *gin.Context) {
	svc, err := h.store.GetServiceByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil || !svc.IsActive {
		abortWith(c, http.StatusNotFound, "Service not found", "This share link is no longer valid")
		return
	}
	respond(c, http.StatusOK, svc)
}

// UpdateOfficeService godoc
// @Summary Update service
// @Tags services
// @Accept json
// @Produce json
// @Param id path int true "Service ID"
// @Param body body UpdateServiceRequest true "Fields to change"
// @Success 200 {object} models.OfficeService
// @Router /services/{id} [patch]
func (h *Handler) UpdateOfficeService(c *gin.Context) {
	svc, office, ok := h.loadService(c, true)
	if !ok {
		return
	}
	var req UpdateServiceRequest
	if !bind(c, &req) {
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.PriceCents != nil {
		updates["price_cents"] = *req.PriceCents
	}
	if req.Currency != nil {
		currency := strings.ToLower(strings.TrimSpace(*req.Currency))
		if len(currency) != 3 {
			badRequest(c, "currency must be a 3-letter ISO code")
			return
		}
		updates["currency"] = currency
	}
	if req.DurationMinutes != nil {
		updates["duration_minutes"] = *req.DurationMinutes
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	updated, err := h.store.UpdateService(c.Request.Context(), svc.ID, updates)
	if err != nil {
		storageError(c, err, "Service")
		return
	}
	h.search.IndexService(serviceRecord(updated), updated.IsActive && office.IsPublished)
	respond(c, http.StatusOK, updated)
}

// DeleteOfficeService godoc
// @Summary Delete service
// @Description Ratings go with it; orders keep their rows
// @Tags services
// @Param id path int true "Service ID"
// @Success 200 {object} map[string]interface{}
// @Router /services/{id} [delete]
func (h *Handler) DeleteOfficeService(c *gin.Context) {
	svc, _, ok := h.loadService(c, true)
	if !ok {
		return
	}
	if err := h.store.DeleteService(c.Request.Context(), svc.ID); err != nil {
		storageError(c, err, "Service")
		return
	}
	h.search.DeleteService(fmt.Sprint(svc.ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Service deleted"})
}

// ListServiceRatings godoc
// @Summary Ratings of a service
// @Tags services
// @Produce json
// @Param id path int true "Service ID"
// @Success 200 {object} RatingsResponse
// @Router /services/{id}/ratings [get]
func (h *Handler) ListServiceRatings(c *gin.Context) {
	svc, _, ok := h.loadService(c, false)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ratings, err := h.store.ListRatings(ctx, svc.ID)
	if err != nil {
		storageError(c, err, "Rating")
		return
	}
	avg, count, err := h.store.AverageRating(ctx, svc.ID)
	if err != nil {
		storageError(c, err, "Rating")
		return
	}
	respond(c, http.StatusOK, RatingsResponse{Average: avg, Count: count, Ratings: ratings})
}

// RateOfficeService godoc
// @Summary Rate a service
// @Description One rating per user; rating again replaces the previous score
// @Tags services
// @Accept json
// @Produce json
// @Param id path int true "Service ID"
// @Param body body RateServiceRequest true "Score 1-5"
// @Success 200 {object} models.ServiceRating
// @Router /services/{id}/ratings [post]
func (h *Handler) RateOfficeService(c *gin.Context) {
	svc, _, ok := h.loadService(c, false)
	if !ok {
		return
	}
	var req RateServiceRequest
	if !bind(c, &req) {
		return
	}

	user := currentUser(c)
	rating := &models.ServiceRating{
		ServiceID: svc.ID,
		UserID:    user.ID,
		Score:     req.Score,
		Comment:   strings.TrimSpace(req.Comment),
	}
	if err := h.store.RateService(c.Request.Context(), rating); err != nil {
		storageError(c, err, "Rating")
		return
	}
	respond(c, http.StatusOK, rating)
}

// loadService resolves :id with its office. Inactive services are hidden from non-managers.
func (h *Handler) loadService(c *gin.Context, manage bool) (*models.OfficeService, *models.Office, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, nil, false
	}
	ctx := c.Request.Context()
	svc, err := h.store.GetService(ctx, id)
	if err != nil {
		storageError(c, err, "Service")
		return nil, nil, false
	}
	office, err := h.store.GetOffice(ctx, svc.OfficeID)
	if err != nil {
		storageError(c, err, "Office")
		return nil, nil, false
	}

	user, _ := middleware.CurrentUser(c)
	canManage := office.CanManage(user)
	if !canManage && (!svc.IsActive || !office.IsPublished) {
		abortWith(c, http.StatusNotFound, "Service not found", "Service with the given ID does not exist")
		return nil, nil, false
	}
	if manage && !canManage {
		forbidden(c, "Only the office owner or an admin can do this")
		return nil, nil, false
	}
	return svc, office, true
}
