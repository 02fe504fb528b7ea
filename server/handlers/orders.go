package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"desktown-backend/server/services"
	"desktown-backend/shared/utils/query"
)

type CreateOrderRequest struct {
	Notes string `json:"notes"`
}

// CreateOrder godoc
// @Summary Order a service
// @Description Creates a pending order priced from the service
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Service ID"
// @Param body body CreateOrderRequest false "Notes for the office"
// @Success 201 {object} models.ServiceOrder
// @Failure 409 {object} ErrorResponse "Service not purchasable"
// @Router /services/{id}/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	serviceID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req CreateOrderRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}

	order, err := h.payments.CreateOrder(c.Request.Context(), currentUser(c), serviceID, req.Notes)
	if err != nil {
		h.orderError(c, err)
		return
	}
	respond(c, http.StatusCreated, order)
}

// StartCheckout godoc
// @Summary Start payment for an order
// @Description Moves a pending order to awaiting_payment and returns the provider checkout URL
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} services.CheckoutSession
// @Router /orders/{id}/checkout [post]
func (h *Handler) StartCheckout(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	session, err := h.payments.StartCheckout(c.Request.Context(), currentUser(c), orderID)
	if err != nil {
		h.orderError(c, err)
		return
	}
	respond(c, http.StatusOK, session)
}

// GetOrder godoc
// @Summary Get order
// @Description Buyer, office owner or admin
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.ServiceOrder
// @Router /orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	order, err := h.store.GetOrder(ctx, orderID)
	if err != nil {
		storageError(c, err, "Order")
		return
	}

	user := currentUser(c)
	allowed := order.BuyerID == user.ID || user.IsAdmin()
	if !allowed && order.OfficeID != nil {
		if office, err := h.store.GetOffice(ctx, *order.OfficeID); err == nil {
			allowed = office.CanManage(user)
		}
	}
	if !allowed {
		abortWith(c, http.StatusNotFound, "Order not found", "Order with the given ID does not exist")
		return
	}
	respond(c, http.StatusOK, order)
}

// ListMyOrders godoc
// @Summary Orders placed by the caller
// @Tags orders
// @Produce json
// @Param status query string false "Order status"
// @Success 200 {object} PaginatedResponse
// @Router /orders/mine [get]
func (h *Handler) ListMyOrders(c *gin.Context) {
	params := query.ParseQueryParams(c, "status")
	orders, total, err := h.store.ListOrdersForBuyer(c.Request.Context(), currentUser(c).ID, params)
	if err != nil {
		storageError(c, err, "Order")
		return
	}
	respondList(c, orders, params, total)
}

// ListOfficeOrders godoc
// @Summary Orders received by an office
// @Description Owner or admin
// @Tags orders
// @Produce json
// @Param id path string true "Office ID"
// @Param status query string false "Order status"
// @Success 200 {object} PaginatedResponse
// @Router /offices/{id}/orders [get]
func (h *Handler) ListOfficeOrders(c *gin.Context) {
	office, ok := h.loadOffice(c, true)
	if !ok {
		return
	}
	params := query.ParseQueryParams(c, "status")
	orders, total, err := h.store.ListOrdersForOffice(c.Request.Context(), office.ID, params)
	if err != nil {
		storageError(c, err, "Order")
		return
	}
	respondList(c, orders, params, total)
}

// ListTransactions godoc
// @Summary Platform transactions
// @Description admin and super_admin only
// @Tags orders
// @Produce json
// @Param status query string false "Order status"
// @Success 200 {object} PaginatedResponse
// @Failure 403 {object} ErrorResponse
// @Router /transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	params := query.ParseQueryParams(c, "status")
	orders, total, err := h.store.ListTransactions(c.Request.Context(), params)
	if err != nil {
		storageError(c, err, "Transaction")
		return
	}
	respondList(c, orders, params, total)
}

func (h *Handler) orderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrServiceUnavailable):
		abortWith(c, http.StatusConflict, "Service unavailable", err.Error())
	case errors.Is(err, services.ErrNotOrderBuyer):
		abortWith(c, http.StatusNotFound, "Order not found", "Order with the given ID does not exist")
	default:
		storageError(c, err, "Order")
	}
}
