// Package ordershttp exposes the order administration service over gin.
package ordershttp

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/go-order-admin/internal/domains/orders/adapters/http/mapper"
	"github.com/Apurer/go-order-admin/internal/domains/orders/application"
	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
	apierrors "github.com/Apurer/go-order-admin/internal/shared/errors"
)

// OrdersAPI wires HTTP transport with the order administration service.
type OrdersAPI struct {
	service   ports.Service
	responder *apierrors.ChainedResponder
}

// NewOrdersAPI creates an OrdersAPI backed by the provided service.
func NewOrdersAPI(service ports.Service) *OrdersAPI {
	return &OrdersAPI{service: service, responder: NewResponder()}
}

// Get /admin/orders
// Lists orders with filters, search, sort and pagination
func (api *OrdersAPI) ListOrders(c *gin.Context) {
	var query mapper.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		api.responder.BadRequest(c, err.Error())
		return
	}
	spec, fieldErrors := mapper.ToQuerySpec(query)
	if len(fieldErrors) > 0 {
		api.responder.ValidationFailed(c, fieldErrors)
		return
	}
	page, err := api.service.ListOrders(c.Request.Context(), spec)
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromPage(page))
}

// Get /admin/orders/stats
// Returns dashboard statistics for the trailing period
func (api *OrdersAPI) GetStats(c *gin.Context) {
	period := application.DefaultStatsPeriod
	if raw := strings.TrimSpace(c.Query("period")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.responder.ValidationFailed(c, map[string]string{"period": "must be an integer"})
			return
		}
		period = parsed
	}
	stats, err := api.service.GetStats(c.Request.Context(), period)
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromStats(stats))
}

// Get /admin/orders/:id
// Find order by ID
func (api *OrdersAPI) GetOrder(c *gin.Context) {
	order, err := api.service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromDomainOrder(order))
}

// Patch /admin/orders/:id/status
// Moves an order to a new fulfilment status
func (api *OrdersAPI) UpdateStatus(c *gin.Context) {
	var payload mapper.StatusUpdate
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.responder.BadRequest(c, err.Error())
		return
	}
	summary, err := api.service.TransitionStatus(c.Request.Context(), c.Param("id"), domain.Status(payload.Status), payload.Notes)
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromSummary(summary))
}

// Patch /admin/orders/:id/payment
// Moves an order to a new payment status
func (api *OrdersAPI) UpdatePayment(c *gin.Context) {
	var payload mapper.PaymentUpdate
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.responder.BadRequest(c, err.Error())
		return
	}
	summary, err := api.service.UpdatePayment(
		c.Request.Context(),
		c.Param("id"),
		domain.PaymentStatus(payload.PaymentStatus),
		payload.TransactionID,
		payload.Notes,
	)
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromSummary(summary))
}

// Post /admin/orders/:id/compensation
// Retries stock releases still pending for an order
func (api *OrdersAPI) RetryCompensation(c *gin.Context) {
	summary, err := api.service.RetryCompensation(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromSummary(summary))
}

// Delete /admin/orders/:id
// Deletes a pending or cancelled order
func (api *OrdersAPI) DeleteOrder(c *gin.Context) {
	if err := api.service.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
