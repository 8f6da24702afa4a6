package ordershttp

import "github.com/gin-gonic/gin"

// Route describes one admin endpoint.
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc gin.HandlerFunc
}

// Routes lists the order administration endpoints served by api.
func Routes(api *OrdersAPI) []Route {
	return []Route{
		{"ListOrders", "GET", "/admin/orders", api.ListOrders},
		{"GetStats", "GET", "/admin/orders/stats", api.GetStats},
		{"GetOrder", "GET", "/admin/orders/:id", api.GetOrder},
		{"UpdateStatus", "PATCH", "/admin/orders/:id/status", api.UpdateStatus},
		{"UpdatePayment", "PATCH", "/admin/orders/:id/payment", api.UpdatePayment},
		{"RetryCompensation", "POST", "/admin/orders/:id/compensation", api.RetryCompensation},
		{"DeleteOrder", "DELETE", "/admin/orders/:id", api.DeleteOrder},
	}
}

// NewRouter returns a gin engine with the order routes registered.
func NewRouter(api *OrdersAPI) *gin.Engine {
	return NewRouterWithGinEngine(gin.Default(), api)
}

// NewRouterWithGinEngine registers the order routes on router.
func NewRouterWithGinEngine(router *gin.Engine, api *OrdersAPI) *gin.Engine {
	for _, route := range Routes(api) {
		router.Handle(route.Method, route.Pattern, route.HandlerFunc)
	}
	return router
}
