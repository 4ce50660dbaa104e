package controllers

import (
	"net/http"
	"strconv"

	"github.com/cafe360/local-commerce/backend/services/order-service/models"
	"github.com/cafe360/local-commerce/backend/services/order-service/services"
	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orderService services.OrderService
}

func NewOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

// CreateOrder handles POST /
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	var req models.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, serviceErr := oc.orderService.CreateOrder(ctx.Request.Context(), &req)
	if serviceErr != nil {
		ctx.JSON(serviceErr.StatusCode, gin.H{"error": serviceErr.Message})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "Order created successfully", "order": order})
}

// UpdateStatus handles PATCH /:id/status
func (oc *OrderController) UpdateStatus(ctx *gin.Context) {
	orderID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, serviceErr := oc.orderService.UpdateStatus(ctx.Request.Context(), orderID, req.Status)
	if serviceErr != nil {
		ctx.JSON(serviceErr.StatusCode, gin.H{"error": serviceErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, order)
}

// GetOrderByID handles GET /:id
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	orderID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	order, serviceErr := oc.orderService.GetOrder(ctx.Request.Context(), orderID)
	if serviceErr != nil {
		ctx.JSON(serviceErr.StatusCode, gin.H{"error": serviceErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, order)
}

// GetCustomerOrders handles GET /customer/:id
func (oc *OrderController) GetCustomerOrders(ctx *gin.Context) {
	customerID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	orders, serviceErr := oc.orderService.GetCustomerOrders(ctx.Request.Context(), customerID)
	if serviceErr != nil {
		ctx.JSON(serviceErr.StatusCode, gin.H{"error": serviceErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, orders)
}

// GetShopOrders handles GET /shop/:id
func (oc *OrderController) GetShopOrders(ctx *gin.Context) {
	shopID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	orders, serviceErr := oc.orderService.GetShopOrders(ctx.Request.Context(), shopID)
	if serviceErr != nil {
		ctx.JSON(serviceErr.StatusCode, gin.H{"error": serviceErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, orders)
}

// GetShopStats handles GET /analytics/shop/:id
func (oc *OrderController) GetShopStats(ctx *gin.Context) {
	shopID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	stats, serviceErr := oc.orderService.GetShopStats(ctx.Request.Context(), shopID)
	if serviceErr != nil {
		ctx.JSON(serviceErr.StatusCode, gin.H{"error": serviceErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, stats)
}

// RegisterPushToken handles PATCH /customers/:id/push-token
func (oc *OrderController) RegisterPushToken(ctx *gin.Context) {
	customerID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req models.PushTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if serviceErr := oc.orderService.RegisterPushToken(ctx.Request.Context(), customerID, req.FcmToken); serviceErr != nil {
		ctx.JSON(serviceErr.StatusCode, gin.H{"error": serviceErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Push token updated"})
}

// idParam parses a positive integer path parameter, answering 400 itself
// when it is not one.
func idParam(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return 0, false
	}
	return id, true
}
