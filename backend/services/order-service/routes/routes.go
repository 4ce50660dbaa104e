package routes

import (
	"github.com/cafe360/local-commerce/backend/services/order-service/controllers"
	"github.com/gin-gonic/gin"
)

// RegisterOrderRoutes mounts the order API at the root; the gateway strips
// its /orders prefix before forwarding.
func RegisterOrderRoutes(r gin.IRouter, oc *controllers.OrderController) {
	r.POST("/", oc.CreateOrder)
	r.GET("/customer/:id", oc.GetCustomerOrders)
	r.GET("/shop/:id", oc.GetShopOrders)
	r.GET("/analytics/shop/:id", oc.GetShopStats)
	r.GET("/:id", oc.GetOrderByID)
	r.PATCH("/:id/status", oc.UpdateStatus)
	r.PATCH("/customers/:id/push-token", oc.RegisterPushToken)
}

func RegisterRealtimeRoutes(r gin.IRouter, serveWS gin.HandlerFunc) {
	r.GET("/ws", serveWS)
}

func RegisterHealthRoutes(r gin.IRouter, hc *controllers.HealthController) {
	r.GET("/health", hc.Health)
}
