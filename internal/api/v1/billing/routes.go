package billing

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the checkout endpoint on the authenticated group.
// The webhook is registered separately by the router because Stripe calls it
// with its own signature scheme, not a user token.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	router.POST("/billing/checkout", handler.CreateCheckoutSession)
}
