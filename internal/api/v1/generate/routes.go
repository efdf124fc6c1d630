package generate

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the generation endpoints on an authenticated group.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	router.POST("/generate", handler.Generate)
	router.POST("/chat", handler.Chat)
}
