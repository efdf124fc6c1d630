package api

import (
	"packforge-backend/config"
	"packforge-backend/internal/api/v1/billing"
	"packforge-backend/internal/api/v1/generate"
	userRoutes "packforge-backend/internal/api/v1/user"
	"packforge-backend/internal/database"
	"packforge-backend/internal/middleware"
	"packforge-backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config) (*gin.Engine, error) {
	_, err := database.Connect(cfg.DSN())
	if err != nil {
		return nil, err
	}

	err = database.ConnectRedis(cfg)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Logger(), gin.Recovery())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CheckoutOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum age for preflight requests
	}))

	generateHandler := generate.NewHandler(services.NewCompletionClient(cfg))
	billingHandler := billing.NewHandler(cfg)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Stripe signs webhook calls itself; no user token involved.
		v1.POST("/billing/webhook", billingHandler.Webhook)

		authorized := v1.Group("/")
		authorized.Use(middleware.AuthMiddleware(cfg.AuthTokenSecret, cfg.AuthAutoProvision))
		{
			generate.RegisterRoutes(authorized, generateHandler)
			userRoutes.RegisterRoutes(authorized)
			billing.RegisterRoutes(authorized, billingHandler)
		}
	}

	return router, nil
}
