package main

import (
	"log"

	"packforge-backend/config"
	"packforge-backend/internal/api"
	"packforge-backend/internal/database"
	"packforge-backend/internal/models"
	"packforge-backend/internal/services"
	"packforge-backend/pkg/logger"
)

// @title packforge-backend API
// @version 1.0
// @description Prompt-to-pack generation service with credit metering.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("refusing to start: %v", err)
	}

	if err := logger.InitLogger(&logger.Config{
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFilename,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	}); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	services.TransactionSecret = cfg.AuthTokenSecret

	router, err := api.NewRouter(cfg)
	if err != nil {
		log.Fatalf("failed to create router: %v", err)
	}

	// Migrate the schema
	err = database.DB.AutoMigrate(&models.User{}, &models.Transaction{})
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	seedLifetimeUser(cfg)

	if err := router.Run(":8080"); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}

// seedLifetimeUser creates or upgrades the configured lifetime account so it
// always has unlimited generation.
func seedLifetimeUser(cfg *config.Config) {
	if cfg.SeedLifetimeEmail == "" {
		return
	}

	var user models.User
	result := database.DB.Where("email = ?", cfg.SeedLifetimeEmail).First(&user)

	if result.Error != nil {
		user = models.User{
			Email:      cfg.SeedLifetimeEmail,
			IsPro:      true,
			IsLifetime: true,
			Credits:    999999,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			log.Fatalf("failed to seed lifetime user: %v", err)
		}
		log.Printf("Seeded lifetime user: %s", user.Email)
		return
	}

	if !user.IsLifetime {
		if err := database.DB.Model(&user).Updates(map[string]interface{}{
			"is_pro":      true,
			"is_lifetime": true,
		}).Error; err != nil {
			log.Fatalf("failed to upgrade lifetime user: %v", err)
		}
		services.InvalidateUserCache(user.Email)
		log.Printf("Upgraded lifetime user: %s", user.Email)
	}
}
