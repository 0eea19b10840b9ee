package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/api/handlers"
	"github.com/squadops/squadconf/internal/config"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	// Set Gin mode
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware())

	maxDeviation := time.Duration(cfg.HMAC.MaxDeviationSec) * time.Second

	webhookHandler := handlers.NewWebhookHandler(db, maxDeviation)
	configHandler := handlers.NewConfigHandler(db)
	rotationHandler := handlers.NewRotationHandler(db)
	logHandler := handlers.NewWebhookLogHandler(db)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Role webhooks
		v1.POST("/webhooks/roles/:token", webhookHandler.RoleWebhook)

		// Server admin configs
		v1.GET("/configs/admins/:token", configHandler.AdminConfig)

		// Map rotations
		v1.GET("/rotations/:token/current", rotationHandler.Current)
		v1.GET("/rotations/:token/next", rotationHandler.Next)
		v1.GET("/rotations/:token/packs/:slug", rotationHandler.PackBySlug)

		// Audit log
		v1.GET("/webhook-logs", logHandler.ListLogs)
		v1.GET("/webhook-logs/:id", logHandler.GetLog)
	}

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	slog.Info("API router initialized", "mode", cfg.Server.Mode)
	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
