package routes

import (
	"cryptotrack-backend/config"
	"cryptotrack-backend/controllers"
	"cryptotrack-backend/middleware"
	"cryptotrack-backend/repository"
	"cryptotrack-backend/services/audit"
	"cryptotrack-backend/services/notify"
	"cryptotrack-backend/services/tracker"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, repo *repository.Repository, pipeline *tracker.Service, hub *notify.Hub, deliveryLog *audit.Log) {
	cfg := config.AppConfig

	// Initialize controllers
	authController := controllers.NewAuthController(db, cfg.JWTSecret)
	assetController := controllers.NewAssetController(repo, pipeline)
	subscriberController := controllers.NewSubscriberController(repo, cfg.QuoteCurrency)
	auditController := controllers.NewAuditController(deliveryLog)

	// Subscribers connect here to receive their notifications
	router.GET("/ws/notifications", func(c *gin.Context) {
		hub.HandleWebSocket(c.Writer, c.Request)
	})

	// Admin login
	router.POST("/admin/login", authController.Login)

	// API v1 group, admin-token protected
	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		// Asset routes
		assets := api.Group("/assets")
		{
			assets.GET("", assetController.GetAssets)
			assets.POST("", assetController.CreateAsset)
			assets.GET("/latest", assetController.GetLatestPrices)
			assets.DELETE("/:id", assetController.DeleteAsset)
			assets.GET("/:id/prices", assetController.GetPriceHistory)
			assets.DELETE("/:id/prices", assetController.DeletePriceHistory)
		}

		// Subscriber routes
		subscribers := api.Group("/subscribers")
		{
			subscribers.GET("", subscriberController.GetSubscribers)
			subscribers.POST("", subscriberController.CreateSubscriber)
			subscribers.GET("/:id", subscriberController.GetSubscriber)
			subscribers.PATCH("/:id", subscriberController.UpdateSubscriber)
			subscribers.DELETE("/:id", subscriberController.DeleteSubscriber)
			subscribers.PUT("/:id/assets", subscriberController.SetTrackedAssets)
			subscribers.GET("/:id/prices", subscriberController.GetPriceList)
		}

		// Manual refresh trigger
		api.POST("/sync", assetController.TriggerSync)

		// Delivery audit log
		api.GET("/deliveries", auditController.GetDeliveryLog)
	}
}
