package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/api/handler"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/api/middleware"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/metrics"
)

// SetupRoutes configures all the routes for the API
func SetupRoutes(
	router *gin.Engine,
	paymentHandler *handler.PaymentHandler,
	productHandler *handler.ProductHandler,
	registry *prometheus.Registry,
) {
	// Payment routes
	paymentRoutes := router.Group("/payment")
	{
		paymentRoutes.POST("/topup", paymentHandler.TopUp)
		paymentRoutes.POST("/purchase", paymentHandler.Purchase)
		paymentRoutes.POST("/purchase/balance", paymentHandler.PurchaseWithBalance)
		paymentRoutes.DELETE("/pending/:userId", paymentHandler.CancelPending)
	}

	// User routes
	userRoutes := router.Group("/user")
	{
		userRoutes.GET("/:userId/balance", paymentHandler.GetBalance)
	}

	// Product administration routes
	productRoutes := router.Group("/products")
	{
		productRoutes.GET("", productHandler.List)
		productRoutes.GET("/:id", productHandler.Get)
		productRoutes.POST("", productHandler.Create)
		productRoutes.PUT("/:id", productHandler.Update)
		productRoutes.DELETE("/:id", productHandler.Delete)
		productRoutes.POST("/:id/items", productHandler.AddItems)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", metrics.Handler(registry))
}

// SetupMiddlewares configures global middlewares for the API
func SetupMiddlewares(router *gin.Engine, logger coreport.Logger, registry *prometheus.Registry) {
	// Apply middlewares in the correct order
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())
	router.Use(metrics.HTTPMiddleware(registry))
}
