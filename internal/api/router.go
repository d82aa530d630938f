package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tuanjhg/SmartParking/internal/api/handler"
	"github.com/tuanjhg/SmartParking/internal/api/middleware"
	"github.com/tuanjhg/SmartParking/internal/config"
	"github.com/tuanjhg/SmartParking/internal/service"
)

func SetupRouter(cfg *config.Config, ps *service.ParkingService, recognizer service.PlateRecognizer,
	wsManager *handler.WebSocketManager) *gin.Engine {
	r := gin.Default()
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "🚗 Smart Parking Backend is running!",
			"version": cfg.AppVersion,
		})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint cho dashboard real-time
	wsHandler := handler.NewWebSocketHandler(wsManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	vehicleHandler := handler.NewVehicleHandler(ps, recognizer, wsManager, cfg.UploadDir, cfg.MaxUploadSizeMB)
	checkInLimiter := middleware.NewRateLimiter(cfg.CheckInRateLimitRPS, cfg.CheckInRateLimitBurst)

	v1 := r.Group("/api/v1")
	{
		vehicleRoutes := v1.Group("/vehicles")
		{
			vehicleRoutes.POST("/checkin", checkInLimiter.Handle(), vehicleHandler.CheckIn)
			vehicleRoutes.POST("/checkout/:slot_id", vehicleHandler.CheckOut)
			vehicleRoutes.GET("/status", vehicleHandler.GetStatus)
			vehicleRoutes.GET("/list", vehicleHandler.ListVehicles)
		}
	}
	return r
}
