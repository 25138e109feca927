package http

import (
	"github.com/EternisAI/probe-relay/internal/api/http/handler"
	"github.com/EternisAI/probe-relay/internal/api/http/middleware"
	"github.com/EternisAI/probe-relay/internal/auth"
	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/gin-gonic/gin"
)

type Services struct {
	HubService  *hub.Service
	AuthService *auth.Service
}

func SetupRoute(engine *gin.Engine, srvs *Services, cfg Config) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler(srvs.HubService)
	engine.GET("/health", healthHandler.Check)

	registryHandler := handler.NewRegistryHandler(srvs.HubService)
	telemetryHandler := handler.NewTelemetryHandler(srvs.HubService, cfg.MaxMessageBytes)

	devices := engine.Group("/devices")
	devices.PUT("/:id", middleware.RegistryAuth(srvs.HubService), registryHandler.CreateDevice)
	devices.POST("/:id/messages/events", middleware.DeviceAuth(srvs.HubService), telemetryHandler.SendEvent)

	if srvs.AuthService != nil {
		authHandler := handler.NewAuthHandler(srvs.AuthService)
		engine.POST("/auth/login", authHandler.Login)

		devicesHandler := handler.NewDevicesHandler(srvs.HubService)
		api := engine.Group("/api/v1")
		api.Use(middleware.JWTAuth(srvs.AuthService.JWTSecret()), middleware.RequireRole(auth.RoleAdmin))
		api.GET("/devices", devicesHandler.ListDevices)
		api.GET("/devices/:id/events", devicesHandler.ListEvents)
		api.GET("/stats", devicesHandler.Stats)
	}
}
