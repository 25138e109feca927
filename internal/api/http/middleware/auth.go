package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/EternisAI/probe-relay/internal/api/http/dto"
	"github.com/EternisAI/probe-relay/internal/auth"
	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/gin-gonic/gin"
)

const DeviceKey = "device"

func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := auth.ValidateToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("role")
		for _, r := range roles {
			if r == userRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// RegistryAuth requires a hub-scope SAS token signed with the registry policy.
func RegistryAuth(svc *hub.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.AuthorizeRegistry(c.GetHeader("Authorization")); err != nil {
			slog.Warn("Registry request rejected",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"error", err)
			AbortHubError(c, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

// DeviceAuth requires a SAS token signed with one of the :id device's keys.
func DeviceAuth(svc *hub.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		device, err := svc.AuthorizeDevice(c.Request.Context(), c.Param("id"), c.GetHeader("Authorization"))
		if err != nil {
			switch {
			case errors.Is(err, hub.ErrDeviceDisabled):
				AbortHubError(c, http.StatusForbidden, dto.ErrorCodeDisabled, "Device is disabled")
			case errors.Is(err, hub.ErrUnauthorized):
				slog.Warn("Device request rejected",
					"device_id", c.Param("id"),
					"client_ip", c.ClientIP(),
					"error", err)
				AbortHubError(c, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "Unauthorized")
			default:
				slog.Error("Failed to authorize device", "device_id", c.Param("id"), "error", err)
				AbortHubError(c, http.StatusInternalServerError, dto.ErrorCodeServer, "Internal error")
			}
			return
		}

		c.Set(DeviceKey, device)
		c.Next()
	}
}

// AbortHubError writes an error in the format device clients parse.
func AbortHubError(c *gin.Context, status int, code, message string) {
	c.Header(dto.HubErrorCodeHeader, code)
	c.AbortWithStatusJSON(status, dto.HubError(code, message))
}
