package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/EternisAI/probe-relay/internal/api/http/dto"
	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/gin-gonic/gin"
)

type DevicesHandler struct {
	hubService *hub.Service
}

func NewDevicesHandler(hubService *hub.Service) *DevicesHandler {
	return &DevicesHandler{hubService: hubService}
}

// ListDevices returns every registered device without its keys.
// GET /api/v1/devices
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	devices, err := h.hubService.ListDevices(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list devices", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list devices"})
		return
	}

	responses := make([]dto.DeviceResponse, len(devices))
	for i, d := range devices {
		responses[i] = dto.DeviceResponse{
			ID:         d.ID,
			Status:     string(d.Status),
			CreatedAt:  d.CreatedAt,
			LastSeenAt: d.LastSeenAt,
		}
	}

	c.JSON(http.StatusOK, dto.ListDevicesResponse{
		Devices: responses,
		Count:   len(responses),
	})
}

// ListEvents returns the newest events of one device.
// GET /api/v1/devices/:id/events?limit=N
func (h *DevicesHandler) ListEvents(c *gin.Context) {
	deviceID := c.Param("id")

	limit := hub.DefaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events, err := h.hubService.ListEvents(c.Request.Context(), deviceID, limit)
	if err != nil {
		if errors.Is(err, hub.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		slog.Error("Failed to list events", "error", err, "device_id", deviceID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	responses := make([]dto.EventResponse, len(events))
	for i, e := range events {
		responses[i] = dto.EventResponse{
			ID:         e.ID,
			MACAddress: e.MACAddress,
			SSID:       e.SSID,
			RandomMAC:  e.RandomMAC,
			ReceivedAt: e.ReceivedAt,
		}
	}

	c.JSON(http.StatusOK, dto.ListEventsResponse{
		DeviceID: deviceID,
		Events:   responses,
		Count:    len(responses),
	})
}

// Stats returns hub-wide totals.
// GET /api/v1/stats
func (h *DevicesHandler) Stats(c *gin.Context) {
	stats, err := h.hubService.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Failed to compute stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{
		Devices:      stats.Devices,
		Events:       stats.Events,
		RandomEvents: stats.RandomEvents,
		RandomShare:  stats.RandomShare(),
	})
}
