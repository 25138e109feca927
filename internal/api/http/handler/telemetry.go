package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/EternisAI/probe-relay/internal/api/http/dto"
	"github.com/EternisAI/probe-relay/internal/api/http/middleware"
	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/EternisAI/probe-relay/internal/probe"
	"github.com/gin-gonic/gin"
)

const DefaultMaxMessageBytes = 256 * 1024

type TelemetryHandler struct {
	hubService      *hub.Service
	maxMessageBytes int64
}

func NewTelemetryHandler(hubService *hub.Service, maxMessageBytes int64) *TelemetryHandler {
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}
	return &TelemetryHandler{
		hubService:      hubService,
		maxMessageBytes: maxMessageBytes,
	}
}

// SendEvent stores one probe event for the authenticated device.
// POST /devices/:id/messages/events
func (h *TelemetryHandler) SendEvent(ctx *gin.Context) {
	deviceID := ctx.Param("id")

	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.AbortHubError(ctx, http.StatusRequestEntityTooLarge, dto.ErrorCodeTooLarge, "Message too large")
			return
		}
		middleware.AbortHubError(ctx, http.StatusBadRequest, dto.ErrorCodeMessage, "Failed to read message")
		return
	}

	event, err := h.hubService.RecordEvent(ctx.Request.Context(), deviceID, body)
	if err != nil {
		switch {
		case errors.Is(err, probe.ErrInvalidEvent):
			middleware.AbortHubError(ctx, http.StatusBadRequest, dto.ErrorCodeMessage, err.Error())
		case errors.Is(err, hub.ErrDeviceNotFound):
			middleware.AbortHubError(ctx, http.StatusNotFound, dto.ErrorCodeDeviceMissing, "Device not found")
		default:
			slog.Error("Failed to store event", "device_id", deviceID, "error", err)
			middleware.AbortHubError(ctx, http.StatusInternalServerError, dto.ErrorCodeServer, "Failed to store event")
		}
		return
	}

	slog.Debug("Telemetry received", "device_id", deviceID, "event_id", event.ID, "random_mac", event.RandomMAC)
	ctx.Status(http.StatusNoContent)
}
