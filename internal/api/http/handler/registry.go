package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/EternisAI/probe-relay/internal/api/http/dto"
	"github.com/EternisAI/probe-relay/internal/api/http/middleware"
	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/gin-gonic/gin"
)

type RegistryHandler struct {
	hubService *hub.Service
}

func NewRegistryHandler(hubService *hub.Service) *RegistryHandler {
	return &RegistryHandler{hubService: hubService}
}

// CreateDevice registers a device identity. Existing ids are never updated.
// PUT /devices/:id
func (h *RegistryHandler) CreateDevice(ctx *gin.Context) {
	deviceID := ctx.Param("id")

	var req iothub.Device
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.AbortHubError(ctx, http.StatusBadRequest, dto.ErrorCodeArgument, "Invalid device body: "+err.Error())
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = deviceID
	}
	if req.DeviceID != deviceID {
		middleware.AbortHubError(ctx, http.StatusBadRequest, dto.ErrorCodeArgument,
			fmt.Sprintf("Device id %q in body does not match %q in path", req.DeviceID, deviceID))
		return
	}

	device, err := h.hubService.RegisterDevice(ctx.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, hub.ErrDeviceExists):
			middleware.AbortHubError(ctx, http.StatusConflict, dto.ErrorCodeDeviceExists,
				fmt.Sprintf("A device with ID '%s' is already registered.", deviceID))
		case errors.Is(err, hub.ErrInvalidDevice):
			middleware.AbortHubError(ctx, http.StatusBadRequest, dto.ErrorCodeArgument, err.Error())
		default:
			slog.Error("Failed to register device", "device_id", deviceID, "error", err)
			middleware.AbortHubError(ctx, http.StatusInternalServerError, dto.ErrorCodeServer, "Failed to register device")
		}
		return
	}

	ctx.JSON(http.StatusOK, iothub.Device{
		DeviceID: device.ID,
		Status:   device.Status,
		Authentication: iothub.Authentication{
			Type: iothub.AuthTypeSAS,
			SymmetricKey: &iothub.SymmetricKey{
				PrimaryKey:   device.PrimaryKey,
				SecondaryKey: device.SecondaryKey,
			},
		},
	})
}
