package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/EternisAI/probe-relay/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

type HealthChecker interface {
	Healthy(ctx context.Context) error
}

type HealthHandler struct {
	checker HealthChecker
}

func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Check answers 503 while the device store is unreachable.
func (h *HealthHandler) Check(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.checker.Healthy(checkCtx); err != nil {
		slog.Warn("Health check failed", "error", err)
		ctx.JSON(http.StatusServiceUnavailable, dto.HealthResponse{
			Status:  dto.HealthStatusDegraded,
			Storage: "unavailable",
		})
		return
	}
	ctx.JSON(http.StatusOK, dto.HealthResponse{Status: dto.HealthStatusOK, Storage: "ok"})
}
