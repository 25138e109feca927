package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EternisAI/probe-relay/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Healthy(ctx context.Context) error {
	return f(ctx)
}

func serveHealth(t *testing.T, checker HealthChecker) (int, dto.HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", NewHealthHandler(checker).Check)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHealthCheckOK(t *testing.T) {
	var deadlineSet bool
	code, resp := serveHealth(t, checkerFunc(func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	}))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, dto.HealthResponse{Status: dto.HealthStatusOK, Storage: "ok"}, resp)
	assert.True(t, deadlineSet)
}

func TestHealthCheckStorageDown(t *testing.T) {
	code, resp := serveHealth(t, checkerFunc(func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, dto.HealthStatusDegraded, resp.Status)
	assert.Equal(t, "unavailable", resp.Storage)
}
