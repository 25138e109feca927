package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/EternisAI/probe-relay/internal/api/http/dto"
	"github.com/EternisAI/probe-relay/internal/auth"
	"github.com/EternisAI/probe-relay/internal/probe"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin(t *testing.T, router *gin.Engine) {
	t.Run("wrong password", func(t *testing.T) {
		body := dto.LoginRequest{Username: AdminUsername, Password: "wrongpassword"}
		rr := doJSON(router, http.MethodPost, "/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := doJSON(router, http.MethodPost, "/auth/login", dto.LoginRequest{Username: AdminUsername}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	rr := doJSON(router, http.MethodPost, "/auth/login", dto.LoginRequest{Username: AdminUsername, Password: AdminPassword}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var login dto.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	claims, err := auth.ValidateToken(JWTSecret, login.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	bearer := "Bearer " + login.Token

	d := newTestDevice(t)
	register(t, router, d)
	for _, ssid := range []string{"first", "second", "third"} {
		payload, err := probe.CreatePayload("DA:A1:19:00:00:01", ssid)
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, sendEvent(router, d.ID, payload, deviceToken(t, d.ID, d.PrimaryKey)).Code)
	}

	t.Run("list devices", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/devices", nil, bearer)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), d.PrimaryKey)

		var resp dto.ListDevicesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		var found *dto.DeviceResponse
		for i := range resp.Devices {
			if resp.Devices[i].ID == d.ID {
				found = &resp.Devices[i]
			}
		}
		require.NotNil(t, found)
		assert.NotNil(t, found.LastSeenAt)
	})

	t.Run("list events newest first", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/devices/"+d.ID+"/events?limit=2", nil, bearer)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.ListEventsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Equal(t, 2, resp.Count)
		assert.Equal(t, "third", resp.Events[0].SSID)
		assert.Equal(t, "second", resp.Events[1].SSID)
		assert.True(t, resp.Events[0].RandomMAC)
	})

	t.Run("stats", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/stats", nil, bearer)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.StatsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.GreaterOrEqual(t, resp.Events, int64(3))
		assert.Greater(t, resp.RandomShare, 0.0)
	})

	t.Run("requires token", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/api/v1/devices", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
