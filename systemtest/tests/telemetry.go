package tests

import (
	"net/http"
	"testing"

	"github.com/EternisAI/probe-relay/internal/probe"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetry(t *testing.T, router *gin.Engine) {
	d := newTestDevice(t)
	register(t, router, d)

	t.Run("primary and secondary keys", func(t *testing.T) {
		payload, err := probe.CreatePayload("02:00:00:00:00:01", "Airport WiFi")
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, sendEvent(router, d.ID, payload, deviceToken(t, d.ID, d.PrimaryKey)).Code)
		assert.Equal(t, http.StatusNoContent, sendEvent(router, d.ID, payload, deviceToken(t, d.ID, d.SecondaryKey)).Code)
	})

	t.Run("ssid bytes survive storage", func(t *testing.T) {
		payload, err := probe.CreatePayload("AA:BB:CC:DD:EE:FF", "café \x00 net")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, sendEvent(router, d.ID, payload, deviceToken(t, d.ID, d.PrimaryKey)).Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		rr := sendEvent(router, d.ID, `{"mac_address":"AA:BB:CC:DD:EE:FF"}`, deviceToken(t, d.ID, d.PrimaryKey))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "MessageInvalid", rr.Header().Get("iothub-errorcode"))
	})

	t.Run("token for another device", func(t *testing.T) {
		other := newTestDevice(t)
		register(t, router, other)

		payload, err := probe.CreatePayload("AA:BB:CC:DD:EE:FF", "Home")
		require.NoError(t, err)
		rr := sendEvent(router, d.ID, payload, deviceToken(t, other.ID, other.PrimaryKey))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown device", func(t *testing.T) {
		ghost := newTestDevice(t)
		payload, err := probe.CreatePayload("AA:BB:CC:DD:EE:FF", "Home")
		require.NoError(t, err)
		rr := sendEvent(router, ghost.ID, payload, deviceToken(t, ghost.ID, ghost.PrimaryKey))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
