package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T, router *gin.Engine) {
	t.Run("create", func(t *testing.T) {
		d := newTestDevice(t)
		rr := doJSON(router, http.MethodPut, "/devices/"+d.ID, d.registration(), registryToken(t))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var created iothub.Device
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
		assert.Equal(t, d.ID, created.DeviceID)
		assert.Equal(t, iothub.StatusEnabled, created.Status)
		require.NotNil(t, created.Authentication.SymmetricKey)
		assert.Equal(t, d.PrimaryKey, created.Authentication.SymmetricKey.PrimaryKey)
	})

	t.Run("duplicate keeps the first identity", func(t *testing.T) {
		d := newTestDevice(t)
		register(t, router, d)

		again := newTestDevice(t)
		again.ID = d.ID
		rr := doJSON(router, http.MethodPut, "/devices/"+d.ID, again.registration(), registryToken(t))
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "DeviceAlreadyExists", rr.Header().Get("iothub-errorcode"))

		var errResp iothub.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
		assert.True(t, strings.Contains(errResp.Message, "DeviceAlreadyExists"))

		payload := `{"mac_address":"AA:BB:CC:DD:EE:FF","ssid":"Home","random_mac":0}`
		assert.Equal(t, http.StatusNoContent, sendEvent(router, d.ID, payload, deviceToken(t, d.ID, d.PrimaryKey)).Code)
		assert.Equal(t, http.StatusUnauthorized, sendEvent(router, d.ID, payload, deviceToken(t, d.ID, again.PrimaryKey)).Code)
	})

	t.Run("missing token", func(t *testing.T) {
		d := newTestDevice(t)
		rr := doJSON(router, http.MethodPut, "/devices/"+d.ID, d.registration(), "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("device token cannot register", func(t *testing.T) {
		d := newTestDevice(t)
		rr := doJSON(router, http.MethodPut, "/devices/"+d.ID, d.registration(), deviceToken(t, d.ID, d.PrimaryKey))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid keys", func(t *testing.T) {
		d := newTestDevice(t)
		d.SecondaryKey = "not base64"
		rr := doJSON(router, http.MethodPut, "/devices/"+d.ID, d.registration(), registryToken(t))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
