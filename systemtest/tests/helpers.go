package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/EternisAI/probe-relay/internal/credentials"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	JWTSecret     = "systemtest-secret"
	AdminUsername = "admin"
	AdminPassword = "changeme-please"
	PolicyName    = "registryReadWrite"
	PolicyKey     = "cG9saWN5LWtleS1wb2xpY3kta2V5LXBvbGljeS1rZXk="

	// httptest.NewRequest sets this host.
	hostName = "example.com"
)

func TestHealthCheck(t *testing.T, router *gin.Engine) {
	rr := doJSON(router, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok","storage":"ok"}`, rr.Body.String())
}

func doJSON(router *gin.Engine, method, path string, body any, authorization string) *httptest.ResponseRecorder {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	return doRaw(router, method, path, b, authorization)
}

func doRaw(router *gin.Engine, method, path string, body []byte, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func registryToken(t *testing.T) string {
	t.Helper()
	token, err := iothub.NewSASToken(hostName, PolicyKey, PolicyName, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return token
}

func deviceToken(t *testing.T, deviceID, key string) string {
	t.Helper()
	token, err := iothub.NewSASToken(iothub.DeviceResource(hostName, deviceID), key, "", time.Now().Add(time.Hour))
	require.NoError(t, err)
	return token
}

type testDevice struct {
	ID           string
	PrimaryKey   string
	SecondaryKey string
}

func newTestDevice(t *testing.T) testDevice {
	t.Helper()
	id, err := credentials.GenerateDeviceID("systemtest")
	require.NoError(t, err)
	primary, err := credentials.GenerateKey()
	require.NoError(t, err)
	secondary, err := credentials.GenerateKey()
	require.NoError(t, err)
	return testDevice{ID: id, PrimaryKey: primary, SecondaryKey: secondary}
}

func (d testDevice) registration() iothub.Device {
	return iothub.Device{
		DeviceID: d.ID,
		Status:   iothub.StatusEnabled,
		Authentication: iothub.Authentication{
			Type: iothub.AuthTypeSAS,
			SymmetricKey: &iothub.SymmetricKey{
				PrimaryKey:   d.PrimaryKey,
				SecondaryKey: d.SecondaryKey,
			},
		},
	}
}

func register(t *testing.T, router *gin.Engine, d testDevice) {
	t.Helper()
	rr := doJSON(router, http.MethodPut, "/devices/"+d.ID+"?api-version=2021-04-12", d.registration(), registryToken(t))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func sendEvent(router *gin.Engine, deviceID, payload, authorization string) *httptest.ResponseRecorder {
	return doRaw(router, http.MethodPost, "/devices/"+deviceID+"/messages/events?api-version=2020-03-13",
		[]byte(payload), authorization)
}
