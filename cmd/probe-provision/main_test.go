package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/EternisAI/probe-relay/internal/envstore"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/EternisAI/probe-relay/internal/provisioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

func newRegistry(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/devices/device-"))
		if status == http.StatusOK {
			var device iothub.Device
			_ = json.NewDecoder(r.Body).Decode(&device)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(device)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func hubConfig(srv *httptest.Server) HubConfig {
	host := strings.TrimPrefix(srv.URL, "http://")
	return HubConfig{
		ConnectionString: "HostName=" + host + ";SharedAccessKeyName=registryReadWrite;SharedAccessKey=" + testKey,
		DevicePrefix:     "device",
		InsecureHTTP:     true,
	}
}

func writeEnv(t *testing.T, content string) *envstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return envstore.New(path)
}

func TestProvisionRegistersAndScrubs(t *testing.T) {
	srv, calls := newRegistry(t, http.StatusOK, "")
	hub := hubConfig(srv)
	store := writeEnv(t, `IOT_HUB_CONNECTION_STRING="`+hub.ConnectionString+`"`+"\n")

	var out bytes.Buffer
	require.NoError(t, provision(context.Background(), &out, store, hub))

	assert.Equal(t, 1, *calls)
	assert.Contains(t, out.String(), "registered")
	assert.Contains(t, out.String(), "Removed IOT_HUB_CONNECTION_STRING")

	values, err := store.ReadAll()
	require.NoError(t, err)
	assert.NotContains(t, values, envstore.KeyHubConnectionString)
	assert.True(t, strings.HasPrefix(values[envstore.KeyDeviceID], "device-"))

	// A second run needs no hub secret and makes no registry call.
	out.Reset()
	require.NoError(t, provision(context.Background(), &out, store, HubConfig{}))
	assert.Equal(t, 1, *calls)
	assert.Contains(t, out.String(), "already registered")
}

func TestProvisionAlreadyExists(t *testing.T) {
	body := `{"Message":"ErrorCode:DeviceAlreadyExists;A device with ID 'device-x' is already registered."}`
	srv, calls := newRegistry(t, http.StatusConflict, body)
	hub := hubConfig(srv)
	content := `IOT_HUB_CONNECTION_STRING="` + hub.ConnectionString + `"` + "\n"
	store := writeEnv(t, content)

	var out bytes.Buffer
	require.NoError(t, provision(context.Background(), &out, store, hub))

	assert.Equal(t, 1, *calls)
	assert.Contains(t, out.String(), "already exists")
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestProvisionRegistryFailure(t *testing.T) {
	srv, _ := newRegistry(t, http.StatusUnauthorized, `{"Message":"ErrorCode:IotHubUnauthorizedAccess;Unauthorized"}`)
	hub := hubConfig(srv)
	store := writeEnv(t, "")

	err := provision(context.Background(), &bytes.Buffer{}, store, hub)

	assert.ErrorIs(t, err, iothub.ErrRegistration)
	complete, readErr := store.HasCompleteIdentity()
	require.NoError(t, readErr)
	assert.False(t, complete)
}

func TestProvisionMissingHubConnectionString(t *testing.T) {
	store := writeEnv(t, "")

	err := provision(context.Background(), &bytes.Buffer{}, store, HubConfig{})

	assert.ErrorContains(t, err, "IOT_HUB_CONNECTION_STRING")
}

func TestProvisionPartialIdentityWithoutHubSecret(t *testing.T) {
	content := `DEVICE_ID="device-1"` + "\n" + `PRIMARY_KEY="cHJpbWFyeQ=="` + "\n"
	store := writeEnv(t, content)

	err := provision(context.Background(), &bytes.Buffer{}, store, HubConfig{})

	require.ErrorIs(t, err, provisioning.ErrPartialIdentity)
	assert.NotContains(t, err.Error(), envstore.KeyHubConnectionString)
	data, readErr := os.ReadFile(store.Path())
	require.NoError(t, readErr)
	assert.Equal(t, content, string(data))
}

func TestRootCmdRejectsArguments(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})

	assert.Error(t, cmd.Execute())
}
