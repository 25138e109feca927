package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdRequiresInterface(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out.String(), "probe-sniffer <interface>")
}

func TestRootCmdRejectsExtraArguments(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"wlan0", "wlan1"})

	err := cmd.Execute()

	assert.ErrorIs(t, err, errUsage)
}

func TestNewDeviceClientRequiresConnectionString(t *testing.T) {
	_, err := newDeviceClient(DeviceConfig{})
	assert.ErrorContains(t, err, "DEVICE_CONNECTION_STRING")
}

func TestNewDeviceClient(t *testing.T) {
	client, err := newDeviceClient(DeviceConfig{
		ConnectionString: "HostName=hub.example.net;DeviceId=device-1;SharedAccessKey=MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=",
		InsecureHTTP:     true,
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "device-1", client.DeviceID())
}

func TestNewDeviceClientMissingCAFile(t *testing.T) {
	_, err := newDeviceClient(DeviceConfig{
		ConnectionString: "HostName=hub.example.net;DeviceId=device-1;SharedAccessKey=MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=",
		CAFile:           "does-not-exist.pem",
	})
	assert.ErrorContains(t, err, "CA file")
}
