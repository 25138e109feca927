package probe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePayload(t *testing.T) {
	payload, err := CreatePayload("AA:BB:CC:DD:EE:FF", "MyNetwork")
	require.NoError(t, err)
	assert.Equal(t, `{"mac_address":"AA:BB:CC:DD:EE:FF","ssid":"MyNetwork","random_mac":0}`, payload)

	payload, err = CreatePayload("02:1A:2B:3C:4D:5E", "")
	require.NoError(t, err)
	assert.Equal(t, `{"mac_address":"02:1A:2B:3C:4D:5E","ssid":"","random_mac":1}`, payload)
}

func TestCreatePayloadRoundTrip(t *testing.T) {
	tests := []struct {
		mac    string
		ssid   string
		random int
	}{
		{"AA:BB:CC:DD:EE:FF", "MyNetwork", 0},
		{"da:a1:19:00:00:01", "café <guest> & friends", 1},
		{"0e1122334455", "tab\there\nnewline\x01", 1},
		{"10:20:30:40:50:60", `quote " backslash \`, 0},
	}

	for _, tt := range tests {
		payload, err := CreatePayload(tt.mac, tt.ssid)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
		assert.Equal(t, tt.mac, decoded["mac_address"])
		assert.Equal(t, tt.ssid, decoded["ssid"])
		assert.Equal(t, float64(tt.random), decoded["random_mac"])
	}
}

func TestCreatePayloadInvalidUTF8(t *testing.T) {
	payload, err := CreatePayload("AA:BB:CC:DD:EE:FF", "bad\xffssid")
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))
	assert.Equal(t, "bad\uFFFDssid", ev.SSID)
}

func TestCreatePayloadInvalidMAC(t *testing.T) {
	_, err := CreatePayload("not-a-mac", "MyNetwork")
	assert.ErrorIs(t, err, ErrInvalidMAC)
}

func TestParseEvent(t *testing.T) {
	payload, err := CreatePayload("6A:00:00:00:00:01", "home")
	require.NoError(t, err)

	ev, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "6A:00:00:00:00:01", ev.MACAddress)
	assert.Equal(t, "home", ev.SSID)
	assert.True(t, ev.Random())

	_, err = ParseEvent([]byte(payload + "\n"))
	assert.NoError(t, err)
}

func TestParseEventRejects(t *testing.T) {
	tests := map[string]string{
		"not json":       `mac`,
		"bad mac":        `{"mac_address":"xx","ssid":"a","random_mac":0}`,
		"wrong flag":     `{"mac_address":"02:00:00:00:00:00","ssid":"a","random_mac":0}`,
		"flag range":     `{"mac_address":"00:00:00:00:00:00","ssid":"a","random_mac":7}`,
		"boolean flag":   `{"mac_address":"00:00:00:00:00:00","ssid":"a","random_mac":false}`,
		"unknown fields": `{"mac_address":"00:00:00:00:00:00","ssid":"a","random_mac":0,"rssi":-40}`,
		"trailing data":  `{"mac_address":"00:00:00:00:00:00","ssid":"a","random_mac":0}garbage`,
		"two events":     `{"mac_address":"00:00:00:00:00:00","ssid":"a","random_mac":0}{"mac_address":"00:00:00:00:00:00","ssid":"b","random_mac":0}`,
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent([]byte(payload))
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}
