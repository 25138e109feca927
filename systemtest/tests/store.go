package tests

import (
	"context"
	"testing"

	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T, store *hub.PostgresStore) {
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))
	d := newTestDevice(t)

	created, err := store.CreateDevice(ctx, hub.Device{
		ID:           d.ID,
		PrimaryKey:   d.PrimaryKey,
		SecondaryKey: d.SecondaryKey,
		Status:       iothub.StatusEnabled,
	})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = store.CreateDevice(ctx, hub.Device{ID: d.ID, PrimaryKey: "x", SecondaryKey: "y", Status: iothub.StatusEnabled})
	assert.ErrorIs(t, err, hub.ErrDeviceExists)

	got, err := store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.PrimaryKey, got.PrimaryKey)
	assert.Nil(t, got.LastSeenAt)

	_, err = store.GetDevice(ctx, "missing")
	assert.ErrorIs(t, err, hub.ErrDeviceNotFound)

	ssid := "nul\x00byte"
	ev, err := store.InsertEvent(ctx, hub.Event{DeviceID: d.ID, MACAddress: "aa:bb:cc:dd:ee:ff", SSID: ssid})
	require.NoError(t, err)
	assert.Positive(t, ev.ID)

	_, err = store.InsertEvent(ctx, hub.Event{DeviceID: "missing", MACAddress: "aa:bb:cc:dd:ee:ff"})
	assert.ErrorIs(t, err, hub.ErrDeviceNotFound)

	events, err := store.ListEvents(ctx, d.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ssid, events[0].SSID)

	_, err = store.ListEvents(ctx, "missing", 10)
	assert.ErrorIs(t, err, hub.ErrDeviceNotFound)

	got, err = store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastSeenAt)
}
