package main

import (
	"context"
	"testing"

	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubConfigResolve(t *testing.T) {
	cfg := HubConfig{
		ConnectionString: "HostName=hub.example.net;SharedAccessKeyName=iothubowner;SharedAccessKey=c2VjcmV0",
	}
	require.NoError(t, cfg.resolve())

	assert.Equal(t, "hub.example.net", cfg.HostName)
	assert.Equal(t, "iothubowner", cfg.PolicyName)
	assert.Equal(t, "c2VjcmV0", cfg.PolicyKey)
}

func TestHubConfigResolveKeepsExplicitValues(t *testing.T) {
	cfg := HubConfig{
		Config:           hub.Config{PolicyName: "registryReadWrite"},
		ConnectionString: "HostName=hub.example.net;SharedAccessKeyName=iothubowner;SharedAccessKey=c2VjcmV0",
	}
	require.NoError(t, cfg.resolve())

	assert.Equal(t, "registryReadWrite", cfg.PolicyName)
}

func TestHubConfigResolveInvalid(t *testing.T) {
	cfg := HubConfig{ConnectionString: "SharedAccessKey=c2VjcmV0"}
	assert.Error(t, cfg.resolve())
}

func TestOpenStore(t *testing.T) {
	store, closeStore, err := openStore(context.Background(), StorageConfig{Driver: StorageDriverMemory})
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &hub.MemoryStore{}, store)

	_, _, err = openStore(context.Background(), StorageConfig{Driver: StorageDriverPostgres})
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, _, err = openStore(context.Background(), StorageConfig{Driver: "sqlite"})
	assert.Error(t, err)
}
