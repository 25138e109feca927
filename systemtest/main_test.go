package systemtest

import (
	"context"
	"fmt"
	"testing"

	internalhttp "github.com/EternisAI/probe-relay/internal/api/http"
	"github.com/EternisAI/probe-relay/internal/auth"
	"github.com/EternisAI/probe-relay/internal/db"
	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/EternisAI/probe-relay/systemtest/postgres"
	"github.com/EternisAI/probe-relay/systemtest/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	dbUser     = "probe"
	dbPassword = "probe"
	dbName     = "probe_hub"
	dbSchema   = "hub"
)

func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("system tests need Docker")
	}

	ctx := context.Background()

	database, err := postgres.Start(ctx, postgres.Credentials{User: dbUser, Password: dbPassword, Database: dbName})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := database.Close(context.Background()); err != nil {
			t.Logf("close hub database: %v", err)
		}
	})
	dbURL := database.URL

	require.NoError(t, db.RunMigrations(ctx, dbURL, dbSchema))
	// A second run must find nothing to apply.
	require.NoError(t, db.RunMigrations(ctx, dbURL, dbSchema))

	pool, err := db.InitDB(ctx, db.Config{Url: dbURL, Schema: dbSchema})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := hub.NewPostgresStore(pool)

	authService, err := auth.NewService(auth.Config{
		JWT:           auth.JWTConfig{Secret: tests.JWTSecret},
		AdminUsername: tests.AdminUsername,
		AdminPassword: tests.AdminPassword,
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	internalhttp.SetupRoute(engine, &internalhttp.Services{
		HubService: hub.NewService(store, hub.Config{
			PolicyName: tests.PolicyName,
			PolicyKey:  tests.PolicyKey,
		}),
		AuthService: authService,
	}, internalhttp.Config{})

	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, engine) })
	t.Run("Store", func(t *testing.T) { tests.TestPostgresStore(t, store) })
	t.Run("Registry", func(t *testing.T) { tests.TestRegistry(t, engine) })
	t.Run("Telemetry", func(t *testing.T) { tests.TestTelemetry(t, engine) })
	t.Run("Admin", func(t *testing.T) { tests.TestAdmin(t, engine) })
	t.Run("Stats", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		require.Positive(t, stats.Devices, fmt.Sprintf("%+v", stats))
	})
}
