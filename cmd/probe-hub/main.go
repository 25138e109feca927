package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/probe-relay/internal/api/http"
	"github.com/EternisAI/probe-relay/internal/auth"
	"github.com/EternisAI/probe-relay/internal/cert"
	"github.com/EternisAI/probe-relay/internal/db"
	"github.com/EternisAI/probe-relay/internal/hub"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	if err := InitConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	slog.Info("Probe Hub", "version", AppVersion)

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, config.Storage)
	if err != nil {
		slog.Error("Failed to open storage", "driver", config.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	authService, err := auth.NewService(config.Auth)
	if err != nil {
		slog.Error("Failed to initialize auth", "error", err)
		os.Exit(1)
	}

	if config.Hub.PolicyKey == "" {
		slog.Warn("Registry policy key not configured, device registration is disabled")
	}

	services := &internalhttp.Services{
		HubService:  hub.NewService(store, config.Hub.Config),
		AuthService: authService,
	}

	origins := config.Http.CorsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"PUT", "GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "iothub-errorcode"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services, config.Http)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Http.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if config.TLS.Enabled {
		if err := cert.Ensure(config.TLS); err != nil {
			slog.Error("Failed to prepare TLS certificates", "error", err)
			os.Exit(1)
		}
		tlsConfig, err := cert.ServerTLSConfig(config.TLS)
		if err != nil {
			slog.Error("Failed to load TLS certificates", "error", err)
			os.Exit(1)
		}
		server.TLSConfig = tlsConfig
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", server.Addr, "tls", config.TLS.Enabled)
		var err error
		if config.TLS.Enabled {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}

func openStore(ctx context.Context, cfg StorageConfig) (hub.Store, func(), error) {
	switch cfg.Driver {
	case StorageDriverMemory:
		slog.Warn("Using in-memory storage, data is lost on restart")
		return hub.NewMemoryStore(), func() {}, nil
	case StorageDriverPostgres, "":
		if cfg.DB.Url == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is not set")
		}
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := db.RunMigrations(migrateCtx, cfg.DB.Url, cfg.DB.Schema); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		pool, err := db.InitDB(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		return hub.NewPostgresStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
