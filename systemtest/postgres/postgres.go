package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image          = "postgres:17-alpine"
	startupTimeout = 60 * time.Second
)

type Credentials struct {
	User     string
	Password string
	Database string
}

// Database is a throwaway hub database running in a container.
type Database struct {
	container *postgres.PostgresContainer
	// URL is a pgx DSN with TLS disabled.
	URL string
}

func Start(ctx context.Context, creds Credentials) (*Database, error) {
	container, err := postgres.Run(ctx,
		image,
		postgres.WithUsername(creds.User),
		postgres.WithPassword(creds.Password),
		postgres.WithDatabase(creds.Database),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				// The server logs readiness twice: once for the init run, once for real.
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(startupTimeout)),
	)
	if err != nil {
		if container != nil {
			_ = container.Terminate(context.Background())
		}
		return nil, fmt.Errorf("failed to start hub database: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to build hub database URL: %w", err)
	}

	return &Database{container: container, URL: url}, nil
}

func (d *Database) Close(ctx context.Context) error {
	if err := d.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate hub database: %w", err)
	}
	return nil
}
