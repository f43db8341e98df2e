//go:build integration

package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestUp_AppliesPostgresMigrationsIdempotently(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("shortlinkd"),
		tcpostgres.WithUsername("shortlinkd"),
		tcpostgres.WithPassword("shortlinkd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Up(ctx, dsn, nil))
	require.NoError(t, Up(ctx, dsn, nil), "re-running Up against an already-migrated database must be a no-op")
	require.NoError(t, Status(ctx, dsn, nil))
}
