package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Config configures backend selection and connection sizing shared by all
// three Store backends.
type Config struct {
	DSN      string
	PoolSize int
}

// New inspects the DSN scheme of cfg.DSN and constructs the matching Store
// implementation. An unrecognized scheme is a fatal configuration error,
// surfaced to the caller at startup rather than deferred to a runtime
// operation.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch {
	case strings.HasPrefix(cfg.DSN, "sqlite://"):
		return NewSQLiteStore(ctx, cfg.DSN, logger)
	case strings.HasPrefix(cfg.DSN, "postgres://"), strings.HasPrefix(cfg.DSN, "postgresql://"):
		return NewPostgresStore(ctx, cfg.DSN, int32(cfg.PoolSize), logger)
	case strings.HasPrefix(cfg.DSN, "mysql://"):
		return NewMySQLStore(ctx, strings.TrimPrefix(cfg.DSN, "mysql://"), cfg.PoolSize, logger)
	default:
		return nil, fmt.Errorf("store: unrecognized DSN scheme in %q (expected sqlite://, postgres://, postgresql://, or mysql://)", cfg.DSN)
	}
}
