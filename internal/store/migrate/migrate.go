// Package migrate runs goose-managed SQL schema migrations for the
// PostgreSQL and MySQL-family backends. SQLite needs no migration runner;
// its schema is created inline by store.NewSQLiteStore.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	// Driver imports so database/sql can open a *sql.DB independent of
	// the pgxpool/database-sql connections the Store backends use.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql
var postgresMigrations embed.FS

//go:embed mysql/*.sql
var mysqlMigrations embed.FS

// Up applies all pending migrations for the backend selected by dsn's
// scheme. It is a no-op for sqlite:// DSNs.
func Up(ctx context.Context, dsn string, logger *slog.Logger) error {
	return run(ctx, dsn, logger, func(db *sql.DB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	})
}

// Down rolls back the most recent migration for the backend selected by
// dsn's scheme.
func Down(ctx context.Context, dsn string, logger *slog.Logger) error {
	return run(ctx, dsn, logger, func(db *sql.DB, dir string) error {
		return goose.DownContext(ctx, db, dir)
	})
}

// Status reports the current migration status for the backend selected by
// dsn's scheme.
func Status(ctx context.Context, dsn string, logger *slog.Logger) error {
	return run(ctx, dsn, logger, func(db *sql.DB, dir string) error {
		return goose.StatusContext(ctx, db, dir)
	})
}

func run(ctx context.Context, dsn string, logger *slog.Logger, fn func(*sql.DB, string) error) error {
	if logger == nil {
		logger = slog.Default()
	}

	var driverName, dialect, dir string
	var migrations fs.FS

	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		logger.Info("sqlite backend uses inline schema creation, skipping goose migrations")
		return nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driverName, dialect, dir, migrations = "pgx", "postgres", "postgres", postgresMigrations
	case strings.HasPrefix(dsn, "mysql://"):
		driverName, dialect, dir, migrations = "mysql", "mysql", "mysql", mysqlMigrations
		dsn = strings.TrimPrefix(dsn, "mysql://")
	default:
		return fmt.Errorf("migrate: unrecognized DSN scheme in %q", dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("migrate: open: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("migrate: ping: %w", err)
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migrate: set dialect: %w", err)
	}

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	return fn(db, dir)
}
