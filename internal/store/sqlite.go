package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	// Pure Go SQLite driver, no CGO.
	_ "modernc.org/sqlite"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

// SQLiteStore persists links and runtime config to a local SQLite file.
// Intended for single-node deployments with no external database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	retry  *RetryExecutor
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// ensures its schema exists.
func NewSQLiteStore(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("sqlite store: empty path")
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("sqlite store: path must not contain '..': %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("sqlite store: create dir: %w", err)
		}
	}

	connDSN := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", connDSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		retry:  NewRetryExecutor(DefaultRetryConfig(), isSQLiteRetryable, logger.With("backend", "sqlite")),
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS short_links (
	code TEXT PRIMARY KEY,
	target TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER,
	password TEXT NOT NULL DEFAULT '',
	click_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_short_links_expires_created ON short_links(expires_at, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_short_links_target ON short_links(target);

CREATE TABLE IF NOT EXISTS runtime_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	value_type TEXT NOT NULL,
	default_value TEXT NOT NULL,
	requires_restart INTEGER NOT NULL DEFAULT 0,
	is_sensitive INTEGER NOT NULL DEFAULT 0,
	category TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runtime_config_history (
	id TEXT PRIMARY KEY,
	key TEXT NOT NULL,
	old_value TEXT NOT NULL,
	new_value TEXT NOT NULL,
	changed_at INTEGER NOT NULL,
	changed_by TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runtime_config_history_key ON runtime_config_history(key);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite store: init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, code string) (*domain.ShortLink, error) {
	var link *domain.ShortLink
	err := s.retry.Execute(ctx, "get", func() error {
		row := s.db.QueryRowContext(ctx, `SELECT code, target, created_at, expires_at, password, click_count FROM short_links WHERE code = ?`, code)
		l, scanErr := scanShortLink(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			link = nil
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		link = l
		return nil
	})
	if err != nil {
		return nil, classifySQLiteErr("get", err)
	}
	return link, nil
}

func (s *SQLiteStore) BatchGet(ctx context.Context, codes []string) (map[string]*domain.ShortLink, error) {
	result := make(map[string]*domain.ShortLink, len(codes))
	if len(codes) == 0 {
		return result, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(codes)), ",")
	args := make([]interface{}, len(codes))
	for i, c := range codes {
		args[i] = c
	}
	err := s.retry.Execute(ctx, "batch_get", func() error {
		rows, qerr := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT code, target, created_at, expires_at, password, click_count FROM short_links WHERE code IN (%s)`, placeholders), args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		for rows.Next() {
			l, serr := scanShortLinkRows(rows)
			if serr != nil {
				return serr
			}
			result[l.Code] = l
		}
		return rows.Err()
	})
	if err != nil {
		return nil, classifySQLiteErr("batch_get", err)
	}
	return result, nil
}

func (s *SQLiteStore) LoadAllCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.retry.Execute(ctx, "load_all_codes", func() error {
		codes = nil
		rows, qerr := s.db.QueryContext(ctx, `SELECT code FROM short_links`)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		for rows.Next() {
			var c string
			if serr := rows.Scan(&c); serr != nil {
				return serr
			}
			codes = append(codes, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, classifySQLiteErr("load_all_codes", err)
	}
	return codes, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.retry.Execute(ctx, "count", func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links`).Scan(&count)
	})
	if err != nil {
		return 0, classifySQLiteErr("count", err)
	}
	return count, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]*domain.ShortLink, int, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	now := time.Now().UnixMilli()

	if filter.Query != "" {
		where = append(where, `(code LIKE ? OR target LIKE ?)`)
		like := "%" + filter.Query + "%"
		args = append(args, like, like)
	}
	if filter.CreatedAfter != nil {
		where = append(where, `created_at >= ?`)
		args = append(args, filter.CreatedAfter.UnixMilli())
	}
	if filter.CreatedBefore != nil {
		where = append(where, `created_at <= ?`)
		args = append(args, filter.CreatedBefore.UnixMilli())
	}
	if filter.ActiveOnly {
		where = append(where, `(expires_at IS NULL OR expires_at > ?)`)
		args = append(args, now)
	}
	if filter.ExpiredOnly {
		where = append(where, `(expires_at IS NOT NULL AND expires_at <= ?)`)
		args = append(args, now)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var links []*domain.ShortLink
	var total int
	err := s.retry.Execute(ctx, "list", func() error {
		links = nil
		if cerr := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM short_links %s`, whereClause), args...).Scan(&total); cerr != nil {
			return cerr
		}

		pagedArgs := append(append([]interface{}{}, args...), pageSize, (page-1)*pageSize)
		rows, qerr := s.db.QueryContext(ctx, fmt.Sprintf(
			`SELECT code, target, created_at, expires_at, password, click_count FROM short_links %s ORDER BY created_at DESC, code ASC LIMIT ? OFFSET ?`,
			whereClause), pagedArgs...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		for rows.Next() {
			l, serr := scanShortLinkRows(rows)
			if serr != nil {
				return serr
			}
			links = append(links, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, classifySQLiteErr("list", err)
	}
	return links, total, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, link *domain.ShortLink, overwrite bool) (UpsertResult, error) {
	var result UpsertResult
	err := s.retry.Execute(ctx, "upsert", func() error {
		existing, gerr := s.Get(ctx, link.Code)
		if gerr != nil {
			return gerr
		}
		if existing != nil && !overwrite {
			result = Conflict
			return nil
		}

		var expiresAt interface{}
		if link.ExpiresAt != nil {
			expiresAt = link.ExpiresAt.UnixMilli()
		}

		createdAt := link.CreatedAt
		if existing != nil {
			createdAt = existing.CreatedAt
		}
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		_, xerr := s.db.ExecContext(ctx, `
INSERT INTO short_links (code, target, created_at, expires_at, password, click_count)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
	target = excluded.target,
	expires_at = excluded.expires_at,
	password = excluded.password
`, link.Code, link.Target, createdAt.UnixMilli(), expiresAt, link.Password, link.ClickCount)
		if xerr != nil {
			return xerr
		}

		link.CreatedAt = createdAt
		if existing != nil {
			result = Updated
		} else {
			result = Created
		}
		return nil
	})
	if err != nil {
		return 0, classifySQLiteErr("upsert", err)
	}
	if result == Conflict {
		return Conflict, domain.NewConflictError(link.Code)
	}
	return result, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, code string) (bool, error) {
	var deleted bool
	err := s.retry.Execute(ctx, "delete", func() error {
		res, xerr := s.db.ExecContext(ctx, `DELETE FROM short_links WHERE code = ?`, code)
		if xerr != nil {
			return xerr
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, classifySQLiteErr("delete", err)
	}
	return deleted, nil
}

func (s *SQLiteStore) ApplyClickDeltas(ctx context.Context, deltas map[string]uint64) error {
	if len(deltas) == 0 {
		return nil
	}
	err := s.retry.Execute(ctx, "apply_click_deltas", func() error {
		tx, terr := s.db.BeginTx(ctx, nil)
		if terr != nil {
			return terr
		}
		defer tx.Rollback()

		stmt, perr := tx.PrepareContext(ctx, `UPDATE short_links SET click_count = click_count + ? WHERE code = ?`)
		if perr != nil {
			return perr
		}
		defer stmt.Close()

		for code, delta := range deltas {
			if _, xerr := stmt.ExecContext(ctx, delta, code); xerr != nil {
				return xerr
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return classifySQLiteErr("apply_click_deltas", err)
	}
	return nil
}

func (s *SQLiteStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	now := time.Now().UnixMilli()
	err := s.retry.Execute(ctx, "get_stats", func() error {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links`).Scan(&stats.TotalLinks); err != nil {
			return err
		}
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links WHERE expires_at IS NULL OR expires_at > ?`, now).Scan(&stats.ActiveLinks); err != nil {
			return err
		}
		return s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(click_count), 0) FROM short_links`).Scan(&stats.TotalClicks)
	})
	if err != nil {
		return Stats{}, classifySQLiteErr("get_stats", err)
	}
	return stats, nil
}

func (s *SQLiteStore) LoadConfig(ctx context.Context) ([]ConfigRow, error) {
	var rows []ConfigRow
	err := s.retry.Execute(ctx, "load_config", func() error {
		rows = nil
		r, qerr := s.db.QueryContext(ctx, `SELECT key, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at FROM runtime_config`)
		if qerr != nil {
			return qerr
		}
		defer r.Close()
		for r.Next() {
			var row ConfigRow
			var updatedAt int64
			if serr := r.Scan(&row.Key, &row.Value, &row.ValueType, &row.DefaultValue, &row.RequiresRestart, &row.IsSensitive, &row.Category, &updatedAt); serr != nil {
				return serr
			}
			row.UpdatedAt = time.UnixMilli(updatedAt)
			rows = append(rows, row)
		}
		return r.Err()
	})
	if err != nil {
		return nil, classifySQLiteErr("load_config", err)
	}
	return rows, nil
}

func (s *SQLiteStore) SetConfig(ctx context.Context, newRow ConfigRow, oldValue, changedBy string) error {
	err := s.retry.Execute(ctx, "set_config", func() error {
		tx, terr := s.db.BeginTx(ctx, nil)
		if terr != nil {
			return terr
		}
		defer tx.Rollback()

		now := time.Now()
		_, xerr := tx.ExecContext(ctx, `
INSERT INTO runtime_config (key, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, newRow.Key, newRow.Value, newRow.ValueType, newRow.DefaultValue, newRow.RequiresRestart, newRow.IsSensitive, newRow.Category, now.UnixMilli())
		if xerr != nil {
			return xerr
		}

		_, herr := tx.ExecContext(ctx, `
INSERT INTO runtime_config_history (id, key, old_value, new_value, changed_at, changed_by)
VALUES (?, ?, ?, ?, ?, ?)
`, uuid.NewString(), newRow.Key, oldValue, newRow.Value, now.UnixMilli(), changedBy)
		if herr != nil {
			return herr
		}

		return tx.Commit()
	})
	if err != nil {
		return classifySQLiteErr("set_config", err)
	}
	return nil
}

func (s *SQLiteStore) SeedDefaults(ctx context.Context, defaults []ConfigRow) error {
	return s.retry.Execute(ctx, "seed_defaults", func() error {
		tx, terr := s.db.BeginTx(ctx, nil)
		if terr != nil {
			return terr
		}
		defer tx.Rollback()

		now := time.Now().UnixMilli()
		for _, row := range defaults {
			if _, xerr := tx.ExecContext(ctx, `
INSERT INTO runtime_config (key, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO NOTHING
`, row.Key, row.Value, row.ValueType, row.DefaultValue, row.RequiresRestart, row.IsSensitive, row.Category, now); xerr != nil {
				return xerr
			}
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShortLink(row *sql.Row) (*domain.ShortLink, error) {
	return scanShortLinkGeneric(row)
}

func scanShortLinkRows(rows *sql.Rows) (*domain.ShortLink, error) {
	return scanShortLinkGeneric(rows)
}

func scanShortLinkGeneric(s rowScanner) (*domain.ShortLink, error) {
	var l domain.ShortLink
	var createdAt int64
	var expiresAt sql.NullInt64
	if err := s.Scan(&l.Code, &l.Target, &createdAt, &expiresAt, &l.Password, &l.ClickCount); err != nil {
		return nil, err
	}
	l.CreatedAt = time.UnixMilli(createdAt)
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64)
		l.ExpiresAt = &t
	}
	return &l, nil
}

func isSQLiteRetryable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// classifySQLiteErr wraps a post-retry error as fatal: by the time the
// retry executor gives up, any retryable fault has already exhausted its
// budget.
func classifySQLiteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewStoreFatalError(op, err)
}
