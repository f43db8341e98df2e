package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

// mysqlRetryableNumbers lists MySQL error numbers treated as transient.
var mysqlRetryableNumbers = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR (too many connections)
	1205: true, // ER_LOCK_WAIT_TIMEOUT
	1213: true, // ER_LOCK_DEADLOCK
	2006: true, // CR_SERVER_GONE_ERROR
	2013: true, // CR_SERVER_LOST
}

func isMySQLRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlRetryableNumbers[myErr.Number]
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn)
}

// MySQLStore persists links and runtime config in a MySQL-family database
// (MySQL, MariaDB, Percona) over database/sql.
type MySQLStore struct {
	db     *sql.DB
	logger *slog.Logger
	retry  *RetryExecutor
}

// NewMySQLStore connects to a MySQL-family database at dsn (a standard
// go-sql-driver/mysql DSN, with the mysql:// prefix stripped by the
// caller's factory) and returns a ready Store. Schema must already be
// applied via the goose migrations under internal/store/migrate/mysql.
func NewMySQLStore(ctx context.Context, dsn string, poolSize int, logger *slog.Logger) (*MySQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql store: open: %w", err)
	}
	if poolSize <= 0 {
		poolSize = 20
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize / 2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql store: ping: %w", err)
	}

	logger.Info("mysql store initialized", "max_conns", poolSize)

	return &MySQLStore{
		db:     db,
		logger: logger,
		retry:  NewRetryExecutor(DefaultRetryConfig(), isMySQLRetryable, logger.With("backend", "mysql")),
	}, nil
}

func (s *MySQLStore) Get(ctx context.Context, code string) (*domain.ShortLink, error) {
	var link *domain.ShortLink
	err := s.retry.Execute(ctx, "get", func() error {
		row := s.db.QueryRowContext(ctx, `SELECT code, target, created_at, expires_at, password, click_count FROM short_links WHERE code = ?`, code)
		l, scanErr := scanMySQLRow(row)
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
		return nil, classifyMySQLErr("get", err)
	}
	return link, nil
}

func (s *MySQLStore) BatchGet(ctx context.Context, codes []string) (map[string]*domain.ShortLink, error) {
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
			l, serr := scanMySQLRow(rows)
			if serr != nil {
				return serr
			}
			result[l.Code] = l
		}
		return rows.Err()
	})
	if err != nil {
		return nil, classifyMySQLErr("batch_get", err)
	}
	return result, nil
}

func (s *MySQLStore) LoadAllCodes(ctx context.Context) ([]string, error) {
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
		return nil, classifyMySQLErr("load_all_codes", err)
	}
	return codes, nil
}

func (s *MySQLStore) Count(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.retry.Execute(ctx, "count", func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links`).Scan(&count)
	})
	if err != nil {
		return 0, classifyMySQLErr("count", err)
	}
	return count, nil
}

func (s *MySQLStore) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]*domain.ShortLink, int, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	now := time.Now()

	if filter.Query != "" {
		where = append(where, `(code LIKE ? OR target LIKE ?)`)
		like := "%" + filter.Query + "%"
		args = append(args, like, like)
	}
	if filter.CreatedAfter != nil {
		where = append(where, `created_at >= ?`)
		args = append(args, *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		where = append(where, `created_at <= ?`)
		args = append(args, *filter.CreatedBefore)
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
			l, serr := scanMySQLRow(rows)
			if serr != nil {
				return serr
			}
			links = append(links, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, classifyMySQLErr("list", err)
	}
	return links, total, nil
}

func (s *MySQLStore) Upsert(ctx context.Context, link *domain.ShortLink, overwrite bool) (UpsertResult, error) {
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
ON DUPLICATE KEY UPDATE
	target = VALUES(target),
	expires_at = VALUES(expires_at),
	password = VALUES(password)
`, link.Code, link.Target, createdAt, link.ExpiresAt, link.Password, link.ClickCount)
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
		return 0, classifyMySQLErr("upsert", err)
	}
	if result == Conflict {
		return Conflict, domain.NewConflictError(link.Code)
	}
	return result, nil
}

func (s *MySQLStore) Delete(ctx context.Context, code string) (bool, error) {
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
		return false, classifyMySQLErr("delete", err)
	}
	return deleted, nil
}

func (s *MySQLStore) ApplyClickDeltas(ctx context.Context, deltas map[string]uint64) error {
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
		return classifyMySQLErr("apply_click_deltas", err)
	}
	return nil
}

func (s *MySQLStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.retry.Execute(ctx, "get_stats", func() error {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links`).Scan(&stats.TotalLinks); err != nil {
			return err
		}
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links WHERE expires_at IS NULL OR expires_at > NOW()`).Scan(&stats.ActiveLinks); err != nil {
			return err
		}
		return s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(click_count), 0) FROM short_links`).Scan(&stats.TotalClicks)
	})
	if err != nil {
		return Stats{}, classifyMySQLErr("get_stats", err)
	}
	return stats, nil
}

func (s *MySQLStore) LoadConfig(ctx context.Context) ([]ConfigRow, error) {
	var rows []ConfigRow
	err := s.retry.Execute(ctx, "load_config", func() error {
		rows = nil
		r, qerr := s.db.QueryContext(ctx, `SELECT key_name, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at FROM runtime_config`)
		if qerr != nil {
			return qerr
		}
		defer r.Close()
		for r.Next() {
			var row ConfigRow
			if serr := r.Scan(&row.Key, &row.Value, &row.ValueType, &row.DefaultValue, &row.RequiresRestart, &row.IsSensitive, &row.Category, &row.UpdatedAt); serr != nil {
				return serr
			}
			rows = append(rows, row)
		}
		return r.Err()
	})
	if err != nil {
		return nil, classifyMySQLErr("load_config", err)
	}
	return rows, nil
}

func (s *MySQLStore) SetConfig(ctx context.Context, newRow ConfigRow, oldValue, changedBy string) error {
	err := s.retry.Execute(ctx, "set_config", func() error {
		tx, terr := s.db.BeginTx(ctx, nil)
		if terr != nil {
			return terr
		}
		defer tx.Rollback()

		now := time.Now()
		_, xerr := tx.ExecContext(ctx, `
INSERT INTO runtime_config (key_name, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)
`, newRow.Key, newRow.Value, newRow.ValueType, newRow.DefaultValue, newRow.RequiresRestart, newRow.IsSensitive, newRow.Category, now)
		if xerr != nil {
			return xerr
		}

		_, herr := tx.ExecContext(ctx, `
INSERT INTO runtime_config_history (id, key_name, old_value, new_value, changed_at, changed_by)
VALUES (?, ?, ?, ?, ?, ?)
`, uuid.NewString(), newRow.Key, oldValue, newRow.Value, now, changedBy)
		if herr != nil {
			return herr
		}

		return tx.Commit()
	})
	if err != nil {
		return classifyMySQLErr("set_config", err)
	}
	return nil
}

func (s *MySQLStore) SeedDefaults(ctx context.Context, defaults []ConfigRow) error {
	return s.retry.Execute(ctx, "seed_defaults", func() error {
		tx, terr := s.db.BeginTx(ctx, nil)
		if terr != nil {
			return terr
		}
		defer tx.Rollback()

		now := time.Now()
		for _, row := range defaults {
			if _, xerr := tx.ExecContext(ctx, `
INSERT IGNORE INTO runtime_config (key_name, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, row.Key, row.Value, row.ValueType, row.DefaultValue, row.RequiresRestart, row.IsSensitive, row.Category, now); xerr != nil {
				return xerr
			}
		}
		return tx.Commit()
	})
}

func (s *MySQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func scanMySQLRow(s rowScanner) (*domain.ShortLink, error) {
	var l domain.ShortLink
	var expiresAt sql.NullTime
	if err := s.Scan(&l.Code, &l.Target, &l.CreatedAt, &expiresAt, &l.Password, &l.ClickCount); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		l.ExpiresAt = &expiresAt.Time
	}
	return &l, nil
}

func classifyMySQLErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewStoreFatalError(op, err)
}
