package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

// postgresRetryableCodes lists the SQLSTATE codes treated as transient.
var postgresRetryableCodes = map[string]bool{
	"08006": true, // connection_failure
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

func isPostgresRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return postgresRetryableCodes[pgErr.Code]
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// PostgresStore persists links and runtime config in PostgreSQL over a
// pgxpool connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	retry  *RetryExecutor
}

// NewPostgresStore connects to PostgreSQL at dsn and returns a ready Store.
// Schema must already be applied via the goose migrations under
// internal/store/migrate/postgres.
func NewPostgresStore(ctx context.Context, dsn string, poolSize int32, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	if poolSize > 0 {
		cfg.MaxConns = poolSize
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	logger.Info("postgres store initialized", "max_conns", cfg.MaxConns)

	return &PostgresStore{
		pool:   pool,
		logger: logger,
		retry:  NewRetryExecutor(DefaultRetryConfig(), isPostgresRetryable, logger.With("backend", "postgres")),
	}, nil
}

func (s *PostgresStore) Get(ctx context.Context, code string) (*domain.ShortLink, error) {
	var link *domain.ShortLink
	err := s.retry.Execute(ctx, "get", func() error {
		row := s.pool.QueryRow(ctx, `SELECT code, target, created_at, expires_at, password, click_count FROM short_links WHERE code = $1`, code)
		l, scanErr := scanPgRow(row)
		if errors.Is(scanErr, pgx.ErrNoRows) {
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
		return nil, classifyPostgresErr("get", err)
	}
	return link, nil
}

func (s *PostgresStore) BatchGet(ctx context.Context, codes []string) (map[string]*domain.ShortLink, error) {
	result := make(map[string]*domain.ShortLink, len(codes))
	if len(codes) == 0 {
		return result, nil
	}
	err := s.retry.Execute(ctx, "batch_get", func() error {
		rows, qerr := s.pool.Query(ctx, `SELECT code, target, created_at, expires_at, password, click_count FROM short_links WHERE code = ANY($1)`, codes)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		for rows.Next() {
			l, serr := scanPgRow(rows)
			if serr != nil {
				return serr
			}
			result[l.Code] = l
		}
		return rows.Err()
	})
	if err != nil {
		return nil, classifyPostgresErr("batch_get", err)
	}
	return result, nil
}

func (s *PostgresStore) LoadAllCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.retry.Execute(ctx, "load_all_codes", func() error {
		codes = nil
		rows, qerr := s.pool.Query(ctx, `SELECT code FROM short_links`)
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
		return nil, classifyPostgresErr("load_all_codes", err)
	}
	return codes, nil
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.retry.Execute(ctx, "count", func() error {
		return s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM short_links`).Scan(&count)
	})
	if err != nil {
		return 0, classifyPostgresErr("count", err)
	}
	return count, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]*domain.ShortLink, int, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	now := time.Now()

	addArg := func(clause string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		idx := len(args)
		where = append(where, fmt.Sprintf(`(code ILIKE $%d OR target ILIKE $%d)`, idx, idx))
	}
	if filter.CreatedAfter != nil {
		addArg(`created_at >= $%d`, *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		addArg(`created_at <= $%d`, *filter.CreatedBefore)
	}
	if filter.ActiveOnly {
		addArg(`(expires_at IS NULL OR expires_at > $%d)`, now)
	}
	if filter.ExpiredOnly {
		addArg(`(expires_at IS NOT NULL AND expires_at <= $%d)`, now)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var links []*domain.ShortLink
	var total int
	err := s.retry.Execute(ctx, "list", func() error {
		links = nil
		if cerr := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM short_links %s`, whereClause), args...).Scan(&total); cerr != nil {
			return cerr
		}

		limitIdx := len(args) + 1
		offsetIdx := len(args) + 2
		pagedArgs := append(append([]interface{}{}, args...), pageSize, (page-1)*pageSize)
		rows, qerr := s.pool.Query(ctx, fmt.Sprintf(
			`SELECT code, target, created_at, expires_at, password, click_count FROM short_links %s ORDER BY created_at DESC, code ASC LIMIT $%d OFFSET $%d`,
			whereClause, limitIdx, offsetIdx), pagedArgs...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		for rows.Next() {
			l, serr := scanPgRow(rows)
			if serr != nil {
				return serr
			}
			links = append(links, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, classifyPostgresErr("list", err)
	}
	return links, total, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, link *domain.ShortLink, overwrite bool) (UpsertResult, error) {
	var result UpsertResult
	err := s.retry.Execute(ctx, "upsert", func() error {
		tx, terr := s.pool.Begin(ctx)
		if terr != nil {
			return terr
		}
		defer tx.Rollback(ctx)

		existing, gerr := scanPgRowOrNil(tx.QueryRow(ctx, `SELECT code, target, created_at, expires_at, password, click_count FROM short_links WHERE code = $1 FOR UPDATE`, link.Code))
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

		_, xerr := tx.Exec(ctx, `
INSERT INTO short_links (code, target, created_at, expires_at, password, click_count)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO UPDATE SET
	target = excluded.target,
	expires_at = excluded.expires_at,
	password = excluded.password
`, link.Code, link.Target, createdAt, link.ExpiresAt, link.Password, link.ClickCount)
		if xerr != nil {
			return xerr
		}

		if cerr := tx.Commit(ctx); cerr != nil {
			return cerr
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
		return 0, classifyPostgresErr("upsert", err)
	}
	if result == Conflict {
		return Conflict, domain.NewConflictError(link.Code)
	}
	return result, nil
}

func (s *PostgresStore) Delete(ctx context.Context, code string) (bool, error) {
	var deleted bool
	err := s.retry.Execute(ctx, "delete", func() error {
		tag, xerr := s.pool.Exec(ctx, `DELETE FROM short_links WHERE code = $1`, code)
		if xerr != nil {
			return xerr
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, classifyPostgresErr("delete", err)
	}
	return deleted, nil
}

func (s *PostgresStore) ApplyClickDeltas(ctx context.Context, deltas map[string]uint64) error {
	if len(deltas) == 0 {
		return nil
	}
	err := s.retry.Execute(ctx, "apply_click_deltas", func() error {
		tx, terr := s.pool.Begin(ctx)
		if terr != nil {
			return terr
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for code, delta := range deltas {
			batch.Queue(`UPDATE short_links SET click_count = click_count + $1 WHERE code = $2`, delta, code)
		}
		br := tx.SendBatch(ctx, batch)
		for range deltas {
			if _, berr := br.Exec(); berr != nil {
				br.Close()
				return berr
			}
		}
		if cerr := br.Close(); cerr != nil {
			return cerr
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return classifyPostgresErr("apply_click_deltas", err)
	}
	return nil
}

func (s *PostgresStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.retry.Execute(ctx, "get_stats", func() error {
		return s.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE expires_at IS NULL OR expires_at > now()),
       COALESCE(SUM(click_count), 0)
FROM short_links`).Scan(&stats.TotalLinks, &stats.ActiveLinks, &stats.TotalClicks)
	})
	if err != nil {
		return Stats{}, classifyPostgresErr("get_stats", err)
	}
	return stats, nil
}

func (s *PostgresStore) LoadConfig(ctx context.Context) ([]ConfigRow, error) {
	var rows []ConfigRow
	err := s.retry.Execute(ctx, "load_config", func() error {
		rows = nil
		r, qerr := s.pool.Query(ctx, `SELECT key, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at FROM runtime_config`)
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
		return nil, classifyPostgresErr("load_config", err)
	}
	return rows, nil
}

func (s *PostgresStore) SetConfig(ctx context.Context, newRow ConfigRow, oldValue, changedBy string) error {
	err := s.retry.Execute(ctx, "set_config", func() error {
		tx, terr := s.pool.Begin(ctx)
		if terr != nil {
			return terr
		}
		defer tx.Rollback(ctx)

		now := time.Now()
		_, xerr := tx.Exec(ctx, `
INSERT INTO runtime_config (key, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, newRow.Key, newRow.Value, newRow.ValueType, newRow.DefaultValue, newRow.RequiresRestart, newRow.IsSensitive, newRow.Category, now)
		if xerr != nil {
			return xerr
		}

		_, herr := tx.Exec(ctx, `
INSERT INTO runtime_config_history (id, key, old_value, new_value, changed_at, changed_by)
VALUES ($1, $2, $3, $4, $5, $6)
`, uuid.NewString(), newRow.Key, oldValue, newRow.Value, now, changedBy)
		if herr != nil {
			return herr
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return classifyPostgresErr("set_config", err)
	}
	return nil
}

func (s *PostgresStore) SeedDefaults(ctx context.Context, defaults []ConfigRow) error {
	return s.retry.Execute(ctx, "seed_defaults", func() error {
		tx, terr := s.pool.Begin(ctx)
		if terr != nil {
			return terr
		}
		defer tx.Rollback(ctx)

		now := time.Now()
		for _, row := range defaults {
			if _, xerr := tx.Exec(ctx, `
INSERT INTO runtime_config (key, value, value_type, default_value, requires_restart, is_sensitive, category, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (key) DO NOTHING
`, row.Key, row.Value, row.ValueType, row.DefaultValue, row.RequiresRestart, row.IsSensitive, row.Category, now); xerr != nil {
				return xerr
			}
		}
		return tx.Commit(ctx)
	})
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPgRow(row pgRowScanner) (*domain.ShortLink, error) {
	var l domain.ShortLink
	var expiresAt *time.Time
	if err := row.Scan(&l.Code, &l.Target, &l.CreatedAt, &expiresAt, &l.Password, &l.ClickCount); err != nil {
		return nil, err
	}
	l.ExpiresAt = expiresAt
	return &l, nil
}

func scanPgRowOrNil(row pgRowScanner) (*domain.ShortLink, error) {
	l, err := scanPgRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func classifyPostgresErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewStoreFatalError(op, err)
}
