//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlinkd/shortlinkd/internal/domain"
	"github.com/shortlinkd/shortlinkd/internal/store/migrate"
)

// newTestMySQLStore requires a reachable MySQL-family server whose DSN is
// given via TEST_MYSQL_DSN (go-sql-driver/mysql format, e.g.
// "shortlinkd:shortlinkd@tcp(127.0.0.1:3306)/shortlinkd?parseTime=true").
// No testcontainers MySQL module is vendored, so this backend is exercised
// against whatever instance CI points it at rather than a throwaway
// container.
func newTestMySQLStore(t *testing.T) *MySQLStore {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set, skipping MySQL store tests")
	}
	ctx := context.Background()

	require.NoError(t, migrate.Up(ctx, "mysql://"+dsn, nil))

	s, err := NewMySQLStore(ctx, dsn, 4, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), "DELETE FROM short_links")
		_, _ = s.db.ExecContext(context.Background(), "DELETE FROM runtime_config_history")
		_, _ = s.db.ExecContext(context.Background(), "DELETE FROM runtime_config")
		_ = s.Close()
	})
	return s
}

func TestMySQLStore_UpsertGetDelete(t *testing.T) {
	s := newTestMySQLStore(t)
	ctx := context.Background()

	link := &domain.ShortLink{Code: "abc", Target: "https://example.com"}
	result, err := s.Upsert(ctx, link, false)
	require.NoError(t, err)
	assert.Equal(t, Created, result)

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://example.com", got.Target)

	deleted, err := s.Delete(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestMySQLStore_UpsertConflictWithoutOverwrite(t *testing.T) {
	s := newTestMySQLStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &domain.ShortLink{Code: "abc", Target: "https://example.com"}, false)
	require.NoError(t, err)

	result, err := s.Upsert(ctx, &domain.ShortLink{Code: "abc", Target: "https://example.com/other"}, false)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, Conflict, result)
}

func TestMySQLStore_ApplyClickDeltasAndStats(t *testing.T) {
	s := newTestMySQLStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &domain.ShortLink{Code: "abc", Target: "https://example.com"}, false)
	require.NoError(t, err)
	require.NoError(t, s.ApplyClickDeltas(ctx, map[string]uint64{"abc": 4}))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.ClickCount)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalLinks)
	assert.Equal(t, uint64(4), stats.TotalClicks)
}

func TestMySQLStore_ConfigRoundTrip(t *testing.T) {
	s := newTestMySQLStore(t)
	ctx := context.Background()

	defaults := []ConfigRow{
		{Key: "click.enable_tracking", Value: "true", ValueType: "bool", DefaultValue: "true", Category: "click"},
	}
	require.NoError(t, s.SeedDefaults(ctx, defaults))

	require.NoError(t, s.SetConfig(ctx, ConfigRow{
		Key: "click.enable_tracking", Value: "false", ValueType: "bool", DefaultValue: "true", Category: "click",
	}, "true", "tester"))

	rows, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "false", rows[0].Value)
}

func TestMySQLStore_Health(t *testing.T) {
	s := newTestMySQLStore(t)
	assert.NoError(t, s.Health(context.Background()))
}
