// Package store defines the backend-independent persistence contract for
// short links and runtime configuration rows, and the concrete backends
// (SQLite, PostgreSQL, MySQL-family) that implement it.
package store

import (
	"context"
	"time"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

// UpsertResult reports which branch an Upsert call took.
type UpsertResult int

const (
	Created UpsertResult = iota
	Updated
	Conflict
)

// ListFilter narrows a paginated link listing.
type ListFilter struct {
	Query           string // substring match against code or target
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
	ActiveOnly      bool
	ExpiredOnly     bool
}

// Stats summarizes the link table for the health surface.
type Stats struct {
	TotalLinks  uint64
	ActiveLinks uint64
	TotalClicks uint64
}

// ConfigRow is the persisted representation of a RuntimeConfigEntry.
type ConfigRow struct {
	Key             string
	Value           string
	ValueType       string
	DefaultValue    string
	RequiresRestart bool
	IsSensitive     bool
	Category        string
	UpdatedAt       time.Time
}

// ConfigHistoryRow is the persisted representation of a
// RuntimeConfigHistoryEntry.
type ConfigHistoryRow struct {
	ID        string
	Key       string
	OldValue  string
	NewValue  string
	ChangedAt time.Time
	ChangedBy string
}

// ConfigStore is the persistence contract consumed by the runtime config
// snapshot manager.
type ConfigStore interface {
	LoadConfig(ctx context.Context) ([]ConfigRow, error)
	// SetConfig writes newRow and appends a history row in a single
	// transaction. oldValue is the value observed before the write, used
	// only to populate the history row; SetConfig does not itself compare
	// it against the current row (the caller already validated ordering).
	SetConfig(ctx context.Context, newRow ConfigRow, oldValue, changedBy string) error
	// SeedDefaults inserts any row in defaults whose key is not already
	// present. Existing keys are left untouched. Idempotent.
	SeedDefaults(ctx context.Context, defaults []ConfigRow) error
}

// Store is the full persistence contract for short links plus the
// embedded ConfigStore for runtime configuration rows.
type Store interface {
	ConfigStore

	Get(ctx context.Context, code string) (*domain.ShortLink, error)
	BatchGet(ctx context.Context, codes []string) (map[string]*domain.ShortLink, error)
	LoadAllCodes(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (uint64, error)
	List(ctx context.Context, filter ListFilter, page, pageSize int) ([]*domain.ShortLink, int, error)
	Upsert(ctx context.Context, link *domain.ShortLink, overwrite bool) (UpsertResult, error)
	Delete(ctx context.Context, code string) (bool, error)
	ApplyClickDeltas(ctx context.Context, deltas map[string]uint64) error
	GetStats(ctx context.Context) (Stats, error)

	Health(ctx context.Context) error
	Close() error
}

// ClampPageSize enforces the [1, 100] page-size bound from the
// boundary-behavior rules; ClampPage applies the page>=1 floor.
func ClampPageSize(pageSize int) int {
	if pageSize < 1 {
		return 1
	}
	if pageSize > 100 {
		return 100
	}
	return pageSize
}

// ClampPage treats page=0 (and any non-positive value) as page 1.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
