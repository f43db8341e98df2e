package runtimeconfig

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shortlinkd/shortlinkd/internal/domain"
	"github.com/shortlinkd/shortlinkd/internal/store"
)

// Entry is the in-memory representation of a single config row, mirroring
// store.ConfigRow but decoupled from the persistence package.
type Entry struct {
	Key             string
	Value           string
	ValueType       ValueType
	DefaultValue    string
	RequiresRestart bool
	IsSensitive     bool
	Category        string
	UpdatedAt       time.Time
}

// Snapshot is an immutable point-in-time view of every config entry, keyed
// by name. Callers never mutate a Snapshot in place; Manager.Set builds a
// new one and swaps it in atomically.
type Snapshot struct {
	Entries map[string]Entry
}

// Get returns the entry for key and whether it was present.
func (s *Snapshot) Get(key string) (Entry, bool) {
	e, ok := s.Entries[key]
	return e, ok
}

// Manager holds the current Snapshot behind an atomic.Pointer so readers
// never block on a writer and never observe a torn update.
type Manager struct {
	store   store.ConfigStore
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
}

// NewManager constructs a Manager. Call Load before first use.
func NewManager(cs store.ConfigStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{store: cs, logger: logger}
	m.current.Store(&Snapshot{Entries: map[string]Entry{}})
	return m
}

// Load seeds any missing keys from Schema defaults, then reads every row
// from the store and publishes the resulting Snapshot. It is safe to call
// repeatedly (e.g. on a Config reload).
func (m *Manager) Load(ctx context.Context) error {
	defaults := make([]store.ConfigRow, 0, len(Schema))
	for _, s := range Schema {
		defaults = append(defaults, store.ConfigRow{
			Key:             s.Key,
			Value:           s.Default,
			ValueType:       string(s.Type),
			DefaultValue:    s.Default,
			RequiresRestart: s.RequiresRestart,
			IsSensitive:     s.IsSensitive,
			Category:        s.Category,
		})
	}
	if err := m.store.SeedDefaults(ctx, defaults); err != nil {
		return fmt.Errorf("runtimeconfig: seed defaults: %w", err)
	}

	rows, err := m.store.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("runtimeconfig: load: %w", err)
	}

	entries := make(map[string]Entry, len(rows))
	for _, r := range rows {
		entries[r.Key] = Entry{
			Key:             r.Key,
			Value:           r.Value,
			ValueType:       ValueType(r.ValueType),
			DefaultValue:    r.DefaultValue,
			RequiresRestart: r.RequiresRestart,
			IsSensitive:     r.IsSensitive,
			Category:        r.Category,
			UpdatedAt:       r.UpdatedAt,
		}
	}
	m.current.Store(&Snapshot{Entries: entries})
	m.logger.Info("runtime config snapshot loaded", "keys", len(entries))
	return nil
}

// Current returns the live Snapshot. The returned pointer is never mutated
// after publication; callers may retain it safely.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// String returns the current string value for key, or def if key is
// absent.
func (m *Manager) String(key, def string) string {
	if e, ok := m.Current().Get(key); ok {
		return e.Value
	}
	return def
}

// Bool returns the current bool value for key, or def if key is absent or
// unparseable.
func (m *Manager) Bool(key string, def bool) bool {
	e, ok := m.Current().Get(key)
	if !ok {
		return def
	}
	switch e.Value {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

// Set validates newValue against key's schema, persists it (with a history
// row), and reloads the snapshot so readers observe the change.
// changedBy identifies the admin actor for the audit trail.
func (m *Manager) Set(ctx context.Context, key, newValue, changedBy string) error {
	schema, ok := Lookup(key)
	if !ok {
		return domain.NewConfigValidationError(key, fmt.Sprintf("unknown config key %q", key))
	}
	if err := validateValue(schema, newValue); err != nil {
		return err
	}

	current, _ := m.Current().Get(key)

	row := store.ConfigRow{
		Key:             key,
		Value:           newValue,
		ValueType:       string(schema.Type),
		DefaultValue:    schema.Default,
		RequiresRestart: schema.RequiresRestart,
		IsSensitive:     schema.IsSensitive,
		Category:        schema.Category,
	}
	if err := m.store.SetConfig(ctx, row, current.Value, changedBy); err != nil {
		return err
	}
	return m.Load(ctx)
}
