// Package runtimeconfig implements the atomically-swappable runtime
// configuration snapshot: schema registry, in-memory snapshot manager,
// and sensitive-value masking for admin exports.
package runtimeconfig

// ValueType is the declared interpretation of a config value's string
// representation.
type ValueType string

const (
	TypeBool        ValueType = "bool"
	TypeInteger     ValueType = "integer"
	TypeFloat       ValueType = "float"
	TypeString      ValueType = "string"
	TypeEnum        ValueType = "enum"
	TypeStringArray ValueType = "string_array"
	TypeEnumArray   ValueType = "enum_array"
	TypeJSON        ValueType = "json"
)

// KeySchema declares a single runtime-configurable key.
type KeySchema struct {
	Key             string
	Type            ValueType
	Default         string
	IsSensitive     bool
	RequiresRestart bool
	Category        string
	// EnumValues constrains Type == TypeEnum / TypeEnumArray.
	EnumValues []string
}

// Schema is the ordered set of every declared key. The Store persists rows
// under the same key names; SeedDefaults uses Default to populate any row
// absent on first startup.
var Schema = []KeySchema{
	{Key: "admin_prefix", Type: TypeString, Default: "admin", Category: "routing"},
	{Key: "health_prefix", Type: TypeString, Default: "healthz", Category: "routing"},
	{Key: "frontend_prefix", Type: TypeString, Default: "app", Category: "routing"},
	{Key: "features.default_url", Type: TypeString, Default: "https://example.com", Category: "features"},
	{Key: "utm.enable_passthrough", Type: TypeBool, Default: "true", Category: "features"},
	{Key: "click.enable_tracking", Type: TypeBool, Default: "true", Category: "click"},
	{Key: "click.max_clicks_before_flush", Type: TypeInteger, Default: "1000", Category: "click"},
	{Key: "click.flush_interval_seconds", Type: TypeInteger, Default: "60", Category: "click"},
	{Key: "cache.object_ttl_seconds", Type: TypeInteger, Default: "300", Category: "cache"},
	{Key: "cache.negative_ttl_seconds", Type: TypeInteger, Default: "30", Category: "cache"},
	{Key: "cache.object_capacity", Type: TypeInteger, Default: "10000", Category: "cache"},
	{Key: "cache.redis.enabled", Type: TypeBool, Default: "false", Category: "cache"},
	{Key: "cache.redis.addr", Type: TypeString, Default: "", Category: "cache"},
	{Key: "admin.auth_token", Type: TypeString, Default: "", IsSensitive: true, Category: "admin"},
	{Key: "database.retry_count", Type: TypeInteger, Default: "3", Category: "database", RequiresRestart: true},
	{Key: "database.retry_base_delay_ms", Type: TypeInteger, Default: "100", Category: "database", RequiresRestart: true},
	{Key: "database.retry_max_delay_ms", Type: TypeInteger, Default: "5000", Category: "database", RequiresRestart: true},
	{Key: "database.pool_size", Type: TypeInteger, Default: "20", Category: "database", RequiresRestart: true},
	{Key: "reload.data_interval_seconds", Type: TypeInteger, Default: "0", Category: "reload"},
}

// Lookup finds a key's schema entry, or reports ok=false.
func Lookup(key string) (KeySchema, bool) {
	for _, s := range Schema {
		if s.Key == key {
			return s, true
		}
	}
	return KeySchema{}, false
}
