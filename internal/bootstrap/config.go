// Package bootstrap loads the process-level configuration that must be
// known before the Store exists: DSN, listen address, admin routing
// prefixes, and logging. This is distinct from runtimeconfig, whose rows
// live in the Store and can change without a restart.
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shortlinkd/shortlinkd/pkg/logger"
)

// Config is the full process bootstrap surface.
type Config struct {
	DatabaseDSN     string        `mapstructure:"database_dsn"`
	DatabasePool    int           `mapstructure:"database_pool_size"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	AdminPrefix     string        `mapstructure:"admin_prefix"`
	HealthPrefix    string        `mapstructure:"health_prefix"`
	FrontendPrefix  string        `mapstructure:"frontend_prefix"`
	AdminAuthToken  string        `mapstructure:"admin_auth_token"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Log             logger.Config `mapstructure:"log"`
}

// Load reads configuration from SHORTLINKD_* environment variables and,
// if configPath is non-empty, an optional YAML file, validating the
// result once. It never re-reads after this call.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHORTLINKD")
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("bootstrap: read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("bootstrap: unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_dsn", "sqlite:///var/lib/shortlinkd/shortlinkd.db")
	v.SetDefault("database_pool_size", 20)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("admin_prefix", "/admin")
	v.SetDefault("health_prefix", "/healthz")
	v.SetDefault("frontend_prefix", "/app")
	v.SetDefault("admin_auth_token", "")
	v.SetDefault("shutdown_timeout", "15s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

func (c Config) validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("bootstrap: database_dsn is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("bootstrap: listen_addr is required")
	}
	if !strings.HasPrefix(c.AdminPrefix, "/") {
		return fmt.Errorf("bootstrap: admin_prefix must start with /")
	}
	if !strings.HasPrefix(c.HealthPrefix, "/") {
		return fmt.Errorf("bootstrap: health_prefix must start with /")
	}
	return nil
}
