package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"

	"github.com/sormlabs/sorm/cache"
)

const (
	defaultHTTPEndpoint = "localhost:8000"
	defaultDBPath       = "sorm.sqlite"
)

func (cfg *Config) options() []*Option {
	if cfg.optionsCache != nil {
		return cfg.optionsCache
	}
	cfg.optionsCache = []*Option{
		{
			Name:      "config-path",
			EnvVar:    "SORM_CONFIG_PATH",
			TomlKey:   "-",
			Usage:     "File path to the toml configuration file",
			ConfigKey: &cfg.ConfigPath,
		},
		{
			Name:         "config-strict",
			EnvVar:       "SORM_CONFIG_STRICT",
			TomlKey:      "STRICT",
			Usage:        "Enable strict toml configuration file parsing. This will prevent unknown fields in the config toml from being parsed.",
			ConfigKey:    &cfg.Strict,
			DefaultValue: false,
		},
		{
			Name:         "db-path",
			EnvVar:       "DB_PATH",
			Usage:        "SQLite DB path",
			ConfigKey:    &cfg.SQLiteDBPath,
			DefaultValue: defaultDBPath,
		},
		{
			Name:      "migrations-dir",
			EnvVar:    "MIGRATIONS_DIR",
			Usage:     "Directory of sql-migrate migrations applied at startup. Empty skips migrations.",
			ConfigKey: &cfg.MigrationsDir,
		},
		{
			Name:         "db-open-retries",
			EnvVar:       "DB_OPEN_RETRIES",
			Usage:        "How often to retry reaching the database before giving up",
			ConfigKey:    &cfg.DBOpenRetries,
			DefaultValue: uint(3),
		},
		{
			Name:         "endpoint",
			EnvVar:       "ENDPOINT",
			Usage:        "Endpoint to listen and serve on",
			ConfigKey:    &cfg.Endpoint,
			DefaultValue: defaultHTTPEndpoint,
		},
		{
			Name:      "admin-endpoint",
			EnvVar:    "ADMIN_ENDPOINT",
			Usage:     "Admin endpoint to listen and serve on. WARNING: this should not be accessible from the Internet and does not use TLS. \"\" (default) disables the admin server",
			ConfigKey: &cfg.AdminEndpoint,
		},
		{
			Name:         "log-level",
			EnvVar:       "LOG_LEVEL",
			Usage:        "minimum log severity (debug, info, warn, error) to log",
			ConfigKey:    &cfg.LogLevel,
			DefaultValue: logrus.InfoLevel,
		},
		{
			Name:         "log-format",
			EnvVar:       "LOG_FORMAT",
			Usage:        "format used for output logs (json or text)",
			ConfigKey:    &cfg.LogFormat,
			DefaultValue: LogFormatText,
		},
		{
			Name:         "cache-enabled",
			EnvVar:       "CACHE_ENABLED",
			Usage:        "cache the rows of every table unless the table declaration says otherwise",
			ConfigKey:    &cfg.CacheEnabled,
			DefaultValue: true,
		},
		{
			Name:         "cache-type",
			EnvVar:       "CACHE_TYPE",
			Usage:        "default table cache type, readonly caches observe writes after the database executed them while readwrite caches hold writes until the transaction commits",
			ConfigKey:    &cfg.CacheType,
			DefaultValue: cache.TypeReadWrite,
			Validate: func(option *Option) error {
				return validateCacheType(*option.ConfigKey.(*string))
			},
		},
		{
			Name:         "cache-size",
			EnvVar:       "CACHE_SIZE",
			Usage:        "maximum committed rows kept per table cache, 0 is unbounded",
			ConfigKey:    &cfg.CacheSize,
			DefaultValue: uint(0),
		},
		{
			Name:         "cache-expire",
			EnvVar:       "CACHE_EXPIRE",
			Usage:        "age after which a committed cache row is dropped on read, 0 never expires",
			ConfigKey:    &cfg.CacheExpire,
			DefaultValue: time.Duration(0),
		},
		{
			Name:         "cache-evict-on-transaction-end",
			EnvVar:       "CACHE_EVICT_ON_TRANSACTION_END",
			Usage:        "drop every committed cache row when a transaction commits or rolls back",
			ConfigKey:    &cfg.CacheEvictOnTransactionEnd,
			DefaultValue: false,
		},
		{
			TomlKey:   "TABLES",
			Usage:     "tables served by sorm, each with a NAME, COLUMNS, PRIMARY_KEY and optional CACHE_ENABLED, CACHE_TYPE, CACHE_SIZE and CACHE_EXPIRE overrides",
			ConfigKey: &cfg.Tables,
			CustomSetValue: func(option *Option, i interface{}) error {
				return setTables(option.ConfigKey.(*[]TableConfig), i)
			},
			MarshalTOML: func(option *Option) (interface{}, error) {
				return marshalTables(*option.ConfigKey.(*[]TableConfig))
			},
		},
	}
	return cfg.optionsCache
}

func validateCacheType(t string) error {
	switch t {
	case cache.TypeReadOnly, cache.TypeReadWrite:
		return nil
	default:
		return fmt.Errorf("unknown cache type %q, expected %s or %s", t, cache.TypeReadOnly, cache.TypeReadWrite)
	}
}

func setTables(target *[]TableConfig, i interface{}) error {
	switch v := i.(type) {
	case nil:
		*target = nil
	case []TableConfig:
		*target = v
	case []*toml.Tree:
		tables := make([]TableConfig, 0, len(v))
		for n, tree := range v {
			var table TableConfig
			if err := tree.Unmarshal(&table); err != nil {
				return fmt.Errorf("could not parse table %d: %w", n, err)
			}
			tables = append(tables, table)
		}
		*target = tables
	default:
		return fmt.Errorf("TABLES must be an array of tables, got %T", i)
	}
	return nil
}

func marshalTables(tables []TableConfig) (interface{}, error) {
	trees := make([]*toml.Tree, 0, len(tables))
	for _, table := range tables {
		tree, err := toml.TreeFromMap(table.toMap())
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return trees, nil
}
