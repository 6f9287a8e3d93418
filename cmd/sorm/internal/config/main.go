package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/sormlabs/sorm/cache"
)

// Config contains configuration values for sorm.
type Config struct {
	ConfigPath string
	Strict     bool

	SQLiteDBPath  string
	MigrationsDir string
	DBOpenRetries uint

	Endpoint      string
	AdminEndpoint string

	LogLevel  logrus.Level
	LogFormat LogFormat

	CacheEnabled               bool
	CacheType                  string
	CacheSize                  uint
	CacheExpire                time.Duration
	CacheEvictOnTransactionEnd bool

	Tables []TableConfig

	optionsCache []*Option
	flagset      *pflag.FlagSet
}

// TableConfig declares a table served by sorm. Unset cache fields fall back
// to the global cache options.
type TableConfig struct {
	Name         string   `toml:"NAME"`
	Columns      []string `toml:"COLUMNS"`
	PrimaryKey   []string `toml:"PRIMARY_KEY"`
	CacheEnabled *bool    `toml:"CACHE_ENABLED"`
	CacheType    string   `toml:"CACHE_TYPE"`
	CacheSize    *uint    `toml:"CACHE_SIZE"`
	CacheExpire  string   `toml:"CACHE_EXPIRE"`
}

func (t TableConfig) toMap() map[string]interface{} {
	m := map[string]interface{}{
		"NAME":        t.Name,
		"COLUMNS":     stringsToInterfaces(t.Columns),
		"PRIMARY_KEY": stringsToInterfaces(t.PrimaryKey),
	}
	if t.CacheEnabled != nil {
		m["CACHE_ENABLED"] = *t.CacheEnabled
	}
	if t.CacheType != "" {
		m["CACHE_TYPE"] = t.CacheType
	}
	if t.CacheSize != nil {
		m["CACHE_SIZE"] = int64(*t.CacheSize)
	}
	if t.CacheExpire != "" {
		m["CACHE_EXPIRE"] = t.CacheExpire
	}
	return m
}

func stringsToInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func (cfg *Config) SetValues(lookupEnv func(string) (string, bool)) error {
	// We start with the defaults
	if err := cfg.loadDefaults(); err != nil {
		return err
	}

	// Then we load from the environment variables
	if err := cfg.loadEnv(lookupEnv); err != nil {
		return err
	}

	// Then we load from the cli flags
	if err := cfg.loadFlags(); err != nil {
		return err
	}

	// If we specified a config file, we load that
	if cfg.ConfigPath != "" {
		// Merge in the config file flags
		if err := cfg.loadConfigPath(); err != nil {
			return err
		}

		// Load from cli flags and environment variables again, to overwrite what we
		// got from the config file
		if err := cfg.loadEnv(lookupEnv); err != nil {
			return err
		}
		if err := cfg.loadFlags(); err != nil {
			return err
		}
	}

	return nil
}

// loadDefaults populates the config with default values
func (cfg *Config) loadDefaults() error {
	for _, option := range cfg.options() {
		if option.DefaultValue != nil {
			if err := option.setValue(option.DefaultValue); err != nil {
				return err
			}
			continue
		}
		if err := option.zeroValue(); err != nil {
			return fmt.Errorf("option %s: %w", option.displayName(), err)
		}
	}
	return nil
}

// loadEnv populates the config with values from the environment variables
func (cfg *Config) loadEnv(lookupEnv func(string) (string, bool)) error {
	for _, option := range cfg.options() {
		if option.EnvVar == "" {
			continue
		}
		value, ok := lookupEnv(option.EnvVar)
		if !ok {
			continue
		}
		if err := option.setValue(value); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *Config) loadConfigPath() error {
	file, err := os.Open(cfg.ConfigPath)
	if err != nil {
		return err
	}
	defer file.Close()
	return parseToml(file, cfg.Strict, cfg)
}

func (cfg *Config) Validate() error {
	var errs []error
	for _, option := range cfg.options() {
		if option.Validate != nil {
			if err := option.Validate(option); err != nil {
				errs = append(errs, fmt.Errorf("invalid config value for %s: %w", option.displayName(), err))
			}
		}
	}
	seen := map[string]bool{}
	for i, table := range cfg.Tables {
		if table.Name == "" {
			errs = append(errs, fmt.Errorf("table %d has no NAME", i))
			continue
		}
		if seen[table.Name] {
			errs = append(errs, fmt.Errorf("table %s is declared twice", table.Name))
		}
		seen[table.Name] = true
		if _, err := cfg.TableCache(table); err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", table.Name, err))
		}
	}
	return errors.Join(errs...)
}

// TableCache resolves the cache config of table against the global cache
// options.
func (cfg *Config) TableCache(table TableConfig) (cache.Config, error) {
	out := cache.Config{
		Enabled:               cfg.CacheEnabled,
		Type:                  cfg.CacheType,
		Size:                  int(cfg.CacheSize),
		Expire:                cfg.CacheExpire,
		EvictOnTransactionEnd: cfg.CacheEvictOnTransactionEnd,
	}
	if table.CacheEnabled != nil {
		out.Enabled = *table.CacheEnabled
	}
	if table.CacheType != "" {
		if err := validateCacheType(table.CacheType); err != nil {
			return cache.Config{}, err
		}
		out.Type = table.CacheType
	}
	if table.CacheSize != nil {
		out.Size = int(*table.CacheSize)
	}
	if table.CacheExpire != "" {
		expire, err := time.ParseDuration(table.CacheExpire)
		if err != nil {
			return cache.Config{}, fmt.Errorf("invalid CACHE_EXPIRE: %w", err)
		}
		out.Expire = expire
	}
	return out, nil
}
