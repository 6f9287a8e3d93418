package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sormlabs/sorm/cache"
)

const precedenceToml = `
DB_PATH = "/file/sorm.sqlite"
ENDPOINT = "0.0.0.0:9000"
CACHE_TYPE = "readonly"
CACHE_SIZE = 500
`

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sorm.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigPathPrecedence(t *testing.T) {
	var cfg Config

	cmd := &cobra.Command{}
	require.NoError(t, cfg.AddFlags(cmd))
	require.NoError(t, cmd.ParseFlags([]string{
		"--config-path", writeConfigFile(t, precedenceToml),
		"--endpoint", "localhost:7000",
	}))

	require.NoError(t, cfg.SetValues(func(key string) (string, bool) {
		switch key {
		case "ENDPOINT":
			return "env:1", true
		case "CACHE_SIZE":
			return "10", true
		default:
			return "", false
		}
	}))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/file/sorm.sqlite", cfg.SQLiteDBPath, "should read values from the config path file")
	assert.Equal(t, cache.TypeReadOnly, cfg.CacheType, "should read values from the config path file")
	assert.Equal(t, "localhost:7000", cfg.Endpoint, "cli flags should override --config-path values and env vars")
	assert.Equal(t, uint(10), cfg.CacheSize, "env var should override config file")
	assert.Equal(t, uint(3), cfg.DBOpenRetries, "default value should be used, if not set anywhere else")
}

func TestConfigLoadDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.loadDefaults())

	assert.Equal(t, defaultHTTPEndpoint, cfg.Endpoint)
	assert.Equal(t, defaultDBPath, cfg.SQLiteDBPath)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, cache.TypeReadWrite, cfg.CacheType)
	assert.Empty(t, cfg.AdminEndpoint)
	assert.Nil(t, cfg.Tables)
}

func TestConfigLoadFlagsDefaultValuesOverrideExisting(t *testing.T) {
	// Set up a config with an existing non-default value
	cfg := Config{
		SQLiteDBPath: "existing.sqlite",
		LogLevel:     logrus.InfoLevel,
		Endpoint:     "localhost:8000",
	}

	cmd := &cobra.Command{}
	require.NoError(t, cfg.AddFlags(cmd))
	require.NoError(t, cmd.ParseFlags([]string{
		"--db-path", "",
		"--log-level", logrus.PanicLevel.String(),
		"--cache-expire", "90s",
		"--cache-enabled=false",
	}))

	require.NoError(t, cfg.loadFlags())

	assert.Equal(t, "", cfg.SQLiteDBPath)
	assert.Equal(t, logrus.PanicLevel, cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.CacheExpire)
	assert.False(t, cfg.CacheEnabled)

	// Check it didn't overwrite values which were not set in the flags
	assert.Equal(t, "localhost:8000", cfg.Endpoint)
}

func TestConfigEnvParsing(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.SetValues(func(key string) (string, bool) {
		switch key {
		case "LOG_FORMAT":
			return "json", true
		case "CACHE_EVICT_ON_TRANSACTION_END":
			return "true", true
		case "CACHE_EXPIRE":
			return "1m", true
		default:
			return "", false
		}
	}))
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.True(t, cfg.CacheEvictOnTransactionEnd)
	assert.Equal(t, time.Minute, cfg.CacheExpire)

	err := cfg.SetValues(func(key string) (string, bool) {
		if key == "CACHE_SIZE" {
			return "-1", true
		}
		return "", false
	})
	require.ErrorContains(t, err, "could not parse cache-size")
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.loadDefaults())
	cfg.CacheType = "lru"
	cfg.Tables = []TableConfig{
		{Name: "accounts", Columns: []string{"id"}, PrimaryKey: []string{"id"}},
		{Name: "accounts", Columns: []string{"id"}, PrimaryKey: []string{"id"}},
		{Columns: []string{"id"}},
		{Name: "ledger", CacheExpire: "soon"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, `invalid config value for cache-type: unknown cache type "lru"`)
	assert.ErrorContains(t, err, "table accounts is declared twice")
	assert.ErrorContains(t, err, "table 2 has no NAME")
	assert.ErrorContains(t, err, "table ledger: invalid CACHE_EXPIRE")
}

func TestTableCacheOverrides(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.loadDefaults())
	cfg.CacheSize = 100
	cfg.CacheEvictOnTransactionEnd = true

	disabled := false
	size := uint(5)
	got, err := cfg.TableCache(TableConfig{
		Name:         "audit",
		CacheEnabled: &disabled,
		CacheType:    cache.TypeReadOnly,
		CacheSize:    &size,
		CacheExpire:  "30s",
	})
	require.NoError(t, err)
	assert.Equal(t, cache.Config{
		Enabled:               false,
		Type:                  cache.TypeReadOnly,
		Size:                  5,
		Expire:                30 * time.Second,
		EvictOnTransactionEnd: true,
	}, got)

	got, err = cfg.TableCache(TableConfig{Name: "accounts"})
	require.NoError(t, err)
	assert.Equal(t, cache.Config{
		Enabled:               true,
		Type:                  cache.TypeReadWrite,
		Size:                  100,
		EvictOnTransactionEnd: true,
	}, got)
}
