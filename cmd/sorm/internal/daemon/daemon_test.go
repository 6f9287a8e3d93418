package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sormlabs/sorm/cache"
	"github.com/sormlabs/sorm/cmd/sorm/internal/config"
	"github.com/sormlabs/sorm/cmd/sorm/internal/methods"
	"github.com/sormlabs/sorm/orm"
	"github.com/sormlabs/sorm/protocol"
)

const accountsMigration = `-- +migrate Up
CREATE TABLE accounts (
	id INTEGER NOT NULL PRIMARY KEY,
	owner TEXT NOT NULL,
	balance INTEGER NOT NULL DEFAULT 0
);

-- +migrate Down
DROP TABLE accounts;
`

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	migrations := filepath.Join(dir, "migrations")
	require.NoError(t, os.Mkdir(migrations, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(migrations, "1_accounts.sql"), []byte(accountsMigration), 0o600))

	values := map[string]string{
		"DB_PATH":        filepath.Join(dir, "sorm.sqlite"),
		"MIGRATIONS_DIR": migrations,
		"ENDPOINT":       "localhost:0",
		"ADMIN_ENDPOINT": "localhost:0",
	}
	for k, v := range env {
		values[k] = v
	}
	cfg := &config.Config{}
	require.NoError(t, cfg.SetValues(func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}))
	cfg.Tables = []config.TableConfig{{
		Name:       "accounts",
		Columns:    []string{"id", "owner", "balance"},
		PrimaryKey: []string{"id"},
	}}
	require.NoError(t, cfg.Validate())
	return cfg
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func TestTableSetRoundTrip(t *testing.T) {
	cfg := testConfig(t, nil)
	db, err := OpenDB(context.Background(), cfg, testLogger(), nil)
	require.NoError(t, err)
	defer db.Close()

	ts, err := newTableSet(db, cfg)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, []string{"accounts"}, ts.Names())
	assert.False(t, ts.InTransaction())

	n, err := ts.Write(ctx, cache.OpInsert, "accounts", orm.Record{"id": int64(1), "owner": "alice", "balance": int64(10)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	row, found, err := ts.Select(ctx, "accounts", []any{int64(1)})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice", row["owner"])
	assert.EqualValues(t, 10, row["balance"])

	_, err = ts.Write(ctx, cache.OpSave, "accounts", orm.Record{"id": int64(1), "owner": "bob", "balance": int64(3)})
	require.NoError(t, err)
	row, found, err = ts.Select(ctx, "accounts", []any{int64(1)})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bob", row["owner"])

	_, err = ts.Write(ctx, cache.OpDelete, "accounts", orm.Record{"id": int64(1)})
	require.NoError(t, err)
	_, found, err = ts.Select(ctx, "accounts", []any{int64(1)})
	require.NoError(t, err)
	assert.False(t, found)

	stats := ts.CacheStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "accounts", stats[0].Table)
	assert.Equal(t, cache.TypeReadWrite, stats[0].Type)
}

func TestTableSetRejectsBadRequests(t *testing.T) {
	cfg := testConfig(t, nil)
	db, err := OpenDB(context.Background(), cfg, testLogger(), nil)
	require.NoError(t, err)
	defer db.Close()

	ts, err := newTableSet(db, cfg)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = ts.Select(ctx, "ledger", []any{int64(1)})
	require.ErrorIs(t, err, methods.ErrUnknownTable)

	_, _, err = ts.Select(ctx, "accounts", []any{int64(1), int64(2)})
	require.ErrorIs(t, err, methods.ErrInvalidRow)

	_, err = ts.Write(ctx, cache.OpInsert, "accounts", orm.Record{"owner": "alice"})
	require.ErrorIs(t, err, methods.ErrInvalidRow)

	_, err = ts.Write(ctx, cache.OpInsert, "accounts", orm.Record{"id": int64(1), "nickname": "al"})
	require.ErrorIs(t, err, methods.ErrInvalidRow)
}

func TestDaemonServesJSONRPC(t *testing.T) {
	cfg := testConfig(t, map[string]string{"CACHE_TYPE": "readonly"})
	d, err := New(cfg, testLogger())
	require.NoError(t, err)
	d.Serve()
	defer func() { require.NoError(t, d.Close()) }()

	ch := jhttp.NewChannel(fmt.Sprintf("http://%s/", d.Addr()), nil)
	client := jrpc2.NewClient(ch, nil)
	defer client.Close()
	ctx := context.Background()

	var health protocol.GetHealthResponse
	require.NoError(t, client.CallResult(ctx, protocol.GetHealthMethodName, nil, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, []string{"accounts"}, health.Tables)

	var written protocol.WriteRowResponse
	require.NoError(t, client.CallResult(ctx, protocol.InsertRowMethodName, protocol.WriteRowRequest{
		Table: "accounts",
		Row:   []byte(`{"id": 7, "owner": "carol", "balance": 12}`),
	}, &written))
	assert.EqualValues(t, 1, written.Affected)

	var got protocol.GetRowResponse
	require.NoError(t, client.CallResult(ctx, protocol.GetRowMethodName, protocol.GetRowRequest{
		Table: "accounts",
		Key:   []byte(`[7]`),
	}, &got))
	require.True(t, got.Found)
	assert.Equal(t, "carol", got.Row["owner"])
	assert.EqualValues(t, 12, got.Row["balance"])

	var stats protocol.GetCacheStatsResponse
	require.NoError(t, client.CallResult(ctx, protocol.GetCacheStatsMethodName, protocol.GetCacheStatsRequest{}, &stats))
	require.Len(t, stats.Caches, 1)
	assert.Equal(t, cache.TypeReadOnly, stats.Caches[0].Type)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", d.AdminAddr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sorm_json_rpc_request_duration_seconds")
}
