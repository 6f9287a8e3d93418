package orm

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sormlabs/sorm/cache"
)

type account struct {
	ID      int64
	Owner   string
	Balance int64
}

type accountMapper struct{}

func (accountMapper) Table() string        { return "accounts" }
func (accountMapper) Columns() []string    { return []string{"id", "owner", "balance"} }
func (accountMapper) PrimaryKey() []string { return []string{"id"} }

func (accountMapper) Values(a *account) []any {
	return []any{a.ID, a.Owner, a.Balance}
}

func (accountMapper) KeyValues(a *account) []any {
	return []any{a.ID}
}

func (accountMapper) Scan(s Scanner) (*account, error) {
	var a account
	if err := s.Scan(&a.ID, &a.Owner, &a.Balance); err != nil {
		return nil, err
	}
	return &a, nil
}

var testMigrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_accounts",
			Up: []string{`CREATE TABLE accounts (
				id INTEGER NOT NULL PRIMARY KEY,
				owner TEXT NOT NULL,
				balance INTEGER NOT NULL DEFAULT 0
			)`},
			Down: []string{"DROP TABLE accounts"},
		},
		{
			Id: "2_audit",
			Up: []string{`CREATE TABLE audit (
				account_id INTEGER NOT NULL,
				op TEXT NOT NULL
			)`},
			Down: []string{"DROP TABLE audit"},
		},
	},
}

func openTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	logger := log.New()
	logger.SetLevel(logrus.DebugLevel)
	d, err := Open(context.Background(), logger, filepath.Join(t.TempDir(), "sorm.sqlite"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })

	_, err = d.Migrate(testMigrations)
	require.NoError(t, err)
	return d
}

// storeAccount reads a row straight from the store, bypassing every cache.
func storeAccount(t *testing.T, d *DB, id int64) (*account, bool) {
	t.Helper()
	row := d.Session().DB.QueryRowContext(context.Background(),
		"SELECT id, owner, balance FROM accounts WHERE id = ?", id)
	var a account
	err := row.Scan(&a.ID, &a.Owner, &a.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	require.NoError(t, err)
	return &a, true
}

func insertStoreAccount(t *testing.T, d *DB, a account) {
	t.Helper()
	_, err := d.Session().DB.ExecContext(context.Background(),
		"INSERT INTO accounts (id, owner, balance) VALUES (?, ?, ?)", a.ID, a.Owner, a.Balance)
	require.NoError(t, err)
}

func cached(typ string) cache.Config {
	return cache.Config{Enabled: true, Type: typ}
}
