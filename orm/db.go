// Package orm maps Go rows to sqlite tables and runs them through the
// transactional caches of package cache.
//
// There are three parts:
//
//   - Mapper describes how a row type translates to the columns of one
//     table. Applications implement it per row type, or use RecordMapper
//     for generic column maps.
//   - Table executes select, insert, update, save and delete for one row
//     type, consulting the table's cache first when it has one.
//   - DB owns the session and the active Transaction, and forwards begin,
//     commit and rollback to the cache of every table.
//
// A DB, and every table and cache opened on it, must be used by one
// goroutine at a time.
package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/stellar/go-stellar-sdk/support/db"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sormlabs/sorm/cache"
)

const sqliteDialect = "sqlite3"

// participant is the non-generic view of a table cache that transactions
// drive.
type participant interface {
	Name() string
	Begin(tx cache.Tx) error
	Commit(ctx context.Context, tx cache.Tx) error
	Rollback(tx cache.Tx) error
	Purge()
	Stats() cache.Stats
}

type DB struct {
	session *db.Session
	logger  *log.Entry
	metrics *cache.Metrics

	caches []participant
	tx     *Transaction
}

type dbOptions struct {
	openRetries uint64
	metrics     *cache.Metrics
}

// Option configures Open.
type Option func(*dbOptions)

// WithOpenRetries sets how often pinging a busy database is retried.
func WithOpenRetries(n uint64) Option {
	return func(o *dbOptions) { o.openRetries = n }
}

// WithMetrics makes every cache opened on the DB report to m.
func WithMetrics(m *cache.Metrics) Option {
	return func(o *dbOptions) { o.metrics = m }
}

// Open opens the sqlite database at path.
func Open(ctx context.Context, logger *log.Entry, path string, opts ...Option) (*DB, error) {
	o := dbOptions{openRetries: 3}
	for _, opt := range opts {
		opt(&o)
	}

	session, err := db.Open(sqliteDialect, fmt.Sprintf("file:%s?_journal_mode=WAL&_txlock=immediate", path))
	if err != nil {
		return nil, fmt.Errorf("could not open database %s: %w", path, err)
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), o.openRetries), ctx)
	err = backoff.RetryNotify(
		func() error { return session.DB.PingContext(ctx) },
		retry,
		func(err error, wait time.Duration) {
			logger.WithError(err).WithField("wait", wait).Warn("database not ready, retrying")
		},
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("could not reach database: %w", err), session.Close())
	}

	logger.WithField("path", path).Info("database opened")
	return &DB{
		session: session,
		logger:  logger,
		metrics: o.metrics,
	}, nil
}

// Close closes the session. An active transaction is rolled back first.
func (d *DB) Close() error {
	var err error
	if d.tx != nil {
		err = d.tx.Rollback()
	}
	return errors.Join(err, d.session.Close())
}

// Migrate applies every pending up migration of source.
func (d *DB) Migrate(source migrate.MigrationSource) (int, error) {
	n, err := migrate.Exec(d.session.DB.DB, sqliteDialect, source, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("could not apply migrations: %w", err)
	}
	d.logger.WithField("applied", n).Info("migrations applied")
	return n, nil
}

// Session exposes the underlying session for statements outside tables.
func (d *DB) Session() *db.Session {
	return d.session
}

// Active returns the transaction in progress, or nil.
func (d *DB) Active() *Transaction {
	return d.tx
}

// CacheStats reports the stats of every table cache, in registration order.
func (d *DB) CacheStats() []cache.Stats {
	out := make([]cache.Stats, 0, len(d.caches))
	for _, c := range d.caches {
		out = append(out, c.Stats())
	}
	return out
}

func (d *DB) register(c participant) error {
	for _, existing := range d.caches {
		if existing.Name() == c.Name() {
			return fmt.Errorf("table %s already has a cache", c.Name())
		}
	}
	if d.tx != nil {
		if err := c.Begin(d.tx); err != nil {
			return err
		}
	}
	d.caches = append(d.caches, c)
	return nil
}

// InTransaction runs fn in the active transaction, or in a new one that is
// committed when fn succeeds and rolled back otherwise.
func (d *DB) InTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	if d.tx != nil {
		return fn(d.tx)
	}
	tx, err := d.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit(ctx)
}
