package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stellar/go-stellar-sdk/support/log"
)

var ErrTransactionDone = errors.New("transaction already committed or rolled back")

// Transaction is a store transaction together with the caches taking part
// in it.
type Transaction struct {
	id      uuid.UUID
	db      *DB
	logger  *log.Entry
	started time.Time
	done    bool
}

// Begin starts a transaction on the session and on every table cache.
func (d *DB) Begin(ctx context.Context) (*Transaction, error) {
	if d.tx != nil {
		return nil, fmt.Errorf("transaction %s is already active", d.tx.ID())
	}
	if err := d.session.Begin(ctx); err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	tx := &Transaction{
		id:      uuid.New(),
		db:      d,
		started: time.Now(),
	}
	tx.logger = d.logger.WithField("tx", tx.ID())

	for i, c := range d.caches {
		if err := c.Begin(tx); err != nil {
			for _, started := range d.caches[:i] {
				_ = started.Rollback(tx)
			}
			return nil, errors.Join(
				fmt.Errorf("cache %s could not join transaction: %w", c.Name(), err),
				d.session.Rollback(),
			)
		}
	}
	d.tx = tx
	tx.logger.Debug("transaction started")
	return tx, nil
}

func (t *Transaction) ID() string {
	return t.id.String()
}

// Commit flushes every cache into the store transaction and then commits
// it. If a cache fails to flush, or the store fails to commit, the store
// transaction and every cache are rolled back and the error returned.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.done {
		return ErrTransactionDone
	}
	d := t.db
	for i, c := range d.caches {
		if err := c.Commit(ctx, t); err != nil {
			t.logger.WithError(err).WithField("table", c.Name()).Error("cache commit failed, rolling back")
			// caches before i already promoted rows the store will not keep
			for _, committed := range d.caches[:i] {
				committed.Purge()
			}
			return errors.Join(err, t.rollback())
		}
	}
	if err := d.session.Commit(); err != nil {
		t.logger.WithError(err).Error("store commit failed")
		for _, c := range d.caches {
			c.Purge()
		}
		return errors.Join(fmt.Errorf("could not commit transaction: %w", err), t.rollback())
	}
	t.finish()
	t.logger.WithField("duration", time.Since(t.started)).Debug("transaction committed")
	return nil
}

// Rollback discards the store transaction and the uncommitted rows of every
// cache. Committed cache rows are kept.
func (t *Transaction) Rollback() error {
	if t.done {
		return ErrTransactionDone
	}
	err := t.rollback()
	t.logger.WithField("duration", time.Since(t.started)).Debug("transaction rolled back")
	return err
}

func (t *Transaction) rollback() error {
	var err error
	for _, c := range t.db.caches {
		err = errors.Join(err, c.Rollback(t))
	}
	if t.db.session.GetTx() != nil {
		err = errors.Join(err, t.db.session.Rollback())
	}
	t.finish()
	return err
}

func (t *Transaction) finish() {
	t.done = true
	if t.db.tx == t {
		t.db.tx = nil
	}
}
