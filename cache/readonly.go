package cache

import (
	"context"
)

// ReadOnly caches rows read from and written to the store, but never writes
// to the store itself. Writes reach the cache as notifications after the
// store executed them, and commit only promotes them into the committed
// store.
type ReadOnly[R any] struct {
	*base[R]
}

var _ Cache[struct{}] = (*ReadOnly[struct{}])(nil)

func NewReadOnly[R any](name string, keyFn KeyFunc[R], cfg Config, opts ...Option) (*ReadOnly[R], error) {
	cfg.Type = TypeReadOnly
	b, err := newBase(name, keyFn, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &ReadOnly[R]{base: b}, nil
}

func (c *ReadOnly[R]) Authoritative() bool {
	return false
}

func (c *ReadOnly[R]) Begin(tx Tx) error {
	return c.begin(tx)
}

// Commit promotes the overlay. There is nothing to flush.
func (c *ReadOnly[R]) Commit(_ context.Context, tx Tx) error {
	if err := c.checkTx("commit", tx); err != nil {
		return err
	}
	c.promote(tx)
	return nil
}

func (c *ReadOnly[R]) Insert(row R) (int64, error) {
	return 0, c.rejectRequest(OpInsert, row)
}

func (c *ReadOnly[R]) Update(row R) (int64, error) {
	return 0, c.rejectRequest(OpUpdate, row)
}

func (c *ReadOnly[R]) Save(row R) (int64, error) {
	return 0, c.rejectRequest(OpSave, row)
}

func (c *ReadOnly[R]) Delete(row R) (int64, error) {
	return 0, c.rejectRequest(OpDelete, row)
}

func (c *ReadOnly[R]) Selected(row R) error {
	return c.notify(OpSelect, row)
}

func (c *ReadOnly[R]) Inserted(row R) error {
	return c.notify(OpInsert, row)
}

func (c *ReadOnly[R]) Updated(row R) error {
	return c.notify(OpUpdate, row)
}

func (c *ReadOnly[R]) Saved(row R) error {
	return c.notify(OpSave, row)
}

func (c *ReadOnly[R]) Deleted(row R) error {
	return c.notify(OpDelete, row)
}

func (c *ReadOnly[R]) notify(event Op, row R) error {
	key, err := c.keyOf(event, row)
	if err != nil {
		return err
	}
	next, err := readOnlyTransition(c.overlay.get(key), event, key, row)
	if err != nil {
		return err
	}
	c.put(next)
	return nil
}

// rejectRequest fails every write request: the store, not the cache,
// executes writes for read-only tables.
func (c *ReadOnly[R]) rejectRequest(event Op, row R) error {
	key, err := c.keyOf(event, row)
	if err != nil {
		return err
	}
	return newError(ErrIllegalOperation, event.String(), key, "read-only cache does not accept %s requests", event)
}
