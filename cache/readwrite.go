package cache

import (
	"context"
	"errors"
)

// ReadWrite answers selects and writes from the cache while a transaction
// is active and sends the resulting rows to the store when it commits.
type ReadWrite[R any] struct {
	*base[R]
	factory ExecutorFactory[R]
}

var _ Cache[struct{}] = (*ReadWrite[struct{}])(nil)

func NewReadWrite[R any](
	name string,
	keyFn KeyFunc[R],
	factory ExecutorFactory[R],
	cfg Config,
	opts ...Option,
) (*ReadWrite[R], error) {
	cfg.Type = TypeReadWrite
	b, err := newBase(name, keyFn, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &ReadWrite[R]{base: b, factory: factory}, nil
}

func (c *ReadWrite[R]) Authoritative() bool {
	return true
}

func (c *ReadWrite[R]) Begin(tx Tx) error {
	return c.begin(tx)
}

// Commit flushes every pending row to the store, in the order the rows were
// first touched, and then promotes the overlay.
//
// An update the store matched no row for is promoted as a deletion, so the
// committed store never holds a row the store does not.
//
// On the first store failure Commit stops and returns an ErrWrite error.
// Nothing is promoted and the overlay is kept, so the caller has to roll
// back. Rows flushed before the failure are marked written and are not sent
// again if Commit is retried.
func (c *ReadWrite[R]) Commit(ctx context.Context, tx Tx) error {
	if err := c.checkTx("commit", tx); err != nil {
		return err
	}
	if c.overlay.len() == 0 {
		c.promote(tx)
		return nil
	}
	start := c.now()
	ops := NewWriteOperations(c.factory, c.keyFn)
	defer func() {
		if err := ops.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to release write executors")
		}
	}()

	logger := c.logger.WithField("tx", tx.ID())
	for _, s := range c.overlay.states() {
		if s.written {
			continue
		}
		sent, n, err := s.write(ctx, ops)
		if err != nil {
			c.stats.WriteErrors++
			c.metrics.writeFailed(c.name)
			var werr *WriteError
			if errors.As(err, &werr) {
				logger.WithField("key", s.key.String()).WithField("op", werr.Op.String()).
					WithError(werr.Err).Warn("store rejected flushed row")
				return wrapWriteError(s.key, werr)
			}
			return &Error{Code: ErrWrite, Op: s.op.String(), Key: s.key, Err: err}
		}
		if !sent {
			c.overlay.put(s.markWritten())
			continue
		}
		c.stats.Flushes++
		c.metrics.flushed(c.name)
		if s.op == OpUpdate && n == 0 {
			logger.WithField("key", s.key.String()).Debug("flushed update matched no stored row")
			c.overlay.put(s.unmatched())
			continue
		}
		c.overlay.put(s.markWritten())
	}
	c.recordFlush(c.now().Sub(start))
	c.promote(tx)
	return nil
}

func (c *ReadWrite[R]) Insert(row R) (int64, error) {
	return c.request(OpInsert, row)
}

func (c *ReadWrite[R]) Update(row R) (int64, error) {
	return c.request(OpUpdate, row)
}

func (c *ReadWrite[R]) Save(row R) (int64, error) {
	return c.request(OpSave, row)
}

func (c *ReadWrite[R]) Delete(row R) (int64, error) {
	return c.request(OpDelete, row)
}

func (c *ReadWrite[R]) request(event Op, row R) (int64, error) {
	key, err := c.keyOf(event, row)
	if err != nil {
		return 0, err
	}
	cur := c.overlay.get(key)
	committedHas := cur == nil && c.committed.has(key)
	next, n, err := readWriteTransition(cur, committedHas, event, key, row)
	if err != nil {
		return 0, err
	}
	c.put(next)
	return n, nil
}

// Selected records a row the store returned after a miss.
func (c *ReadWrite[R]) Selected(row R) error {
	key, err := c.keyOf(OpSelect, row)
	if err != nil {
		return err
	}
	c.put(readWriteSelected(c.overlay.get(key), key, row))
	return nil
}

func (c *ReadWrite[R]) Inserted(row R) error {
	return c.rejectNotification(OpInsert, row)
}

func (c *ReadWrite[R]) Updated(row R) error {
	return c.rejectNotification(OpUpdate, row)
}

func (c *ReadWrite[R]) Saved(row R) error {
	return c.rejectNotification(OpSave, row)
}

func (c *ReadWrite[R]) Deleted(row R) error {
	return c.rejectNotification(OpDelete, row)
}

// rejectNotification fails writes that bypassed an authoritative cache.
func (c *ReadWrite[R]) rejectNotification(event Op, row R) error {
	key, err := c.keyOf(event, row)
	if err != nil {
		return err
	}
	return newError(ErrIllegalOperation, event.String(), key,
		"read-write cache must receive %s requests, not notifications", event)
}
