// Package cache implements the transactional row caches of sorm.
//
// A cache keeps two maps per table: the committed store, which is what the
// cache believes the database holds, and the uncommitted overlay, which
// holds one pending state per key touched by the active transaction. Every
// operation on a key combines the existing state with the new event through
// an explicit transition; commit promotes the overlay into the committed
// store and rollback discards it.
//
// ReadOnly caches observe writes after the store executed them. ReadWrite
// caches are the source of truth during a transaction and flush their
// overlay to the store when the transaction commits.
//
// Caches are not safe for concurrent use. One table, and so one cache, must
// be used by one goroutine at a time.
package cache

import (
	"context"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
)

const (
	TypeReadOnly  = "readonly"
	TypeReadWrite = "readwrite"

	// flushLatencySamples bounds the flush latencies kept for Stats.
	flushLatencySamples = 128
)

// Config is the cache configuration of one table.
type Config struct {
	Enabled bool
	// Type is TypeReadOnly, TypeReadWrite or a registered custom type.
	Type string
	// Size bounds the committed rows kept, least recently used first out.
	// Zero is unbounded.
	Size int
	// Expire drops committed rows older than this on read. Zero never expires.
	Expire time.Duration
	// EvictOnTransactionEnd purges the committed store after every commit
	// and rollback.
	EvictOnTransactionEnd bool
}

// Tx is the transaction a cache takes part in.
type Tx interface {
	ID() string
}

// Cache is a transactional row cache for one table.
type Cache[R any] interface {
	Name() string
	Config() Config
	// Authoritative reports whether writes are answered by the cache instead
	// of the store.
	Authoritative() bool

	Begin(tx Tx) error
	Commit(ctx context.Context, tx Tx) error
	Rollback(tx Tx) error

	// Select looks key up. hit reports whether the cache knows the answer, in
	// which case found reports whether the row exists.
	Select(key Key) (row R, found bool, hit bool)

	// Write requests, answered by authoritative caches only.
	Insert(row R) (int64, error)
	Update(row R) (int64, error)
	Save(row R) (int64, error)
	Delete(row R) (int64, error)

	// Notifications that the store executed an operation.
	Selected(row R) error
	Inserted(row R) error
	Updated(row R) error
	Saved(row R) error
	Deleted(row R) error

	// Purge drops every committed row.
	Purge()
	Stats() Stats
}

// Stats is a point in time summary of a cache.
type Stats struct {
	Table          string
	Type           string
	Committed      int
	Pending        int
	Evicted        uint64
	Hits           uint64
	Misses         uint64
	Flushes        uint64
	WriteErrors    uint64
	Commits        uint64
	Rollbacks      uint64
	FlushLatencies []time.Duration
}

type options struct {
	logger  *log.Entry
	metrics *Metrics
	now     func() time.Time
}

// Option configures a cache.
type Option func(*options)

func WithLogger(logger *log.Entry) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now, for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// base holds what both cache kinds share: the committed store, the overlay
// and transaction bookkeeping.
type base[R any] struct {
	name      string
	cfg       Config
	keyFn     KeyFunc[R]
	committed *committed[R]
	overlay   *overlay[R]
	logger    *log.Entry
	metrics   *Metrics
	now       func() time.Time

	activeTx  string
	stats     Stats
	latencies []time.Duration
}

func newBase[R any](name string, keyFn KeyFunc[R], cfg Config, opts []Option) (*base[R], error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New()
	}
	committed, err := newCommitted[R](cfg.Size, cfg.Expire, o.now)
	if err != nil {
		return nil, err
	}
	return &base[R]{
		name:      name,
		cfg:       cfg,
		keyFn:     keyFn,
		committed: committed,
		overlay:   newOverlay[R](),
		logger:    o.logger.WithField("table", name).WithField("cache", cfg.Type),
		metrics:   o.metrics,
		now:       o.now,
	}, nil
}

func (c *base[R]) Name() string {
	return c.name
}

func (c *base[R]) Config() Config {
	return c.cfg
}

func (c *base[R]) keyOf(op Op, row R) (Key, error) {
	key, err := KeyOf(c.keyFn, row)
	if err != nil {
		return Key{}, &Error{Code: ErrIllegalOperation, Op: op.String(), Err: err}
	}
	return key, nil
}

// Select consults the overlay first, then the committed store.
func (c *base[R]) Select(key Key) (R, bool, bool) {
	if s := c.overlay.get(key); s != nil {
		c.stats.Hits++
		c.metrics.hit(c.name)
		row, found := s.selectRow()
		return row, found, true
	}
	if row, ok := c.committed.get(key); ok {
		c.stats.Hits++
		c.metrics.hit(c.name)
		return row, true, true
	}
	c.stats.Misses++
	c.metrics.miss(c.name)
	var zero R
	return zero, false, false
}

func (c *base[R]) begin(tx Tx) error {
	if c.activeTx != "" && c.activeTx != tx.ID() {
		return newError(ErrIllegalOperation, "begin", Key{},
			"transaction %s is still active", c.activeTx)
	}
	if c.overlay.len() > 0 {
		return newError(ErrIllegalOperation, "begin", Key{},
			"%d uncommitted rows left by a previous transaction", c.overlay.len())
	}
	c.activeTx = tx.ID()
	c.logger.WithField("tx", tx.ID()).Debug("cache joined transaction")
	return nil
}

// checkTx fails when a transaction other than the one the cache joined
// ends it. A cache that joined none accepts any.
func (c *base[R]) checkTx(op string, tx Tx) error {
	if c.activeTx != "" && c.activeTx != tx.ID() {
		return newError(ErrIllegalOperation, op, Key{},
			"transaction %s is not the active transaction %s", tx.ID(), c.activeTx)
	}
	return nil
}

func (c *base[R]) put(s state[R]) {
	c.overlay.put(s)
	c.metrics.pending(c.name, c.overlay.len())
}

// promote runs updateCommitted for every pending state and ends the
// transaction.
func (c *base[R]) promote(tx Tx) {
	n := c.overlay.len()
	c.overlay.commit(c.committed)
	c.stats.Commits++
	c.endTransaction()
	c.logger.WithField("tx", tx.ID()).WithField("rows", n).Debug("cache committed")
}

func (c *base[R]) Rollback(tx Tx) error {
	if err := c.checkTx("rollback", tx); err != nil {
		return err
	}
	n := c.overlay.len()
	c.overlay.reset()
	c.stats.Rollbacks++
	c.endTransaction()
	c.logger.WithField("tx", tx.ID()).WithField("rows", n).Debug("cache rolled back")
	return nil
}

func (c *base[R]) endTransaction() {
	c.activeTx = ""
	c.metrics.pending(c.name, 0)
	if c.cfg.EvictOnTransactionEnd {
		c.committed.purge()
	}
}

func (c *base[R]) recordFlush(d time.Duration) {
	if len(c.latencies) == flushLatencySamples {
		c.latencies = c.latencies[1:]
	}
	c.latencies = append(c.latencies, d)
}

func (c *base[R]) Stats() Stats {
	s := c.stats
	s.Table = c.name
	s.Type = c.cfg.Type
	s.Committed = c.committed.len()
	s.Pending = c.overlay.len()
	s.Evicted = c.committed.evicted
	s.FlushLatencies = append([]time.Duration(nil), c.latencies...)
	return s
}

func (c *base[R]) Purge() {
	c.committed.purge()
	c.logger.Debug("committed rows purged")
}

// Committed returns a copy of the committed rows.
func (c *base[R]) Committed() map[Key]R {
	return c.committed.snapshot()
}
