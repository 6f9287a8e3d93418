package orm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sormlabs/sorm/cache"
)

// CacheConstructor builds the cache of a table for a registered cache type.
type CacheConstructor[R any] func(
	name string,
	keyFn cache.KeyFunc[R],
	factory cache.ExecutorFactory[R],
	cfg cache.Config,
	opts ...cache.Option,
) (cache.Cache[R], error)

var (
	cacheTypesMu sync.RWMutex
	cacheTypes   = map[string]any{}
)

// RegisterCacheType makes a custom cache type available to tables of row
// type R. The builtin types cannot be replaced.
func RegisterCacheType[R any](name string, ctor CacheConstructor[R]) error {
	if name == cache.TypeReadOnly || name == cache.TypeReadWrite {
		return fmt.Errorf("cache type %s is builtin", name)
	}
	cacheTypesMu.Lock()
	defer cacheTypesMu.Unlock()
	cacheTypes[name] = ctor
	return nil
}

func lookupCacheType[R any](name string) (CacheConstructor[R], error) {
	cacheTypesMu.RLock()
	defer cacheTypesMu.RUnlock()
	registered, ok := cacheTypes[name]
	if !ok {
		return nil, fmt.Errorf("unknown cache type %q", name)
	}
	ctor, ok := registered.(CacheConstructor[R])
	if !ok {
		var zero R
		return nil, fmt.Errorf("cache type %q does not support rows of type %T", name, zero)
	}
	return ctor, nil
}

// Table runs the statements of one row type against its table.
type Table[R any] struct {
	db      *DB
	mapper  Mapper[R]
	cache   cache.Cache[R]
	cascade CascadeFunc[R]
	logger  *log.Entry
}

var _ cache.ExecutorFactory[struct{}] = (*Table[struct{}])(nil)

type tableOptions[R any] struct {
	cacheCfg  cache.Config
	cacheOpts []cache.Option
	factory   cache.ExecutorFactory[R]
	cascade   CascadeFunc[R]
}

// TableOption configures NewTable.
type TableOption[R any] func(*tableOptions[R])

// WithCache gives the table a cache. A disabled config leaves the table
// uncached.
func WithCache[R any](cfg cache.Config) TableOption[R] {
	return func(o *tableOptions[R]) { o.cacheCfg = cfg }
}

// WithCacheOptions passes options through to the cache constructor.
func WithCacheOptions[R any](opts ...cache.Option) TableOption[R] {
	return func(o *tableOptions[R]) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

// WithExecutorFactory replaces the table as the source of the executors a
// read-write cache flushes with.
func WithExecutorFactory[R any](f cache.ExecutorFactory[R]) TableOption[R] {
	return func(o *tableOptions[R]) { o.factory = f }
}

func WithCascade[R any](fn CascadeFunc[R]) TableOption[R] {
	return func(o *tableOptions[R]) { o.cascade = fn }
}

// NewTable binds mapper to d. A cached table takes part in every
// transaction of d from then on.
func NewTable[R any](d *DB, mapper Mapper[R], opts ...TableOption[R]) (*Table[R], error) {
	var o tableOptions[R]
	for _, opt := range opts {
		opt(&o)
	}
	t := &Table[R]{
		db:      d,
		mapper:  mapper,
		cascade: o.cascade,
		logger:  d.logger.WithField("table", mapper.Table()),
	}
	if !o.cacheCfg.Enabled {
		return t, nil
	}

	factory := o.factory
	if factory == nil {
		factory = t
	}
	cacheOpts := append([]cache.Option{cache.WithLogger(d.logger)}, o.cacheOpts...)
	if d.metrics != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics(d.metrics))
	}
	c, err := newCache(mapper.Table(), cache.KeyFunc[R](mapper.KeyValues), factory, o.cacheCfg, cacheOpts)
	if err != nil {
		return nil, fmt.Errorf("could not create cache for table %s: %w", mapper.Table(), err)
	}
	if err := d.register(c); err != nil {
		return nil, err
	}
	t.cache = c
	t.logger.WithField("cache", c.Config().Type).Debug("table cache registered")
	return t, nil
}

func newCache[R any](
	name string,
	keyFn cache.KeyFunc[R],
	factory cache.ExecutorFactory[R],
	cfg cache.Config,
	opts []cache.Option,
) (cache.Cache[R], error) {
	switch cfg.Type {
	case cache.TypeReadOnly:
		return cache.NewReadOnly(name, keyFn, cfg, opts...)
	case "", cache.TypeReadWrite:
		return cache.NewReadWrite(name, keyFn, factory, cfg, opts...)
	default:
		ctor, err := lookupCacheType[R](cfg.Type)
		if err != nil {
			return nil, err
		}
		return ctor(name, keyFn, factory, cfg, opts...)
	}
}

func (t *Table[R]) Name() string {
	return t.mapper.Table()
}

// Cache returns the table cache, or nil for uncached tables.
func (t *Table[R]) Cache() cache.Cache[R] {
	return t.cache
}

// NewWriteExecutor returns an executor that writes straight to the store.
func (t *Table[R]) NewWriteExecutor(op cache.Op) (cache.Executor[R], error) {
	return t.newExecutor(op, false, false)
}

// Select returns the row with the given primary key values. found is false
// when no such row exists.
func (t *Table[R]) Select(ctx context.Context, keyValues ...any) (row R, found bool, err error) {
	key, err := cache.NewKey(keyValues...)
	if err != nil {
		return row, false, err
	}
	if len(keyValues) != len(t.mapper.PrimaryKey()) {
		return row, false, fmt.Errorf("table %s has %d primary key columns, got %d values",
			t.Name(), len(t.mapper.PrimaryKey()), len(keyValues))
	}
	if t.cache != nil {
		if cached, ok, hit := t.cache.Select(key); hit {
			return cached, ok, nil
		}
	}
	err = t.db.InTransaction(ctx, func(*Transaction) error {
		row, found, err = t.query(ctx, keyValues)
		if err != nil || !found || t.cache == nil {
			return err
		}
		return t.cache.Selected(row)
	})
	return row, found, err
}

func (t *Table[R]) query(ctx context.Context, keyValues []any) (R, bool, error) {
	var zero R
	where := make(sq.Eq, len(keyValues))
	for i, col := range t.mapper.PrimaryKey() {
		where[col] = keyValues[i]
	}
	query := sq.Select(t.mapper.Columns()...).From(t.mapper.Table()).Where(where)
	rows, err := t.db.session.Query(ctx, query)
	if err != nil {
		return zero, false, fmt.Errorf("could not select from %s: %w", t.Name(), err)
	}
	defer rows.Close()
	if !rows.Next() {
		return zero, false, rows.Err()
	}
	row, err := t.mapper.Scan(rows)
	if err != nil {
		return zero, false, fmt.Errorf("failed to scan row of %s: %w", t.Name(), err)
	}
	return row, true, nil
}

// Insert adds row and returns the number of rows affected.
func (t *Table[R]) Insert(ctx context.Context, row R) (int64, error) {
	return t.write(ctx, cache.OpInsert, row)
}

func (t *Table[R]) Update(ctx context.Context, row R) (int64, error) {
	return t.write(ctx, cache.OpUpdate, row)
}

// Save inserts row or overwrites the row with the same primary key.
func (t *Table[R]) Save(ctx context.Context, row R) (int64, error) {
	return t.write(ctx, cache.OpSave, row)
}

func (t *Table[R]) Delete(ctx context.Context, row R) (int64, error) {
	return t.write(ctx, cache.OpDelete, row)
}

func (t *Table[R]) write(ctx context.Context, op cache.Op, row R) (n int64, err error) {
	err = t.db.InTransaction(ctx, func(*Transaction) error {
		e, err := t.newExecutor(op, true, true)
		if err != nil {
			return err
		}
		n, err = e.Execute(ctx, row)
		return errors.Join(err, e.Close())
	})
	return n, err
}
