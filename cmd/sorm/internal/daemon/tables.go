package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/sormlabs/sorm/cache"
	"github.com/sormlabs/sorm/cmd/sorm/internal/config"
	"github.com/sormlabs/sorm/cmd/sorm/internal/methods"
	"github.com/sormlabs/sorm/orm"
)

type recordTable struct {
	mapper *orm.RecordMapper
	table  *orm.Table[orm.Record]
}

// tableSet serves the tables declared in the config. Requests arrive
// concurrently while a DB is used by one goroutine at a time, so every call
// holds the lock.
type tableSet struct {
	mu     sync.Mutex
	db     *orm.DB
	names  []string
	tables map[string]recordTable
}

var _ methods.Tables = (*tableSet)(nil)

func newTableSet(db *orm.DB, cfg *config.Config) (*tableSet, error) {
	ts := &tableSet{
		db:     db,
		tables: make(map[string]recordTable, len(cfg.Tables)),
	}
	for _, declared := range cfg.Tables {
		mapper, err := orm.NewRecordMapper(declared.Name, declared.Columns, declared.PrimaryKey)
		if err != nil {
			return nil, err
		}
		cacheCfg, err := cfg.TableCache(declared)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", declared.Name, err)
		}
		table, err := orm.NewTable[orm.Record](db, mapper, orm.WithCache[orm.Record](cacheCfg))
		if err != nil {
			return nil, err
		}
		ts.names = append(ts.names, declared.Name)
		ts.tables[declared.Name] = recordTable{mapper: mapper, table: table}
	}
	return ts, nil
}

func (ts *tableSet) lookup(name string) (recordTable, error) {
	t, ok := ts.tables[name]
	if !ok {
		return recordTable{}, fmt.Errorf("%w: %s", methods.ErrUnknownTable, name)
	}
	return t, nil
}

func (ts *tableSet) Names() []string {
	return append([]string(nil), ts.names...)
}

func (ts *tableSet) InTransaction() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.db.Active() != nil
}

func (ts *tableSet) Select(ctx context.Context, name string, key []any) (orm.Record, bool, error) {
	t, err := ts.lookup(name)
	if err != nil {
		return nil, false, err
	}
	if want := len(t.mapper.PrimaryKey()); len(key) != want {
		return nil, false, fmt.Errorf("%w: table %s has %d primary key columns, got %d values",
			methods.ErrInvalidRow, name, want, len(key))
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return t.table.Select(ctx, key...)
}

func (ts *tableSet) Write(ctx context.Context, op cache.Op, name string, row orm.Record) (int64, error) {
	t, err := ts.lookup(name)
	if err != nil {
		return 0, err
	}
	if err := t.mapper.Check(row); err != nil {
		return 0, fmt.Errorf("%w: %v", methods.ErrInvalidRow, err)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	switch op {
	case cache.OpInsert:
		return t.table.Insert(ctx, row)
	case cache.OpUpdate:
		return t.table.Update(ctx, row)
	case cache.OpSave:
		return t.table.Save(ctx, row)
	case cache.OpDelete:
		return t.table.Delete(ctx, row)
	default:
		return 0, fmt.Errorf("unsupported write %s", op)
	}
}

func (ts *tableSet) CacheStats() []cache.Stats {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.db.CacheStats()
}
