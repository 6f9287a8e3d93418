package orm

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/sormlabs/sorm/cache"
)

// CascadeFunc runs after a write reached the store, or the cache for
// read-write tables, and affected at least one row.
type CascadeFunc[R any] func(ctx context.Context, op cache.Op, row R) error

// executor runs one kind of write for a table. A cached executor consults
// the table cache: read-write caches answer the request themselves, other
// caches are notified once the store executed it. Executors handed to a
// cache for flushing are neither cached nor cascading.
type executor[R any] struct {
	table   *Table[R]
	op      cache.Op
	cached  bool
	cascade bool
	stmts   *sq.StmtCache
}

var _ cache.Executor[struct{}] = (*executor[struct{}])(nil)

func (t *Table[R]) newExecutor(op cache.Op, cached, cascade bool) (*executor[R], error) {
	switch op {
	case cache.OpInsert, cache.OpUpdate, cache.OpSave, cache.OpDelete:
	default:
		return nil, errors.Errorf("no executor for %s", op)
	}
	e := &executor[R]{
		table:   t,
		op:      op,
		cached:  cached && t.cache != nil,
		cascade: cascade && t.cascade != nil,
	}
	if e.cached && t.cache.Authoritative() {
		// the store is only reached when the cache flushes
		return e, nil
	}
	tx := t.db.session.GetTx()
	if tx == nil {
		return nil, errors.Errorf("%s on %s outside of a transaction", op, t.mapper.Table())
	}
	e.stmts = sq.NewStmtCache(tx)
	return e, nil
}

func (e *executor[R]) Execute(ctx context.Context, row R) (int64, error) {
	c := e.table.cache
	var (
		n   int64
		err error
	)
	if e.cached && c.Authoritative() {
		n, err = request(c, e.op, row)
	} else {
		n, err = e.exec(ctx, row)
		if err == nil && e.cached && n > 0 {
			err = notify(c, e.op, row)
		}
	}
	if err != nil {
		return n, err
	}
	if e.cascade && n > 0 {
		if err := e.table.cascade(ctx, e.op, row); err != nil {
			return n, errors.Wrapf(err, "cascading %s on %s", e.op, e.table.mapper.Table())
		}
	}
	return n, nil
}

func (e *executor[R]) exec(ctx context.Context, row R) (int64, error) {
	var query sq.Sqlizer
	switch e.op {
	case cache.OpInsert:
		query = e.insert(row)
	case cache.OpUpdate:
		query = e.update(row)
	case cache.OpSave:
		query = e.save(row)
	case cache.OpDelete:
		query = e.delete(row)
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrapf(err, "building %s on %s", e.op, e.table.mapper.Table())
	}
	res, err := e.stmts.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e *executor[R]) insert(row R) sq.InsertBuilder {
	m := e.table.mapper
	return sq.Insert(m.Table()).Columns(m.Columns()...).Values(m.Values(row)...)
}

func (e *executor[R]) update(row R) sq.UpdateBuilder {
	m := e.table.mapper
	query := sq.Update(m.Table())
	values := m.Values(row)
	set := 0
	for i, col := range m.Columns() {
		if isKeyColumn(m, col) {
			continue
		}
		query = query.Set(col, values[i])
		set++
	}
	if set == 0 {
		// key-only tables still need a SET clause to report a match
		pk := m.PrimaryKey()[0]
		query = query.Set(pk, sq.Expr(pk))
	}
	return query.Where(keyPredicate(m, row))
}

// save inserts row or, when its key is taken, overwrites the stored row.
func (e *executor[R]) save(row R) sq.InsertBuilder {
	m := e.table.mapper
	var assignments []string
	for _, col := range m.Columns() {
		if !isKeyColumn(m, col) {
			assignments = append(assignments, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	conflict := fmt.Sprintf("ON CONFLICT(%s) DO NOTHING", strings.Join(m.PrimaryKey(), ", "))
	if len(assignments) > 0 {
		conflict = fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s",
			strings.Join(m.PrimaryKey(), ", "), strings.Join(assignments, ", "))
	}
	return e.insert(row).Suffix(conflict)
}

func (e *executor[R]) delete(row R) sq.DeleteBuilder {
	m := e.table.mapper
	return sq.Delete(m.Table()).Where(keyPredicate(m, row))
}

func (e *executor[R]) Close() error {
	if e.stmts == nil {
		return nil
	}
	return e.stmts.Clear()
}

func keyPredicate[R any](m Mapper[R], row R) sq.Eq {
	values := m.KeyValues(row)
	eq := make(sq.Eq, len(values))
	for i, col := range m.PrimaryKey() {
		eq[col] = values[i]
	}
	return eq
}

func isKeyColumn[R any](m Mapper[R], col string) bool {
	for _, pk := range m.PrimaryKey() {
		if pk == col {
			return true
		}
	}
	return false
}

func request[R any](c cache.Cache[R], op cache.Op, row R) (int64, error) {
	switch op {
	case cache.OpInsert:
		return c.Insert(row)
	case cache.OpUpdate:
		return c.Update(row)
	case cache.OpSave:
		return c.Save(row)
	default:
		return c.Delete(row)
	}
}

func notify[R any](c cache.Cache[R], op cache.Op, row R) error {
	switch op {
	case cache.OpInsert:
		return c.Inserted(row)
	case cache.OpUpdate:
		return c.Updated(row)
	case cache.OpSave:
		return c.Saved(row)
	default:
		return c.Deleted(row)
	}
}
