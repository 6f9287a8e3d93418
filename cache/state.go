package cache

import (
	"context"
	"fmt"
)

// Op is the operation that produced an uncommitted state.
type Op uint8

const (
	OpSelect Op = iota + 1
	OpInsert
	OpUpdate
	OpSave
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSelect:
		return "select"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpSave:
		return "save"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// state is the pending mutation of one key since the last commit.
//
// A state is a value. Transitions return a new state which replaces the
// overlay entry; nothing mutates a state held by the overlay.
type state[R any] struct {
	op  Op
	key Key
	row R
	// stored is set when the store holds a row for key that this state has
	// not removed yet. Deletes without it need no statement and inserts with
	// it must replace the stored row.
	stored bool
	// written is set once the state has been flushed to the store.
	written bool
}

func newState[R any](op Op, key Key, row R, stored bool) state[R] {
	return state[R]{op: op, key: key, row: row, stored: stored}
}

// selectRow is the read path of a cache hit. Deleted rows are a hit
// without a row.
func (s state[R]) selectRow() (R, bool) {
	switch s.op {
	case OpSelect, OpInsert, OpUpdate, OpSave:
		return s.row, true
	case OpDelete:
		var zero R
		return zero, false
	default:
		panic(fmt.Sprintf("unknown cache state %v", s.op))
	}
}

// updateCommitted promotes the state into the committed store.
func (s state[R]) updateCommitted(c *committed[R]) {
	switch s.op {
	case OpSelect, OpInsert, OpUpdate, OpSave:
		c.upsert(s.key, s.row)
	case OpDelete:
		c.delete(s.key)
	default:
		panic(fmt.Sprintf("unknown cache state %v", s.op))
	}
}

// write sends the state to the store and returns the rows it affected.
// Selects and deletes of rows the store never held produce no statement.
func (s state[R]) write(ctx context.Context, ops *WriteOperations[R]) (bool, int64, error) {
	var (
		n   int64
		err error
	)
	switch s.op {
	case OpSelect:
		return false, 0, nil
	case OpInsert:
		if s.stored {
			n, err = ops.Save(ctx, s.row)
		} else {
			n, err = ops.Insert(ctx, s.row)
		}
	case OpUpdate:
		n, err = ops.Update(ctx, s.row)
	case OpSave:
		n, err = ops.Save(ctx, s.row)
	case OpDelete:
		if !s.stored {
			return false, 0, nil
		}
		n, err = ops.Delete(ctx, s.row)
	default:
		panic(fmt.Sprintf("unknown cache state %v", s.op))
	}
	return true, n, err
}

// unmatched is the state of an update the store matched no row for. It
// removes key from the committed store when promoted.
func (s state[R]) unmatched() state[R] {
	return state[R]{op: OpDelete, key: s.key, row: s.row, written: true}
}

func (s state[R]) markWritten() state[R] {
	s.written = true
	return s
}

// readOnlyTransition applies a notification, sent after the store already
// executed the operation, to the current state of a read-only cache.
func readOnlyTransition[R any](cur *state[R], event Op, key Key, row R) (state[R], error) {
	if cur == nil {
		switch event {
		case OpSelect, OpInsert, OpUpdate, OpSave, OpDelete:
			return newState(event, key, row, event != OpInsert), nil
		default:
			return state[R]{}, illegalTransition[R](event, nil, key)
		}
	}

	switch cur.op {
	case OpSelect, OpInsert, OpUpdate, OpSave:
		switch event {
		case OpInsert:
			return state[R]{}, newError(ErrDuplicate, event.String(), key,
				"row is already pending as %s in this transaction", cur.op)
		case OpUpdate, OpSave, OpDelete:
			return newState(event, key, row, true), nil
		case OpSelect:
			if cur.op == OpSelect {
				return newState(OpSelect, key, row, true), nil
			}
			// the pending write is newer than anything the store returned
			return *cur, nil
		}
	case OpDelete:
		switch event {
		case OpInsert, OpSave:
			return newState(event, key, row, false), nil
		case OpUpdate, OpDelete, OpSelect:
			return state[R]{}, illegalTransition(event, cur, key)
		}
	}
	return state[R]{}, illegalTransition(event, cur, key)
}

// readWriteTransition applies a write request to the current state of a
// read-write cache. committedHas reports whether the committed store holds
// key. The returned count is the number of rows the request affects.
func readWriteTransition[R any](cur *state[R], committedHas bool, event Op, key Key, row R) (state[R], int64, error) {
	if cur == nil {
		switch event {
		case OpInsert:
			if committedHas {
				return state[R]{}, 0, newError(ErrDuplicate, event.String(), key, "row is already committed")
			}
			return newState(OpInsert, key, row, false), 1, nil
		case OpUpdate:
			return newState(OpUpdate, key, row, true), 1, nil
		case OpSave:
			if committedHas {
				return newState(OpUpdate, key, row, true), 1, nil
			}
			return newState(OpSave, key, row, false), 1, nil
		case OpDelete:
			return newState(OpDelete, key, row, true), 1, nil
		default:
			return state[R]{}, 0, illegalTransition[R](event, nil, key)
		}
	}

	switch cur.op {
	case OpSelect, OpUpdate:
		switch event {
		case OpInsert:
			return state[R]{}, 0, newError(ErrDuplicate, event.String(), key, "row exists in this transaction")
		case OpUpdate, OpSave:
			return newState(OpUpdate, key, row, true), 1, nil
		case OpDelete:
			return newState(OpDelete, key, row, true), 1, nil
		}
	case OpInsert:
		switch event {
		case OpInsert:
			return state[R]{}, 0, newError(ErrDuplicate, event.String(), key, "row was already inserted in this transaction")
		case OpUpdate, OpSave:
			// still unknown to the store, so it stays an insert
			return newState(OpInsert, key, row, cur.stored), 1, nil
		case OpDelete:
			return newState(OpDelete, key, row, cur.stored), 1, nil
		}
	case OpSave:
		switch event {
		case OpInsert:
			return state[R]{}, 0, newError(ErrDuplicate, event.String(), key, "row was already saved in this transaction")
		case OpUpdate, OpSave:
			return newState(OpSave, key, row, cur.stored), 1, nil
		case OpDelete:
			return newState(OpDelete, key, row, true), 1, nil
		}
	case OpDelete:
		switch event {
		case OpInsert:
			return newState(OpInsert, key, row, cur.stored), 1, nil
		case OpSave:
			if cur.stored {
				return newState(OpSave, key, row, true), 1, nil
			}
			return newState(OpInsert, key, row, false), 1, nil
		case OpUpdate, OpDelete:
			// the row is gone, the store would not match it either
			return *cur, 0, nil
		}
	}
	return state[R]{}, 0, illegalTransition(event, cur, key)
}

// readWriteSelected records a row fetched from the store after a miss. A
// pending state always wins over what the store returned.
func readWriteSelected[R any](cur *state[R], key Key, row R) state[R] {
	if cur != nil {
		return *cur
	}
	return newState(OpSelect, key, row, true)
}

func illegalTransition[R any](event Op, cur *state[R], key Key) error {
	if cur == nil {
		return newError(ErrIllegalOperation, event.String(), key, "no transition for %s", event)
	}
	return newError(ErrIllegalOperation, event.String(), key, "cannot %s a row in state %s", event, cur.op)
}
