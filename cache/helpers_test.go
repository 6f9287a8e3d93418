package cache

import (
	"context"
	"errors"
	"fmt"
)

type student struct {
	ID   int
	Name string
}

func studentKey(s *student) []any {
	return []any{s.ID}
}

type testTx string

func (t testTx) ID() string {
	return string(t)
}

type storeCall struct {
	Op Op
	ID int
}

// fakeStore is an in-memory table implementing ExecutorFactory.
type fakeStore struct {
	rows    map[int]student
	calls   []storeCall
	failOn  int
	execs   int
	opened  int
	closed  int
	factErr error
}

func newFakeStore(rows ...student) *fakeStore {
	s := &fakeStore{rows: map[int]student{}}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *fakeStore) NewWriteExecutor(op Op) (Executor[*student], error) {
	if s.factErr != nil {
		return nil, s.factErr
	}
	s.opened++
	return &fakeExecutor{store: s, op: op}, nil
}

func (s *fakeStore) callsFor(op Op) []int {
	var ids []int
	for _, c := range s.calls {
		if c.Op == op {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

type fakeExecutor struct {
	store *fakeStore
	op    Op
}

func (e *fakeExecutor) Execute(_ context.Context, row *student) (int64, error) {
	s := e.store
	s.execs++
	if s.failOn == s.execs {
		return 0, errors.New("constraint violation")
	}
	s.calls = append(s.calls, storeCall{Op: e.op, ID: row.ID})
	_, exists := s.rows[row.ID]
	switch e.op {
	case OpInsert:
		if exists {
			return 0, fmt.Errorf("duplicate primary key %d", row.ID)
		}
		s.rows[row.ID] = *row
	case OpUpdate:
		if !exists {
			return 0, nil
		}
		s.rows[row.ID] = *row
	case OpSave:
		s.rows[row.ID] = *row
	case OpDelete:
		if !exists {
			return 0, nil
		}
		delete(s.rows, row.ID)
	default:
		return 0, fmt.Errorf("unexpected executor %s", e.op)
	}
	return 1, nil
}

func (e *fakeExecutor) Close() error {
	e.store.closed++
	return nil
}
