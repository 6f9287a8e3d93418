package cache

import (
	"context"
	"errors"
	"fmt"
)

//go:generate mockgen -source write_operations.go -destination executor_mocks.go -package cache

// Executor runs one kind of write against the store.
type Executor[R any] interface {
	// Execute writes row and returns the number of affected rows.
	Execute(ctx context.Context, row R) (int64, error)
	// Close releases prepared statements held by the executor.
	Close() error
}

// ExecutorFactory creates the executors a read-write cache flushes with.
type ExecutorFactory[R any] interface {
	// NewWriteExecutor returns an executor for op that neither consults the
	// cache nor cascades.
	NewWriteExecutor(op Op) (Executor[R], error)
}

// WriteOperations flushes rows to the store. Executors are created on first
// use, one per kind, and must be released with Close.
type WriteOperations[R any] struct {
	factory   ExecutorFactory[R]
	keyFn     KeyFunc[R]
	executors map[Op]Executor[R]
}

func NewWriteOperations[R any](factory ExecutorFactory[R], keyFn KeyFunc[R]) *WriteOperations[R] {
	return &WriteOperations[R]{
		factory:   factory,
		keyFn:     keyFn,
		executors: make(map[Op]Executor[R], 4),
	}
}

func (w *WriteOperations[R]) Insert(ctx context.Context, row R) (int64, error) {
	return w.execute(ctx, OpInsert, row)
}

func (w *WriteOperations[R]) Update(ctx context.Context, row R) (int64, error) {
	return w.execute(ctx, OpUpdate, row)
}

func (w *WriteOperations[R]) Delete(ctx context.Context, row R) (int64, error) {
	return w.execute(ctx, OpDelete, row)
}

func (w *WriteOperations[R]) Save(ctx context.Context, row R) (int64, error) {
	return w.execute(ctx, OpSave, row)
}

func (w *WriteOperations[R]) execute(ctx context.Context, op Op, row R) (int64, error) {
	var n int64
	executor, err := w.executor(op)
	if err == nil {
		n, err = executor.Execute(ctx, row)
	}
	if err != nil {
		return 0, &WriteError{
			Op:        op,
			RowType:   fmt.Sprintf("%T", row),
			KeyValues: w.keyFn(row),
			Err:       err,
		}
	}
	return n, nil
}

func (w *WriteOperations[R]) executor(op Op) (Executor[R], error) {
	if e, ok := w.executors[op]; ok {
		return e, nil
	}
	e, err := w.factory.NewWriteExecutor(op)
	if err != nil {
		return nil, err
	}
	w.executors[op] = e
	return e, nil
}

// Close releases every executor created so far.
func (w *WriteOperations[R]) Close() error {
	var err error
	for op, e := range w.executors {
		if closeErr := e.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing %s executor: %w", op, closeErr))
		}
		delete(w.executors, op)
	}
	return err
}
