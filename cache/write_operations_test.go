package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWriteOperationsCreatesOneExecutorPerKind(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := NewMockExecutorFactory[*student](ctrl)
	inserter := NewMockExecutor[*student](ctrl)
	deleter := NewMockExecutor[*student](ctrl)
	ctx := context.Background()
	r1, r2 := &student{ID: 1}, &student{ID: 2}

	gomock.InOrder(
		factory.EXPECT().NewWriteExecutor(OpInsert).Return(inserter, nil),
		inserter.EXPECT().Execute(ctx, r1).Return(int64(1), nil),
		inserter.EXPECT().Execute(ctx, r2).Return(int64(1), nil),
	)
	factory.EXPECT().NewWriteExecutor(OpDelete).Return(deleter, nil)
	deleter.EXPECT().Execute(ctx, r1).Return(int64(0), nil)
	inserter.EXPECT().Close().Return(nil)
	deleter.EXPECT().Close().Return(nil)

	ops := NewWriteOperations[*student](factory, studentKey)
	n, err := ops.Insert(ctx, r1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = ops.Insert(ctx, r2)
	require.NoError(t, err)
	// the affected count of the store is passed through
	n, err = ops.Delete(ctx, r1)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, ops.Close())
	// a second close has nothing left to release
	require.NoError(t, ops.Close())
}

func TestWriteOperationsWrapsStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := NewMockExecutorFactory[*student](ctrl)
	updater := NewMockExecutor[*student](ctrl)
	ctx := context.Background()
	row := &student{ID: 11}
	storeErr := errors.New("disk I/O error")

	factory.EXPECT().NewWriteExecutor(OpUpdate).Return(updater, nil)
	updater.EXPECT().Execute(ctx, row).Return(int64(0), storeErr)
	updater.EXPECT().Close().Return(nil)

	ops := NewWriteOperations[*student](factory, studentKey)
	defer func() { require.NoError(t, ops.Close()) }()

	n, err := ops.Update(ctx, row)
	assert.Zero(t, n)
	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, OpUpdate, werr.Op)
	assert.Equal(t, []any{11}, werr.KeyValues)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, "failed to update *cache.student with primary key [11]: disk I/O error", err.Error())
}

func TestWriteOperationsJoinsCloseErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := NewMockExecutorFactory[*student](ctrl)
	saver := NewMockExecutor[*student](ctrl)
	ctx := context.Background()
	row := &student{ID: 1}

	factory.EXPECT().NewWriteExecutor(OpSave).Return(saver, nil)
	saver.EXPECT().Execute(ctx, row).Return(int64(1), nil)
	saver.EXPECT().Close().Return(errors.New("statement busy"))

	ops := NewWriteOperations[*student](factory, studentKey)
	_, err := ops.Save(ctx, row)
	require.NoError(t, err)
	err = ops.Close()
	require.Error(t, err)
	assert.ErrorContains(t, err, "closing save executor: statement busy")
}

func TestReadWriteCommitReleasesExecutorsOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := NewMockExecutorFactory[*student](ctrl)
	inserter := NewMockExecutor[*student](ctrl)

	factory.EXPECT().NewWriteExecutor(OpInsert).Return(inserter, nil)
	inserter.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("UNIQUE constraint failed"))
	inserter.EXPECT().Close().Return(nil)

	c, err := NewReadWrite[*student]("students", studentKey, factory, Config{Enabled: true})
	require.NoError(t, err)
	tx := testTx("tx1")
	require.NoError(t, c.Begin(tx))
	_, err = c.Insert(&student{ID: 1})
	require.NoError(t, err)

	err = c.Commit(context.Background(), tx)
	assert.True(t, IsCode(err, ErrWrite))
	assert.Empty(t, c.Committed())
}
