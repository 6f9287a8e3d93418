package cache

import (
	"errors"
	"fmt"
)

// ErrorCode classifies cache-layer failures.
type ErrorCode string

const (
	// ErrDuplicate reports an insert of a key the cache already knows to exist.
	ErrDuplicate ErrorCode = "duplicate"
	// ErrIllegalOperation reports a transition that is impossible for the current state.
	ErrIllegalOperation ErrorCode = "illegal_operation"
	// ErrWrite reports a store failure while flushing uncommitted rows.
	ErrWrite ErrorCode = "write_failed"
	// ErrGeneric wraps any other cache failure.
	ErrGeneric ErrorCode = "cache"
)

// Error is the canonical error returned by caches.
type Error struct {
	Code ErrorCode
	Op   string
	Key  Key
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Code)
	if e.Op != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Op)
	}
	if !e.Key.IsZero() {
		msg = fmt.Sprintf("%s key=%s", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WriteError is returned when the store rejects a flushed row. It carries
// enough of the row to find it again.
type WriteError struct {
	Op        Op
	RowType   string
	KeyValues []any
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s %s with primary key %v: %v", e.Op, e.RowType, e.KeyValues, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, op string, key Key, format string, args ...any) error {
	return &Error{
		Code: code,
		Op:   op,
		Key:  key,
		Err:  fmt.Errorf(format, args...),
	}
}

func wrapWriteError(key Key, werr *WriteError) error {
	return &Error{Code: ErrWrite, Op: werr.Op.String(), Key: key, Err: werr}
}

// IsCode reports whether err (or any wrapped error) is a cache Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var cacheErr *Error
	return errors.As(err, &cacheErr) && cacheErr.Code == code
}
