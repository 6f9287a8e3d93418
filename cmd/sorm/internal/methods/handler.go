package methods

import (
	"context"
	"errors"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/sormlabs/sorm/cache"
	"github.com/sormlabs/sorm/orm"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrInvalidRow   = errors.New("invalid row")
)

// Tables is what the row and cache methods need from the daemon.
type Tables interface {
	Names() []string
	InTransaction() bool
	Select(ctx context.Context, table string, key []any) (orm.Record, bool, error)
	Write(ctx context.Context, op cache.Op, table string, row orm.Record) (int64, error)
	CacheStats() []cache.Stats
}

// NewHandler wraps fn, a function taking a context and optionally a request
// value, as a JSON RPC handler.
func NewHandler(fn any) jrpc2.Handler {
	return handler.New(fn)
}

// toRPCError maps table and cache errors to JSON RPC errors.
func toRPCError(err error, message string) *jrpc2.Error {
	code := jrpc2.InternalError
	switch {
	case errors.Is(err, ErrUnknownTable), errors.Is(err, ErrInvalidRow):
		code = jrpc2.InvalidParams
	case cache.IsCode(err, cache.ErrDuplicate), cache.IsCode(err, cache.ErrIllegalOperation):
		code = jrpc2.InvalidRequest
	}
	return &jrpc2.Error{
		Code:    code,
		Message: message + ": " + err.Error(),
	}
}
