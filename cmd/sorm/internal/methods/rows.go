package methods

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creachadair/jrpc2"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sormlabs/sorm/cache"
	"github.com/sormlabs/sorm/orm"
	"github.com/sormlabs/sorm/protocol"
)

var errMissing = errors.New("missing")

// NewGetRowHandler returns a json rpc handler selecting one row by primary
// key.
func NewGetRowHandler(logger *log.Entry, tables Tables) jrpc2.Handler {
	return NewHandler(func(ctx context.Context, request protocol.GetRowRequest,
	) (protocol.GetRowResponse, error) {
		var key []any
		if err := decodeValues(request.Key, &key); err != nil {
			return protocol.GetRowResponse{}, &jrpc2.Error{
				Code:    jrpc2.InvalidParams,
				Message: fmt.Sprintf("key must be an array of primary key values: %v", err),
			}
		}
		for i, v := range key {
			key[i] = normalizeValue(v)
		}

		row, found, err := tables.Select(ctx, request.Table, key)
		if err != nil {
			logger.WithError(err).WithField("table", request.Table).Debug("could not select row")
			return protocol.GetRowResponse{}, toRPCError(err, "could not select row")
		}
		if !found {
			return protocol.GetRowResponse{}, nil
		}
		return protocol.GetRowResponse{Found: true, Row: row}, nil
	})
}

// NewWriteRowHandler returns a json rpc handler running op for one row.
func NewWriteRowHandler(logger *log.Entry, tables Tables, op cache.Op) jrpc2.Handler {
	return NewHandler(func(ctx context.Context, request protocol.WriteRowRequest,
	) (protocol.WriteRowResponse, error) {
		var row orm.Record
		err := decodeValues(request.Row, &row)
		if err == nil && row == nil {
			err = errMissing
		}
		if err != nil {
			return protocol.WriteRowResponse{}, &jrpc2.Error{
				Code:    jrpc2.InvalidParams,
				Message: fmt.Sprintf("row must be an object of column values: %v", err),
			}
		}
		for column, v := range row {
			row[column] = normalizeValue(v)
		}

		affected, err := tables.Write(ctx, op, request.Table, row)
		if err != nil {
			logger.WithError(err).
				WithField("table", request.Table).
				WithField("op", op.String()).
				Debug("could not write row")
			return protocol.WriteRowResponse{}, toRPCError(err, fmt.Sprintf("could not %s row", op))
		}
		return protocol.WriteRowResponse{Affected: affected}, nil
	})
}

func decodeValues(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errMissing
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	return decoder.Decode(v)
}

// normalizeValue turns JSON numbers into int64 where they are integral, so
// keys built from requests match keys built from stored rows.
func normalizeValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return f
}
