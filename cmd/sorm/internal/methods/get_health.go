package methods

import (
	"context"

	"github.com/creachadair/jrpc2"

	"github.com/sormlabs/sorm/protocol"
)

// NewHealthCheck returns a health check json rpc handler
func NewHealthCheck(tables Tables) jrpc2.Handler {
	return NewHandler(func(_ context.Context) (protocol.GetHealthResponse, error) {
		return protocol.GetHealthResponse{
			Status:        "healthy",
			Tables:        tables.Names(),
			InTransaction: tables.InTransaction(),
		}, nil
	})
}
