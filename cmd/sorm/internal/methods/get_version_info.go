package methods

import (
	"context"

	"github.com/creachadair/jrpc2"

	"github.com/sormlabs/sorm/cmd/sorm/internal/config"
	"github.com/sormlabs/sorm/protocol"
)

func NewGetVersionInfoHandler() jrpc2.Handler {
	return NewHandler(func(_ context.Context) (protocol.GetVersionInfoResponse, error) {
		return protocol.GetVersionInfoResponse{
			Version:        config.Version,
			CommitHash:     config.CommitHash,
			BuildTimestamp: config.BuildTimestamp,
			Branch:         config.Branch,
		}, nil
	})
}
