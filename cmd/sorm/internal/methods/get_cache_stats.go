package methods

import (
	"context"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/montanaflynn/stats"

	"github.com/sormlabs/sorm/cache"
	"github.com/sormlabs/sorm/protocol"
)

// NewGetCacheStatsHandler returns a json rpc handler reporting the caches of
// the served tables.
func NewGetCacheStatsHandler(tables Tables) jrpc2.Handler {
	return NewHandler(func(_ context.Context, request protocol.GetCacheStatsRequest,
	) (protocol.GetCacheStatsResponse, error) {
		wanted := make(map[string]bool, len(request.Tables))
		for _, name := range request.Tables {
			wanted[name] = true
		}

		response := protocol.GetCacheStatsResponse{Caches: []protocol.CacheStats{}}
		for _, s := range tables.CacheStats() {
			if len(wanted) > 0 && !wanted[s.Table] {
				continue
			}
			delete(wanted, s.Table)
			converted, err := toProtocolStats(s)
			if err != nil {
				return protocol.GetCacheStatsResponse{}, &jrpc2.Error{
					Code:    jrpc2.InternalError,
					Message: fmt.Sprintf("could not summarize cache of %s: %v", s.Table, err),
				}
			}
			response.Caches = append(response.Caches, converted)
		}
		for name := range wanted {
			return protocol.GetCacheStatsResponse{}, &jrpc2.Error{
				Code:    jrpc2.InvalidParams,
				Message: fmt.Sprintf("table %s has no cache", name),
			}
		}
		return response, nil
	})
}

func toProtocolStats(s cache.Stats) (protocol.CacheStats, error) {
	out := protocol.CacheStats{
		Table:       s.Table,
		Type:        s.Type,
		Committed:   s.Committed,
		Pending:     s.Pending,
		Evicted:     s.Evicted,
		Hits:        s.Hits,
		Misses:      s.Misses,
		Flushes:     s.Flushes,
		WriteErrors: s.WriteErrors,
		Commits:     s.Commits,
		Rollbacks:   s.Rollbacks,
	}
	if selects := s.Hits + s.Misses; selects > 0 {
		out.HitRatio = float64(s.Hits) / float64(selects)
	}
	if len(s.FlushLatencies) == 0 {
		return out, nil
	}

	latencies := make(stats.Float64Data, len(s.FlushLatencies))
	for i, d := range s.FlushLatencies {
		latencies[i] = float64(d) / float64(time.Millisecond)
	}
	var err error
	if out.FlushLatency.P50, err = latencies.Percentile(50); err != nil {
		return out, err
	}
	if out.FlushLatency.P90, err = latencies.Percentile(90); err != nil {
		return out, err
	}
	if out.FlushLatency.P99, err = latencies.Percentile(99); err != nil {
		return out, err
	}
	if out.FlushLatency.Max, err = latencies.Max(); err != nil {
		return out, err
	}
	return out, nil
}
