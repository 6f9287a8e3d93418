package protocol

import "encoding/json"

const (
	GetHealthMethodName      = "getHealth"
	GetVersionInfoMethodName = "getVersionInfo"
	GetCacheStatsMethodName  = "getCacheStats"
	GetRowMethodName         = "getRow"
	InsertRowMethodName      = "insertRow"
	UpdateRowMethodName      = "updateRow"
	SaveRowMethodName        = "saveRow"
	DeleteRowMethodName      = "deleteRow"
)

type GetHealthResponse struct {
	Status string `json:"status"`
	// Tables served by the daemon
	Tables []string `json:"tables"`
	// Whether a transaction is in progress
	InTransaction bool `json:"inTransaction"`
}

type GetVersionInfoResponse struct {
	Version        string `json:"version"`
	CommitHash     string `json:"commitHash"`
	BuildTimestamp string `json:"buildTimestamp"`
	Branch         string `json:"branch,omitempty"`
}

type GetCacheStatsRequest struct {
	// Tables to report on, all cached tables when empty
	Tables []string `json:"tables,omitempty"`
}

type CacheStats struct {
	Table       string `json:"table"`
	Type        string `json:"type"`
	Committed   int    `json:"committed"`
	Pending     int    `json:"pending"`
	Evicted     uint64 `json:"evicted"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Flushes     uint64 `json:"flushes"`
	WriteErrors uint64 `json:"writeErrors"`
	Commits     uint64 `json:"commits"`
	Rollbacks   uint64 `json:"rollbacks"`
	// Share of selects answered by the cache, 0 when nothing was selected
	HitRatio float64 `json:"hitRatio"`
	// Percentiles of recent commit flush durations, in milliseconds
	FlushLatency FlushLatency `json:"flushLatencyMs"`
}

type FlushLatency struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type GetCacheStatsResponse struct {
	Caches []CacheStats `json:"caches"`
}

type GetRowRequest struct {
	Table string `json:"table"`
	// Primary key values as a JSON array, in primary key column order
	Key json.RawMessage `json:"key"`
}

type GetRowResponse struct {
	Found bool           `json:"found"`
	Row   map[string]any `json:"row,omitempty"`
}

// WriteRowRequest is the request of insertRow, updateRow, saveRow and
// deleteRow. deleteRow only reads the primary key columns of Row.
type WriteRowRequest struct {
	Table string `json:"table"`
	// Column name to value
	Row json.RawMessage `json:"row"`
}

type WriteRowResponse struct {
	// Rows affected by the write
	Affected int64 `json:"affected"`
}
