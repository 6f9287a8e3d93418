package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sormlabs/sorm/cache"
	"github.com/sormlabs/sorm/cmd/sorm/internal/methods"
	"github.com/sormlabs/sorm/protocol"
)

var requestCounter atomic.Uint64

func nextRequestID() uint64 {
	return requestCounter.Add(1)
}

// Handler is the HTTP handler which serves the sorm JSON RPC responses
type Handler struct {
	bridge jhttp.Bridge
	logger *log.Entry
	http.Handler
}

// Close closes all the resources held by the Handler instances.
// After Close is called the Handler instance will stop accepting JSON RPC requests.
func (h Handler) Close() {
	if err := h.bridge.Close(); err != nil {
		h.logger.WithError(err).Warn("could not close bridge")
	}
}

type HandlerParams struct {
	Tables             methods.Tables
	Logger             *log.Entry
	PrometheusRegistry prometheus.Registerer
}

func decorateHandlers(logger *log.Entry, registry prometheus.Registerer, m handler.Map) handler.Map {
	requestMetric := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  prometheusNamespace,
		Subsystem:  "json_rpc",
		Name:       "request_duration_seconds",
		Help:       "JSON RPC request duration",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"endpoint", "status"})
	registry.MustRegister(requestMetric)

	decorated := handler.Map{}
	for endpoint, h := range m {
		decorated[endpoint] = func(ctx context.Context, r *jrpc2.Request) (interface{}, error) {
			reqID := strconv.FormatUint(nextRequestID(), 10)
			logRequest(logger, reqID, r)
			startTime := time.Now()
			result, err := h(ctx, r)
			duration := time.Since(startTime)
			label := prometheus.Labels{"endpoint": r.Method(), "status": "ok"}
			if err != nil {
				label["status"] = "error"
				if rpcErr, ok := err.(*jrpc2.Error); ok {
					label["status"] = strconv.Itoa(int(rpcErr.Code))
				}
			}
			requestMetric.With(label).Observe(duration.Seconds())
			logResponse(logger, reqID, duration, label["status"], result)
			return result, err
		}
	}
	return decorated
}

// NewJSONRPCHandler constructs a Handler instance
func NewJSONRPCHandler(params HandlerParams) Handler {
	tables := params.Tables
	logger := params.Logger
	handlers := handler.Map{
		protocol.GetHealthMethodName:      methods.NewHealthCheck(tables),
		protocol.GetVersionInfoMethodName: methods.NewGetVersionInfoHandler(),
		protocol.GetCacheStatsMethodName:  methods.NewGetCacheStatsHandler(tables),
		protocol.GetRowMethodName:         methods.NewGetRowHandler(logger, tables),
		protocol.InsertRowMethodName:      methods.NewWriteRowHandler(logger, tables, cache.OpInsert),
		protocol.UpdateRowMethodName:      methods.NewWriteRowHandler(logger, tables, cache.OpUpdate),
		protocol.SaveRowMethodName:        methods.NewWriteRowHandler(logger, tables, cache.OpSave),
		protocol.DeleteRowMethodName:      methods.NewWriteRowHandler(logger, tables, cache.OpDelete),
	}

	bridge := jhttp.NewBridge(decorateHandlers(logger, params.PrometheusRegistry, handlers), nil)

	// globally enable CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{},
		AllowOriginRequestFunc: func(*http.Request, string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
	})

	return Handler{
		bridge:  bridge,
		logger:  logger,
		Handler: corsMiddleware.Handler(bridge),
	}
}

func logRequest(logger *log.Entry, reqID string, req *jrpc2.Request) {
	logger = logger.WithFields(log.F{
		"subsys":   "jsonrpc",
		"req":      reqID,
		"json_req": req.ID(),
		"method":   req.Method(),
	})
	logger.Info("starting JSONRPC request")

	// Params are useful but can be really verbose, let's only print them in debug level
	logger = logger.WithField("params", req.ParamString())
	logger.Debug("starting JSONRPC request params")
}

func logResponse(logger *log.Entry, reqID string, duration time.Duration, status string, response any) {
	logger = logger.WithFields(log.F{
		"subsys":   "jsonrpc",
		"req":      reqID,
		"duration": duration.String(),
		"status":   status,
	})
	logger.Info("finished JSONRPC request")

	if status == "ok" {
		responseBytes, err := json.Marshal(response)
		if err == nil {
			// the result is useful but can be really verbose, let's only print it with debug level
			logger = logger.WithField("result", string(responseBytes))
			logger.Debug("finished JSONRPC request result")
		}
	}
}
