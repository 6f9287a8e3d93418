package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sormlabs/sorm/cache"
	"github.com/sormlabs/sorm/cmd/sorm/internal/config"
	"github.com/sormlabs/sorm/orm"
)

const (
	prometheusNamespace        = "sorm"
	maxHTTPRequestSize         = 512 * 1024 // half a megabyte
	defaultReadHeaderTimeout   = 5 * time.Second
	defaultShutdownGracePeriod = 10 * time.Second
)

type Daemon struct {
	logger          *log.Entry
	db              *orm.DB
	tables          *tableSet
	jsonRPCHandler  *Handler
	server          *http.Server
	adminServer     *http.Server
	closeOnce       sync.Once
	closeError      error
	done            chan struct{}
	metricsRegistry *prometheus.Registry
	listener        net.Listener
	adminListener   net.Listener
}

func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		d.close()
		close(d.done)
	})
	return d.closeError
}

func (d *Daemon) close() {
	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), defaultShutdownGracePeriod)
	defer shutdownRelease()
	var closeErrors []error

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.WithError(err).Error("error during sorm JSON RPC server Shutdown")
		closeErrors = append(closeErrors, err)
	}
	if d.adminServer != nil {
		if err := d.adminServer.Shutdown(shutdownCtx); err != nil {
			d.logger.WithError(err).Error("error during sorm admin server Shutdown")
			closeErrors = append(closeErrors, err)
		}
	}
	d.jsonRPCHandler.Close()
	if err := d.db.Close(); err != nil {
		d.logger.WithError(err).Error("error closing database")
		closeErrors = append(closeErrors, err)
	}
	d.closeError = errors.Join(closeErrors...)
}

// OpenDB opens the configured database and applies the migrations of
// cfg.MigrationsDir, if any.
func OpenDB(ctx context.Context, cfg *config.Config, logger *log.Entry, metrics *cache.Metrics) (*orm.DB, error) {
	opts := []orm.Option{orm.WithOpenRetries(uint64(cfg.DBOpenRetries))}
	if metrics != nil {
		opts = append(opts, orm.WithMetrics(metrics))
	}
	db, err := orm.Open(ctx, logger, cfg.SQLiteDBPath, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.MigrationsDir != "" {
		if _, err := db.Migrate(&migrate.FileMigrationSource{Dir: cfg.MigrationsDir}); err != nil {
			return nil, errors.Join(err, db.Close())
		}
	}
	return db, nil
}

// MustNew builds a daemon serving the tables of cfg, exiting on failure.
func MustNew(cfg *config.Config, logger *log.Entry) *Daemon {
	d, err := New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("could not start sorm")
	}
	return d
}

func New(cfg *config.Config, logger *log.Entry) (*Daemon, error) {
	logger = logger.WithField("subsys", "sorm")
	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cacheMetrics := cache.NewMetrics(prometheusNamespace)
	if err := cacheMetrics.Register(metricsRegistry); err != nil {
		return nil, err
	}

	db, err := OpenDB(context.Background(), cfg, logger, cacheMetrics)
	if err != nil {
		return nil, err
	}
	tables, err := newTableSet(db, cfg)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	d := &Daemon{
		logger:          logger,
		db:              db,
		tables:          tables,
		done:            make(chan struct{}),
		metricsRegistry: metricsRegistry,
	}

	jsonRPCHandler := NewJSONRPCHandler(HandlerParams{
		Tables:             tables,
		Logger:             logger,
		PrometheusRegistry: metricsRegistry,
	})
	d.jsonRPCHandler = &jsonRPCHandler

	d.listener, err = net.Listen("tcp", cfg.Endpoint)
	if err != nil {
		jsonRPCHandler.Close()
		return nil, errors.Join(err, db.Close())
	}
	d.logger.WithField("addr", d.listener.Addr().String()).Info("listening")
	d.server = &http.Server{
		Handler:           d.newRouter(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	if cfg.AdminEndpoint != "" {
		d.adminListener, err = net.Listen("tcp", cfg.AdminEndpoint)
		if err != nil {
			jsonRPCHandler.Close()
			return nil, errors.Join(err, d.listener.Close(), db.Close())
		}
		d.logger.WithField("addr", d.adminListener.Addr().String()).Info("listening on admin")
		d.adminServer = &http.Server{
			Handler:           d.newAdminRouter(),
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		}
	}
	return d, nil
}

func (d *Daemon) newRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/", http.MaxBytesHandler(d.jsonRPCHandler, maxHTTPRequestSize))
	return router
}

func (d *Daemon) newAdminRouter() http.Handler {
	router := chi.NewRouter()
	router.HandleFunc("/debug/pprof/", pprof.Index)
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("/debug/pprof/trace", pprof.Trace)
	router.Handle("/metrics", promhttp.HandlerFor(d.metricsRegistry, promhttp.HandlerOpts{}))
	return router
}

// Addr is the address the JSON RPC server listens on.
func (d *Daemon) Addr() net.Addr {
	return d.listener.Addr()
}

// AdminAddr is the address of the admin server, or nil when it is disabled.
func (d *Daemon) AdminAddr() net.Addr {
	if d.adminListener == nil {
		return nil
	}
	return d.adminListener.Addr()
}

// Serve serves requests until Close is called.
func (d *Daemon) Serve() {
	go func() {
		if err := d.server.Serve(d.listener); !errors.Is(err, http.ErrServerClosed) {
			d.logger.WithError(err).Fatal("sorm JSON RPC server encountered fatal error")
		}
	}()
	if d.adminServer != nil {
		go func() {
			if err := d.adminServer.Serve(d.adminListener); !errors.Is(err, http.ErrServerClosed) {
				d.logger.WithError(err).Error("sorm admin server encountered fatal error")
			}
		}()
	}
}

// Run serves requests until the process receives SIGINT or SIGTERM.
func (d *Daemon) Run() {
	d.Serve()

	// Shutdown gracefully when we receive an interrupt signal. First
	// server.Shutdown closes all open listeners, then closes all idle
	// connections. Finally, it waits a grace period (10s here) for connections
	// to return to idle and then shut down.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signals:
		_ = d.Close()
	case <-d.done:
		return
	}
}
