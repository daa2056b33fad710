// Package bootstrap holds the startup sequence shared by the shopcore
// binaries: environment and config loading, the service logger, the backing
// clients and an ordered shutdown.
package bootstrap

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/db"
	"github.com/angelmondragon/shopcore-backend/pkg/instance"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
	"github.com/angelmondragon/shopcore-backend/pkg/migrate"
	"github.com/angelmondragon/shopcore-backend/pkg/pubsub"
	"github.com/angelmondragon/shopcore-backend/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

var exit = os.Exit

type closer struct {
	name string
	fn   func() error
}

// Process is one running binary. Clients opened through it are closed in
// reverse order by Close, which also runs before any fatal exit.
type Process struct {
	name    string
	cfg     *config.Config
	logg    *logger.Logger
	closers []closer
}

// Start loads .env and the SHOPCORE_* config, then builds the service logger.
// A config error exits the process.
func Start(name string) *Process {
	logg := logger.New(logger.Options{ServiceName: name})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		exit(1)
		return nil
	}
	cfg.Service.Kind = name
	return &Process{name: name, cfg: cfg, logg: NewLogger(name, cfg)}
}

// NewLogger builds the logger for service name from the app settings.
func NewLogger(name string, cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Env:         cfg.App.Env,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
}

func (p *Process) Config() *config.Config { return p.cfg }

func (p *Process) Logger() *logger.Logger { return p.logg }

// Must closes what is open and exits when err is set.
func (p *Process) Must(err error, msg string) {
	if err == nil {
		return
	}
	p.logg.Error(context.Background(), msg, err)
	p.Close()
	exit(1)
}

// OnClose registers fn to run on Close.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close runs the registered closers newest first. Failures are logged and do
// not stop the remaining closers.
func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.logg.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Database connects to the configured database and, in dev, brings the
// schema up to date.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.cfg.DB, p.logg)
	p.Must(err, "failed to bootstrap database")
	p.OnClose("database", client.Close)
	p.Must(migrate.MaybeRunDev(ctx, p.cfg, p.logg, client), "failed to run dev migrations")
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.cfg.Redis, p.logg)
	p.Must(err, "failed to bootstrap redis")
	p.OnClose("redis", client.Close)
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.cfg.GCP, p.cfg.PubSub, p.logg)
	p.Must(err, "failed to bootstrap pubsub")
	p.OnClose("pubsub client", client.Close)
	return client
}

// Context is cancelled on SIGINT or SIGTERM. It carries env, serviceKind and
// instance plus fields on every log line.
func (p *Process) Context(fields map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	base := map[string]any{
		"env":         p.cfg.App.Env,
		"serviceKind": p.name,
		"instance":    instance.GetID(),
	}
	maps.Copy(base, fields)
	return p.logg.WithFields(ctx, base), stop
}

// ServeMetrics exposes gatherer at /metrics on PORT. Without PORT nothing
// listens.
func (p *Process) ServeMetrics(ctx context.Context, gatherer prometheus.Gatherer) {
	port := os.Getenv("PORT")
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logg.Error(ctx, "metrics listener stopped", err)
		}
	}()
	p.OnClose("metrics listener", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// Run blocks on fn, then closes the process. A failure other than
// cancellation exits non-zero.
func (p *Process) Run(ctx context.Context, fn func(context.Context) error) {
	p.logg.Info(ctx, "starting "+p.name)
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logg.Error(ctx, p.name+" stopped unexpectedly", err)
		p.Close()
		exit(1)
		return
	}
	p.logg.Info(ctx, p.name+" shut down gracefully")
	p.Close()
}
