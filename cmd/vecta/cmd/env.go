package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/events"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/service"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/workspace"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/vecta/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/resilience"
)

// connectBackoff bounds how long a command waits for an optional backend
// before carrying on without it.
var connectBackoff = resilience.Backoff{Attempts: 3, Initial: 250 * time.Millisecond, Jitter: 0.2}

// environment is what one command invocation runs against: the resolved
// workspace and config plus whichever optional backends the config enables.
type environment struct {
	ws      *workspace.Workspace
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger

	redis     *pkgredis.Client
	postgres  *postgres.Client
	collector *events.Collector
	closers   []func() error
}

func (o *rootOptions) workspace() (*workspace.Workspace, error) {
	switch {
	case o.global:
		return workspace.Global()
	case o.workspaceDir != "":
		return workspace.At(o.workspaceDir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "workspace", "", err)
	}
	ws, err := workspace.Locate(cwd)
	if errors.Is(err, workspace.ErrNotFound) {
		return workspace.At(cwd)
	}
	return ws, err
}

func (o *rootOptions) load() (*environment, error) {
	ws, err := o.workspace()
	if err != nil {
		return nil, err
	}
	var cfg *config.Config
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = ws.LoadConfig()
	}
	if err != nil {
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			err = apperrors.Wrap(apperrors.ErrInvalidInput, "config", o.configPath, err)
		}
		return nil, err
	}
	ws.Resolve(cfg)
	if o.indexPath != "" {
		cfg.Indexer.DataDir = o.indexPath
	}

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	closeLog, err := logger.Setup(level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "logging", cfg.Logging.File, err)
	}
	return &environment{
		ws:      ws,
		cfg:     cfg,
		metrics: metrics.New(),
		logger:  slog.Default().With("component", "cli"),
		closers: []func() error{closeLog},
	}, nil
}

// service builds the service over the configured index. serving adds an
// in-process query cache when Redis is not configured.
func (e *environment) service(ctx context.Context, serving bool) (*service.Service, error) {
	s, err := e.cfg.BuildSchema()
	if err != nil {
		return nil, err
	}
	opts := service.Options{
		Cache:   e.queryCache(ctx, serving),
		Events:  e.events(ctx),
		Ledger:  e.ledger(ctx),
		Metrics: e.metrics,
		Logger:  slog.Default(),
	}
	svc, err := service.New(service.Context{
		IndexPath:        e.cfg.Indexer.DataDir,
		Schema:           s,
		Rules:            e.cfg.FilterRules(),
		WriteBudget:      e.cfg.Indexer.WriteBudget,
		MaxFileSize:      e.cfg.Indexer.MaxFileSize,
		IndexBinaryNames: e.cfg.Indexer.IndexBinaryNames,
		MergePolicy:      indexer.PolicyFor(e.cfg.Indexer.MergePolicy, e.cfg.Indexer.MaxSegmentsBeforeMerge),
		ReaderCacheSize:  e.cfg.Indexer.ReaderCacheSize,
		DefaultLimit:     e.cfg.Search.DefaultLimit,
		MaxResults:       e.cfg.Search.MaxResults,
	}, opts)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, svc.Close)
	return svc, nil
}

func (e *environment) queryCache(ctx context.Context, serving bool) *cache.QueryCache {
	namespace := e.cfg.Indexer.DataDir
	if e.cfg.Redis.Enabled {
		var client *pkgredis.Client
		err := resilience.Retry(ctx, "redis connect", connectBackoff, func(ctx context.Context) error {
			var err error
			client, err = pkgredis.NewClient(ctx, e.cfg.Redis)
			return err
		})
		if err == nil {
			e.redis = client
			e.closers = append(e.closers, client.Close)
			e.logger.Info("search cache enabled", "addr", e.cfg.Redis.Addr, "ttl", e.cfg.Redis.CacheTTL.Std())
			backend := cache.Guarded(client, resilience.NewBreaker("redis", resilience.BreakerConfig{}))
			return cache.New(backend, namespace, e.cfg.Redis.CacheTTL.Std())
		}
		e.logger.Warn("redis unavailable, using in-process cache", "error", err)
	}
	if !serving || e.cfg.Search.CacheSize <= 0 {
		return nil
	}
	ttl := e.cfg.Search.CacheTTL.Std()
	return cache.New(cache.NewLocal(e.cfg.Search.CacheSize, ttl), namespace, ttl)
}

func (e *environment) events(ctx context.Context) *events.Collector {
	if !e.cfg.Kafka.Enabled {
		return nil
	}
	c := events.NewCollector(
		kafka.NewProducer(e.cfg.Kafka, e.cfg.Kafka.Topics.IndexEvents),
		kafka.NewProducer(e.cfg.Kafka, e.cfg.Kafka.Topics.SearchEvents),
		events.DefaultBufferSize,
	)
	c.Start(ctx)
	e.collector = c
	e.closers = append(e.closers, c.Close)
	return c
}

func (e *environment) ledger(ctx context.Context) *ledger.Store {
	if !e.cfg.Postgres.Enabled {
		return nil
	}
	var client *postgres.Client
	err := resilience.Retry(ctx, "postgres connect", connectBackoff, func(ctx context.Context) error {
		var err error
		client, err = postgres.New(ctx, e.cfg.Postgres)
		return err
	})
	if err != nil {
		e.logger.Warn("postgres unavailable, run history disabled", "error", postgres.Describe(err))
		return nil
	}
	store := ledger.NewStore(client.DB)
	if err := store.Migrate(ctx); err != nil {
		e.logger.Warn("run history disabled", "error", err)
		client.Close()
		return nil
	}
	e.postgres = client
	e.closers = append(e.closers, client.Close)
	return store
}

// pushMetrics sends this run's metrics to the configured Pushgateway.
func (e *environment) pushMetrics(ctx context.Context) {
	m := e.cfg.Metrics
	if !m.Enabled || m.Pushgateway == "" {
		return
	}
	if err := e.metrics.Push(ctx, m.Pushgateway, m.Job); err != nil {
		e.logger.Warn("metrics push failed", "error", err)
	}
}

func (e *environment) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Debug("close failed", "error", err)
		}
	}
}

// inBackground runs work on its own goroutine while the foreground shows
// elapsed time on a terminal.
func inBackground[T any](ctx context.Context, progress io.Writer, label string, work func(context.Context) (T, error)) (T, time.Duration, error) {
	start := time.Now()
	done := make(chan struct{})
	var result T

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		var err error
		result, err = work(gctx)
		return err
	})
	if isTerminal(progress) {
		g.Go(func() error {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					fmt.Fprint(progress, "\r\033[K")
					return nil
				case <-ticker.C:
					fmt.Fprintf(progress, "\r%s... %s", label, time.Since(start).Round(time.Second))
				}
			}
		})
	}
	err := g.Wait()
	return result, time.Since(start), err
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
