package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/service"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/middleware"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Serve GET /api/v1/search?q=&limit=, GET /api/v1/stats, the cache
endpoints, /health/live, /health/ready and /metrics. Searches always see
the latest commit, so 'vecta index' can run while the server is up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.load()
			if err != nil {
				return err
			}
			defer env.close()
			if port > 0 {
				env.cfg.Server.Port = port
			}
			svc, err := env.service(cmd.Context(), true)
			if err != nil {
				return err
			}
			routes, err := newRouter(env, svc)
			if err != nil {
				return err
			}
			return listen(cmd.Context(), env, routes)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from server.port)")
	return cmd
}

func newRouter(env *environment, svc *service.Service) (http.Handler, error) {
	sr, err := svc.Searcher()
	if err != nil {
		return nil, err
	}

	checker := health.NewChecker()
	checker.Register("index", health.Required(func(ctx context.Context) error {
		_, err := sr.Stats(ctx)
		return err
	}))
	if env.cfg.Redis.Enabled {
		var ping func(context.Context) error
		if env.redis != nil {
			ping = env.redis.Ping
		}
		checker.Register("redis", health.Optional(ping))
	}
	if env.cfg.Postgres.Enabled {
		var ping func(context.Context) error
		if env.postgres != nil {
			ping = env.postgres.Ping
		}
		checker.Register("postgres", health.Optional(ping))
	}

	mux := http.NewServeMux()
	handler.New(sr, env.collector, env.cfg.Search.MaxResults).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", env.metrics.Handler())

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(env.metrics),
		middleware.Timeout(env.cfg.Server.RequestTimeout.Std()),
	), nil
}

func listen(ctx context.Context, env *environment, routes http.Handler) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", env.cfg.Server.Port),
		Handler:      routes,
		ReadTimeout:  env.cfg.Server.ReadTimeout.Std(),
		WriteTimeout: env.cfg.Server.WriteTimeout.Std(),
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		env.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), env.cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	env.logger.Info("search API listening", "addr", server.Addr, "index", env.cfg.Indexer.DataDir)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving %s: %w", server.Addr, err)
	}
	select {
	case err := <-shutdownErr:
		if err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
	case <-time.After(env.cfg.Server.ShutdownTimeout.Std() + time.Second):
	}
	env.logger.Info("search API stopped")
	return nil
}
