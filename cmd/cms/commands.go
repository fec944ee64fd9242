package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	cms "github.com/goliatone/go-cms"
	"github.com/goliatone/go-cms/config"
	"github.com/goliatone/go-cms/middleware/ratelimit"
	"github.com/goliatone/go-cms/persistence"
)

const (
	shutdownTimeout = 15 * time.Second
	slowQuery       = 500 * time.Millisecond
)

// runtime is what every command needs
type runtime struct {
	cfg    *config.Config
	logger cms.Logger
	client *persistence.Client
	db     *bun.DB
}

func setup(ctx context.Context, opts options) (*runtime, error) {
	cfg, err := config.Load(config.WithEnvFiles(opts.envFile))
	if err != nil {
		return nil, err
	}

	logger := cms.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	logger.Info("configuration loaded", "config", cfg.String())

	client, err := persistence.Open(ctx, persistence.Options{
		Driver:    cfg.Database.Driver,
		DSN:       cfg.Database.GetDSN(),
		SlowQuery: slowQuery,
		Debug:     cfg.Database.Debug,
		Logger:    logger,
		Models:    cms.Models(),
	})
	if err != nil {
		return nil, err
	}

	if err := client.RegisterMigrations(cms.GetMigrationsFS(), cms.MigrationsDir); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, client: client, db: client.DB()}, nil
}

func (r *runtime) close() {
	if err := r.client.Close(); err != nil {
		r.logger.Warn("failed to close database", "error", err)
	}
}

func (r *runtime) migrate(ctx context.Context) error {
	if err := r.client.Migrate(ctx); err != nil {
		return err
	}
	r.logger.Info("schema up to date")
	return nil
}

func (r *runtime) newApp(limiter *ratelimit.Config) (*cms.App, error) {
	return cms.NewApp(r.db, cms.AppOptions{
		Tokens:         r.cfg.Auth,
		Sanitizer:      r.cfg.Content,
		Passwords:      r.cfg.Password,
		Env:            r.cfg.Env,
		Version:        r.cfg.Version,
		APIPrefix:      r.cfg.HTTP.APIPrefix,
		RequestTimeout: r.cfg.HTTP.RequestTimeout,
		RateLimit:      limiter,
		Logger:         r.logger,
	})
}

// rateLimiter returns nil when limiting is disabled. Without a redis host
// windows are kept in memory.
func (r *runtime) rateLimiter(ctx context.Context) (*ratelimit.Config, func()) {
	if !r.cfg.Limit.Enabled {
		return nil, func() {}
	}

	cfg := &ratelimit.Config{
		Max:    r.cfg.Limit.MaxRequestsPerMin,
		Window: r.cfg.Limit.Window,
		Logger: r.logger,
	}

	addr := r.cfg.Redis.Address()
	if addr == "" {
		r.logger.Warn("no redis configured, rate limit counters are per process")
		cfg.Counter = ratelimit.NewMemoryCounter()
		return cfg, func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		// the limiter fails open, keep serving
		r.logger.Warn("redis is not reachable", "address", addr, "error", err)
	}

	cfg.Counter = ratelimit.NewRedisCounter(client)
	return cfg, func() {
		if err := client.Close(); err != nil {
			r.logger.Warn("failed to close redis client", "error", err)
		}
	}
}

func serveCommand(ctx context.Context, opts options) error {
	rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.migrate(ctx); err != nil {
		return err
	}

	limiter, closeLimiter := rt.rateLimiter(ctx)
	defer closeLimiter()

	app, err := rt.newApp(limiter)
	if err != nil {
		return err
	}

	if err := app.Bootstrap(ctx, rt.cfg.Admin.Email, rt.cfg.Admin.Password); err != nil {
		return err
	}

	addr := rt.cfg.HTTP.Address
	if opts.address != "" {
		addr = opts.address
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rt.logger.Info("http server listening", "address", addr, "prefix", rt.cfg.HTTP.APIPrefix)
		return app.Fiber.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		rt.logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func migrateCommand(ctx context.Context, opts options) error {
	rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	return rt.migrate(ctx)
}

func bootstrapCommand(ctx context.Context, opts options) error {
	rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.migrate(ctx); err != nil {
		return err
	}

	app, err := rt.newApp(nil)
	if err != nil {
		return err
	}

	return app.Bootstrap(ctx, rt.cfg.Admin.Email, rt.cfg.Admin.Password)
}
