// Command memoauth-server serves the memo service auth endpoints over HTTP.
//
// Configuration comes from MEMOAUTH_* environment variables, optionally
// seeded from a .env.local file. Without MEMOAUTH_DATABASE_URL users are kept
// in memory and lost on restart.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/memoauth"
	"github.com/MrEthical07/memoauth/httpapi"
	promexport "github.com/MrEthical07/memoauth/metrics/export/prometheus"
	"github.com/MrEthical07/memoauth/password"
	"github.com/MrEthical07/memoauth/userstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "memoauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
	})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	users, closeUsers, err := openUserStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeUsers()

	hasher, err := password.ForName(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return err
	}

	builder := memoauth.New().
		WithConfig(cfg.Auth).
		WithRedis(rdb).
		WithUserStore(users).
		WithHasher(hasher).
		WithLogger(log)
	if cfg.Auth.Audit.Enabled {
		builder = builder.WithAuditSink(memoauth.NewSlogSink(log.With(slog.String("component", "audit"))))
	}
	mgr, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build manager: %w", err)
	}
	defer mgr.Close()

	metrics, err := promexport.Handler(mgr)
	if err != nil {
		return fmt.Errorf("metrics handler: %w", err)
	}

	api, err := httpapi.NewHandler(mgr,
		httpapi.WithLogger(log),
		httpapi.WithMetricsHandler(metrics),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server.start",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("disclosure", cfg.Auth.Login.Disclosure.String()),
		slog.Bool("blacklist_on_logout", cfg.Auth.Logout.BlacklistAccessToken),
		slog.String("hasher", cfg.PasswordHasher),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("server.stop", slog.String("reason", "signal"))
	case err := <-errCh:
		log.Error("server.fail", slog.Any("error", err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server.shutdown.fail", slog.Any("error", err))
		return err
	}

	log.Info("server.stopped")
	return nil
}

// openUserStore migrates and connects to Postgres, or falls back to the
// in-memory store when no database is configured.
func openUserStore(ctx context.Context, cfg serverConfig, log *slog.Logger) (memoauth.UserStore, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("userstore.memory", slog.String("reason", "MEMOAUTH_DATABASE_URL not set"))
		return userstore.NewMemory(), func() {}, nil
	}

	if err := userstore.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	pool, err := newPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	store, err := userstore.NewPostgres(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	conn, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	conn.Release()
	return pool, nil
}
