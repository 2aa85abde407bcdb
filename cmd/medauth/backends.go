package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/ratelimit"
	"github.com/meddevice/medauth/userstore"
)

// closers releases backend connections in reverse order of opening.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openAuditStore builds the store named by cfg.Backend. Networked backends
// are wrapped in a circuit breaker when cfg.Breaker is set.
func openAuditStore(ctx context.Context, cfg medauth.AuditConfig, stdout io.Writer, logger *slog.Logger, cl *closers) (audit.Store, error) {
	var (
		store     audit.Store
		networked = true
	)

	switch cfg.Backend {
	case "memory":
		store, networked = audit.NewMemoryStore(), false

	case "stdout":
		if stdout == nil {
			stdout = os.Stdout
		}
		store, networked = audit.NewJSONWriterStore(stdout), false

	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		cl.add(client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		store = audit.NewRedisStore(client, cfg.RedisStream)

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		cl.add(func() error { pool.Close(); return nil })
		pg := audit.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		store = pg

	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open %s: %w", cfg.SQLitePath, err)
		}
		cl.add(db.Close)
		lite := audit.NewSQLiteStore(db)
		if err := lite.Migrate(ctx); err != nil {
			return nil, err
		}
		store, networked = lite, false

	case "kafka":
		writer := audit.NewKafkaWriter(audit.KafkaConfig{Brokers: cfg.Brokers, Topic: cfg.KafkaTopic})
		cl.add(writer.Close)
		store = audit.NewKafkaStore(writer)

	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}

	if networked && cfg.Breaker {
		bc := audit.DefaultBreakerConfig()
		bc.Name = "audit-" + cfg.Backend
		store = audit.NewBreakerStore(store, bc, logger)
	}

	logger.Info("audit store ready", slog.String("backend", cfg.Backend), slog.Bool("breaker", networked && cfg.Breaker))
	return store, nil
}

func openUserStore(ctx context.Context, cfg medauth.UsersConfig, logger *slog.Logger, cl *closers) (medauth.UserStore, error) {
	switch cfg.Backend {
	case "memory":
		logger.Warn("using in-memory user store; accounts are lost on restart")
		return medauth.NewMemoryUserStore(), nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		cl.add(func() error { pool.Close(); return nil })
		store := userstore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown users backend %q", cfg.Backend)
	}
}

// openRateLimiter returns nil when rate limiting is disabled.
func openRateLimiter(ctx context.Context, cfg medauth.RateLimitConfig, logger *slog.Logger, cl *closers) (*ratelimit.Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
	cl.add(client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("rate limit redis ping %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("rate limiting enabled", slog.String("redis", cfg.RedisAddr))
	return ratelimit.New(client, cfg.Prefix), nil
}
