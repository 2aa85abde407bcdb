package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/password"
	"github.com/meddevice/medauth/permission"
)

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
}

type seededUser struct {
	id     uuid.UUID
	header string
	claims *jwt.Claims
}

func loadtestCmd() *cobra.Command {
	opts := loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure token validation and authorization throughput with a Redis audit stream",
		Long: `Seeds accounts, then runs two phases against one engine: bearer token
authentication and patient record authorization. Every denial lands in a
Redis audit stream. Without --redis-addr (or REDIS_ADDR) an embedded
miniredis is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("users, concurrency, and ops must be > 0")
			}
			if opts.redisAddr == "" {
				opts.redisAddr = os.Getenv("REDIS_ADDR")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.users, "users", 200, "number of accounts to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 100000, "operations per phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address for the audit stream")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	var client redis.UniversalClient
	if opts.redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		opts.redisAddr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", opts.redisAddr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", opts.redisAddr)
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{opts.redisAddr}})
	defer client.Close()

	secret, err := jwt.GenerateSecret()
	if err != nil {
		return err
	}
	cfg := medauth.DefaultConfig()
	cfg.JWT.Secret = secret
	// Seeding cost is not what is being measured.
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Metrics.EnableLatencyHistograms = true

	stream := "medauth:loadtest:" + uuid.NewString()
	engine, err := medauth.New().
		WithConfig(cfg).
		WithUserStore(medauth.NewMemoryUserStore()).
		WithAuditStore(audit.NewRedisStore(client, stream)).
		Build()
	if err != nil {
		return err
	}

	users, err := seedUsers(ctx, engine, opts.users)
	if err != nil {
		return err
	}

	authn := runPhase(opts, func(r *rand.Rand) error {
		u := users[r.Intn(len(users))]
		_, err := engine.Authenticate(ctx, u.header)
		return err
	})
	authz := runPhase(opts, func(r *rand.Rand) error {
		u := users[r.Intn(len(users))]
		owner := users[r.Intn(len(users))].id
		err := engine.Authorize(ctx, u.claims, "patient", owner, "read")
		if medauth.KindOf(err) == medauth.KindAuthorization {
			return nil
		}
		return err
	})

	entries, err := client.XLen(ctx, stream).Result()
	if err != nil {
		return fmt.Errorf("read audit stream length: %w", err)
	}

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "authenticate", authn)
	printStats(out, "authorize", authz)
	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "authorization: allowed=%d denied=%d audit_entries=%d audit_failures=%d\n",
		snap.Counters[medauth.MetricAuthorizationAllowed],
		snap.Counters[medauth.MetricAuthorizationDenied],
		entries,
		engine.AuditFailures(),
	)
	return nil
}

// seedUsers registers one patient per slot with a few clinicians mixed in,
// so authorization sees both owner checks and role grants.
func seedUsers(ctx context.Context, engine *medauth.Engine, n int) ([]seededUser, error) {
	users := make([]seededUser, n)
	for i := range users {
		role := permission.RolePatient
		if i%10 == 0 {
			role = permission.RoleDoctor
		}
		resp, err := engine.Register(ctx, medauth.RegisterRequest{
			Email:     fmt.Sprintf("load-%d@medauth.test", i),
			Password:  "L0ad!Test-pass",
			FirstName: "Load",
			LastName:  fmt.Sprintf("User%d", i),
			Role:      role.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("seed user %d: %w", i, err)
		}
		header := "Bearer " + resp.AccessToken
		claims, err := engine.Authenticate(ctx, header)
		if err != nil {
			return nil, fmt.Errorf("seed user %d: %w", i, err)
		}
		users[i] = seededUser{id: resp.User.ID, header: header, claims: claims}
	}
	return users, nil
}

func runPhase(opts loadtestOptions, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
