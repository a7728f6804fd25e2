package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nutritrack/authcore"
)

type loadTestOptions struct {
	users       int
	concurrency int
	ops         int
}

// loadUser is one seeded account. mu serialises refresh rotation for it.
type loadUser struct {
	mu       sync.Mutex
	identity authcore.Identity
	pair     authcore.TokenPair
}

func newLoadTestCommand(server *ServerOptions) *cobra.Command {
	lt := loadTestOptions{users: 1000, concurrency: 64, ops: 20000}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure resolve and refresh latency against the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if lt.users <= 0 || lt.concurrency <= 0 || lt.ops <= 0 {
				return errors.New("users, concurrency and ops must be > 0")
			}
			return runLoadTest(cmd.Context(), cmd.OutOrStdout(), server, lt)
		},
	}
	cmd.Flags().IntVar(&lt.users, "users", lt.users, "Number of accounts to seed.")
	cmd.Flags().IntVar(&lt.concurrency, "concurrency", lt.concurrency, "Concurrent workers.")
	cmd.Flags().IntVar(&lt.ops, "ops", lt.ops, "Operations per phase.")
	return cmd
}

func runLoadTest(ctx context.Context, out io.Writer, server *ServerOptions, lt loadTestOptions) error {
	opts := *server
	opts.DevKeys = true
	opts.Postgres.DSN = ""
	// Cheap hashing keeps seeding fast; throttles would reject the synthetic load.
	opts.Auth.Password.Memory = 8 * 1024
	opts.Auth.Password.Time = 1
	opts.Auth.Password.Parallelism = 1
	opts.Auth.Security.EnableIPThrottle = false
	opts.Auth.Security.EnableRefreshThrottle = false

	log := zap.NewNop()
	b, err := openBackends(ctx, &opts, log)
	if err != nil {
		return err
	}
	defer b.close()

	engine, err := buildEngine(&opts, b, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	users, err := seedUsers(ctx, out, engine, lt.users)
	if err != nil {
		return err
	}

	resolve := runPhase(lt, func(r *rand.Rand) error {
		u := users[r.Intn(len(users))]
		u.mu.Lock()
		token := u.pair.AccessToken
		u.mu.Unlock()
		_, err := engine.ResolveFromAccessToken(ctx, token)
		return err
	})
	refresh := runPhase(lt, func(r *rand.Rand) error {
		u := users[r.Intn(len(users))]
		u.mu.Lock()
		defer u.mu.Unlock()
		_, pair, err := engine.Refresh(ctx, u.pair.RefreshToken)
		if err == nil {
			u.pair = pair
		}
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "resolve", resolve)
	printStats(out, "refresh", refresh)
	return nil
}

func seedUsers(ctx context.Context, out io.Writer, engine *authcore.Engine, n int) ([]*loadUser, error) {
	fmt.Fprintf(out, "seeding %d users...\n", n)
	start := time.Now()
	users := make([]*loadUser, n)
	for i := range users {
		name := fmt.Sprintf("load-%d", i)
		id, err := engine.Register(ctx, authcore.RegisterInput{
			Username: name,
			Email:    name + "@load.invalid",
			Password: "load-test-password",
		})
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		pair, err := engine.IssueTokenPair(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		users[i] = &loadUser{identity: id, pair: pair}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return users, nil
}

// runPhase runs lt.ops calls of op across lt.concurrency workers.
func runPhase(lt loadTestOptions, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, lt.ops)
	)

	start := time.Now()
	for w := 0; w < lt.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > lt.ops {
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

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
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
