package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/sessionauth/session"
)

var loadtestOpts struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
}

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Measure session read and renewal latency against Redis",
	Long: `Seeds sessions into the Redis session backend, then runs a read phase
and a locked renewal phase with concurrent workers. Without --redis-addr an
embedded miniredis is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		o := loadtestOpts
		if o.sessions <= 0 || o.concurrency <= 0 || o.ops <= 0 {
			return fmt.Errorf("sessions, concurrency and ops must be > 0")
		}
		out := cmd.OutOrStdout()

		addr := o.redisAddr
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return fmt.Errorf("start miniredis: %w", err)
			}
			defer mr.Close()
			addr = mr.Addr()
			fmt.Fprintf(out, "using miniredis at %s\n", addr)
		} else {
			fmt.Fprintf(out, "using redis at %s\n", addr)
		}

		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		defer client.Close()

		backend := session.NewRedisBackend(client, session.RedisConfig{
			Prefix:   cfg.Session.RedisPrefix,
			LockTTL:  cfg.Session.LockTTL,
			LockWait: cfg.Session.LockWait,
		})
		mgr, err := session.NewManager(session.Config{
			TTL:              cfg.Session.TTL,
			RefreshThreshold: cfg.Session.RefreshThreshold,
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		ids, err := seedSessions(ctx, backend, mgr, o.sessions, out)
		if err != nil {
			return err
		}

		readStats := runPhase(ids, o.ops, o.concurrency, func(id string) error {
			tx, err := backend.Begin(ctx)
			if err != nil {
				return err
			}
			defer tx.Rollback(ctx)
			_, err = mgr.Read(ctx, tx, id, false)
			return err
		})
		renewStats := runPhase(ids, o.ops, o.concurrency, func(id string) error {
			tx, err := backend.Begin(ctx)
			if err != nil {
				return err
			}
			defer tx.Rollback(ctx)
			s, err := mgr.Read(ctx, tx, id, true)
			if err != nil {
				return err
			}
			if err := mgr.Renew(ctx, tx, s); err != nil {
				return err
			}
			if err := tx.Flush(ctx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		})

		fmt.Fprintln(out, "---- results ----")
		printStats(out, "read", readStats)
		printStats(out, "renew", renewStats)
		return nil
	},
}

func init() {
	f := loadtestCmd.Flags()
	f.IntVar(&loadtestOpts.sessions, "sessions", 10000, "number of sessions to seed")
	f.IntVar(&loadtestOpts.concurrency, "concurrency", 64, "number of concurrent workers")
	f.IntVar(&loadtestOpts.ops, "ops", 50000, "operations per phase")
	f.StringVar(&loadtestOpts.redisAddr, "redis-addr", "", "redis address; empty uses miniredis")
}

func seedSessions(ctx context.Context, backend *session.RedisBackend, mgr *session.Manager, n int, out io.Writer) ([]string, error) {
	fmt.Fprintf(out, "seeding %d sessions...\n", n)
	start := time.Now()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := mgr.Create(fmt.Sprintf("user-%d", i%1000))
		if err != nil {
			return nil, err
		}
		tx, err := backend.Begin(ctx)
		if err != nil {
			return nil, err
		}
		if err := mgr.Save(ctx, tx, s); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("save failed: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		ids = append(ids, s.ID)
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return ids, nil
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

func runPhase(ids []string, ops, concurrency int, op func(id string) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(ids[r.Intn(len(ids))])
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
