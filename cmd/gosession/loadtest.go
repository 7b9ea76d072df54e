package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	subjects    int
	concurrency int
	ops         int
}

func newLoadtestCommand(load func() (*config.AppConfig, error)) *cobra.Command {
	opts := loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Seed sessions and measure validate and cached-profile latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.subjects <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("subjects, concurrency and ops must be > 0")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), rt.auth, opts)
		},
	}
	cmd.Flags().IntVar(&opts.subjects, "subjects", 1000, "number of subjects to log in before measuring")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "operations per phase")
	return cmd
}

type seeded struct {
	subjectID string
	token     string
}

func runLoadtest(ctx context.Context, out io.Writer, auth *goSession.Authority, opts loadtestOptions) error {
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.subjects)
	start := time.Now()
	states := make([]seeded, opts.subjects)
	for i := range states {
		id := fmt.Sprintf("loadtest-%d", i)
		issued, err := auth.RegisterOrLogin(ctx, goSession.Profile{
			ID:    id,
			Name:  "Load Test",
			Email: id + "@loadtest.invalid",
		}, true)
		if err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
		states[i] = seeded{subjectID: id, token: issued.Token}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(start).Round(time.Millisecond))

	validate := runPhase(opts, func(r *rand.Rand) error {
		_, err := auth.Validate(ctx, states[r.IntN(len(states))].token)
		return err
	})
	profile := runPhase(opts, func(r *rand.Rand) error {
		_, err := auth.GetProfile(ctx, states[r.IntN(len(states))].subjectID)
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "profile", profile)
	return nil
}

func runPhase(opts loadtestOptions, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, opts.ops)
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)*7919))
			local := make([]time.Duration, 0, opts.ops/opts.concurrency+1)
			for cursor.Add(1) <= int64(opts.ops) {
				t0 := time.Now()
				if err := op(r); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	return computeStats(time.Since(start), latencies, failures.Load())
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
		return phaseStats{total: total, failures: failures}
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

// percentile expects samples sorted ascending.
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
