package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/azargarov/drudge"
	"github.com/azargarov/drudge/internal/config"
	"github.com/azargarov/drudge/prommetrics"
)

const producers = 4

var errSynthetic = errors.New("synthetic failure")

type runFlags struct {
	configPath  string
	jobs        int
	workers     int
	capacity    int
	attempts    int
	failRate    float64
	rounds      int
	pin         bool
	metricsAddr string
	trace       bool
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic sha256 workload and print pool stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			return runWorkload(cmd, cfg, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML config file; DRUDGE_* variables override it")
	fl.IntVar(&f.jobs, "jobs", 10000, "Number of jobs to submit")
	fl.IntVar(&f.workers, "workers", 0, "Worker count (0 = one per CPU)")
	fl.IntVar(&f.capacity, "capacity", 0, "Queue capacity (0 = unbounded)")
	fl.IntVar(&f.attempts, "attempts", 1, "Max attempts per job")
	fl.Float64Var(&f.failRate, "fail-rate", 0, "Probability in [0,1] that an attempt fails")
	fl.IntVar(&f.rounds, "rounds", 64, "sha256 rounds per attempt")
	fl.BoolVar(&f.pin, "pin", false, "Pin workers to cores")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address")
	fl.BoolVar(&f.trace, "trace", false, "Write per-attempt spans to stderr")
	return cmd
}

// loadConfig reads the config file or environment, then applies the flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command, f *runFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadEnv()
	}
	if err != nil {
		return nil, err
	}

	fl := cmd.Flags()
	if fl.Changed("workers") {
		cfg.Pool.Workers = f.workers
	}
	if fl.Changed("capacity") {
		cfg.Pool.Capacity = f.capacity
	}
	if fl.Changed("attempts") || cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = f.attempts
	}
	if fl.Changed("pin") {
		cfg.Pool.PinWorkers = f.pin
	}
	if fl.Changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if fl.Changed("trace") {
		cfg.Trace = f.trace
	}
	if f.failRate < 0 || f.failRate > 1 {
		return nil, fmt.Errorf("--fail-rate must be in [0,1], got %v", f.failRate)
	}
	return cfg, nil
}

func runWorkload(cmd *cobra.Command, cfg *config.Config, f *runFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	opts := cfg.Options()
	opts.Ctx = ctx

	var reg *prometheus.Registry
	if cfg.Metrics.Addr != "" {
		reg = prometheus.NewRegistry()
		opts.Metrics = prommetrics.New(reg, cfg.Metrics.Namespace)
	}

	if cfg.Trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()))
		if err != nil {
			return fmt.Errorf("stdouttrace: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		defer func() { _ = tp.Shutdown(context.Background()) }()
		opts.Tracer = tp.Tracer("github.com/azargarov/drudge/cmd/drudge")
	}

	p, err := drudge.New[int](opts)
	if err != nil {
		return err
	}

	if reg != nil {
		prommetrics.RegisterPool(reg, cfg.Metrics.Namespace, p)
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.FromContext(ctx).Error("metrics server failed", lg.Any("error", err))
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	var kinds [drudge.OutcomeUnprocessed + 1]atomic.Int64
	job := func(i int) drudge.Job[int] {
		return drudge.Job[int]{
			Payload: i,
			Fn:      syntheticWork(f.rounds, f.failRate),
			Done:    func(o drudge.Outcome[int]) { kinds[o.Kind].Add(1) },
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for k := range producers {
		g.Go(func() error {
			for i := k; i < f.jobs; i += producers {
				if err := drudge.SubmitWait(gctx, p, job(i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	submitErr := g.Wait()

	mode := drudge.Graceful
	if ctx.Err() != nil {
		mode = drudge.Immediate
	}
	if err := p.Shutdown(context.Background(), mode); err != nil {
		return err
	}
	elapsed := time.Since(start)

	s := p.Stats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "backend:      %s\n", drudge.BackendName)
	fmt.Fprintf(out, "workers:      %d (cores %v)\n", p.Workers(), p.WorkerCores())
	fmt.Fprintf(out, "submitted:    %d\n", s.Submitted)
	fmt.Fprintf(out, "completed:    %d\n", s.Completed)
	fmt.Fprintf(out, "failed:       %d\n", s.Failed)
	fmt.Fprintf(out, "retried:      %d\n", s.Retried)
	fmt.Fprintf(out, "dropped:      %d\n", s.Dropped)
	for kind := drudge.OutcomeSuccess; kind <= drudge.OutcomeUnprocessed; kind++ {
		if n := kinds[kind].Load(); n > 0 {
			fmt.Fprintf(out, "  %-12s %d\n", kind.String()+":", n)
		}
	}
	fmt.Fprintf(out, "elapsed:      %v\n", elapsed.Round(time.Microsecond))
	if elapsed > 0 {
		fmt.Fprintf(out, "throughput:   %.0f jobs/s\n", float64(s.Completed+s.Failed)/elapsed.Seconds())
	}

	if submitErr != nil && !errors.Is(submitErr, context.Canceled) {
		return submitErr
	}
	return nil
}

// syntheticWork hashes the payload rounds times and fails with
// probability failRate.
func syntheticWork(rounds int, failRate float64) drudge.JobFunc[int] {
	return func(i int) error {
		var buf [sha256.Size]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		for range rounds {
			buf = sha256.Sum256(buf[:])
		}
		if failRate > 0 && rand.Float64() < failRate {
			return errSynthetic
		}
		return nil
	}
}
