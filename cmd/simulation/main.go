package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	pl "github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/config"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/display"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/interfaces"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/metrics"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/store"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/infrastructure/queue"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/utils"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/exp/slog"
)

func main() {
	logLevel := flag.String("log-level", "info", "Log level")
	configPath := flag.String("config", "", "Path to config.yml (defaults to config/config.yml)")
	users := flag.Int("users", -1, "Override simulation.users")
	attackers := flag.Int("attackers", -1, "Override simulation.attackers")
	capacity := flag.Int("capacity", -1, "Override simulation.capacity")
	maxTicks := flag.Int("maxTicks", -1, "Override simulation.maxTicks")
	runs := flag.Int("runs", -1, "Override simulation.runs")
	seed := flag.Int64("seed", -1, "Override simulation.seed")
	plot := flag.Bool("plot", false, "Render plots into the output directory")
	histogramBuckets := flag.Int("histogramBuckets", 10, "Number of bars in the run length histogram")

	flag.Usage = flag.PrintDefaults
	flag.Parse()

	pl.SetUpLogrusAndSlog(*logLevel)

	// set GOMAXPROCS
	if _, err := maxprocs.Set(); err != nil {
		logError("failed to set max procs", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logError("failed to load config", err)
		os.Exit(1)
	}
	override(&cfg.Simulation.Users, *users)
	override(&cfg.Simulation.Attackers, *attackers)
	override(&cfg.Simulation.Capacity, *capacity)
	override(&cfg.Simulation.MaxTicks, *maxTicks)
	override(&cfg.Simulation.Runs, *runs)
	if *seed >= 0 {
		cfg.Simulation.Seed = *seed
	}
	if err = cfg.Validate(); err != nil {
		if errs.IsPrecondition(err) {
			logError("invalid configuration", err)
		} else {
			logError("failed to validate configuration", err)
		}
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err = run(ctx, cfg, *plot, *histogramBuckets); err != nil {
		logError("simulation failed", err)
		os.Exit(1)
	}
}

func logError(msg string, err error) {
	slog.Error(msg, err)
}

func override(field *int, value int) {
	if value >= 0 {
		*field = value
	}
}

func run(ctx context.Context, cfg *config.Config, plot bool, histogramBuckets int) error {
	sinks := make([]interfaces.MetricsSink, 0)

	if cfg.Metrics.Address != "" {
		registry := metrics.NewRegistry()
		sinks = append(sinks, registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		go func() {
			slog.Info("serving metrics", "address", cfg.Metrics.Address)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logError("metrics server stopped", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logError("failed to shut down metrics server", err)
			}
		}()
	}

	var db *store.Store
	if cfg.Store.DSN != "" {
		var err error
		if db, err = store.Open(cfg.Store.Driver, cfg.Store.DSN); err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	if cfg.Queue.URL != "" {
		publisher, err := queue.Connect(cfg.Queue.URL, cfg.Queue.Name)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	p := cfg.ToParameters()
	slog.Info("starting simulation", "parameters", p.Hash(), "runs", cfg.Simulation.Runs, "workers", cfg.Simulation.Workers)

	results, err := simulation.RunMany(ctx, p, cfg.Simulation.Runs, cfg.Simulation.Workers, metrics.NewMulti(sinks...))
	if err != nil {
		return err
	}

	if db != nil {
		for _, r := range results {
			if err = db.SaveResult(r); err != nil {
				return err
			}
		}
	}

	if err = writeResults(cfg.Output.Dir, results); err != nil {
		return err
	}

	if plot {
		images, err := display.PlotRuns(results, cfg.Output.Dir, histogramBuckets)
		if err != nil {
			return pl.WrapError(err, "failed to plot results")
		}
		slog.Info("plots written", "buckets", images.Buckets, "occupancy", images.Occupancy, "attackers", images.Attackers, "duration", images.Duration)
	}

	ticks := make([]int, len(results))
	clean := 0
	for i, r := range results {
		last := r.Last()
		ticks[i] = last.Tick
		if r.Clean {
			clean++
		}
		fmt.Printf("run %s seed=%d ticks=%d buckets=%d occupancy=%.2f evictedAttackers=%d evictedBenign=%d remainingAttackers=%d (%s)\n",
			r.RunId, r.P.Seed, last.Tick, last.Buckets, last.AverageOccupancy, last.EvictedAttackers, last.EvictedBenign, last.RemainingAttackers, r.Reason)
		for _, s := range r.Suspects {
			fmt.Printf("  suspect user=%d risk=%.3f\n", s.User, s.Risk)
		}
	}
	slog.Info("simulation done", "runs", len(results), "clean", clean, "meanTicks", utils.Mean(ticks))
	return nil
}

func writeResults(dir string, results []*data.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pl.WrapError(err, "failed to create output directory %s", dir)
	}
	str, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return pl.WrapError(err, "couldn't marshal results")
	}
	path := filepath.Join(dir, "results.json")
	if err = os.WriteFile(path, str, 0o644); err != nil {
		return pl.WrapError(err, "failed to write %s", path)
	}
	slog.Info("results written", "path", path)
	return nil
}
