package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/hoc-contagion/internal/config"
	"github.com/signalsfoundry/hoc-contagion/internal/experiment"
	"github.com/signalsfoundry/hoc-contagion/internal/logging"
	"github.com/signalsfoundry/hoc-contagion/internal/observability"
	"github.com/signalsfoundry/hoc-contagion/internal/results"
)

// app holds everything a command needs once flags and config are resolved.
type app struct {
	cfg     *config.Config
	log     logging.Logger
	metrics *observability.SimulationCollector
	store   *results.Store
	runner  *experiment.Runner
	jsonOut bool

	metricsSrv     *http.Server
	tracerShutdown func(context.Context) error
}

// loadConfig reads --config, applies env overrides and the persistent flag
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if p, _ := cmd.Flags().GetString("results"); p != "" {
		cfg.Results.Path = p
	}
	return cfg, nil
}

// newApp wires logging, tracing, metrics and the results store for cfg.
// The caller must call close.
func newApp(cmd *cobra.Command, cfg *config.Config) (*app, error) {
	ctx := cmd.Context()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	log := logging.New(lc)

	a := &app{cfg: cfg, log: log}
	a.jsonOut, _ = cmd.Flags().GetBool("json")

	shutdown, err := observability.InitTracing(ctx, cfg.ObservabilityTracing(), log)
	if err != nil {
		return nil, err
	}
	a.tracerShutdown = shutdown

	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimulationCollector(reg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.metrics = collector
	if cfg.Metrics.Addr != "" {
		a.metricsSrv = serveMetrics(cfg.Metrics.Addr, collector, log)
	}

	opts := []experiment.RunnerOption{experiment.WithLogger(log), experiment.WithMetrics(collector)}
	if cfg.Results.Path != "" {
		store, err := results.Open(ctx, cfg.Results.Path)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.store = store
		opts = append(opts, experiment.WithStore(store))
	}
	a.runner = experiment.NewRunner(opts...)
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.metricsSrv != nil {
		_ = a.metricsSrv.Shutdown(ctx)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn(ctx, "closing results store failed", logging.Err(err))
		}
	}
	observability.ShutdownWithTimeout(context.WithoutCancel(ctx), a.tracerShutdown, a.log)
}

func serveMetrics(addr string, collector *observability.SimulationCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
