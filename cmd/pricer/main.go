package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"house-pricer/internal/api"
	"house-pricer/internal/cfg"
	"house-pricer/internal/features"
	"house-pricer/internal/metrics"
	"house-pricer/internal/ml"
	"house-pricer/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	// Optional version registry
	var resolver ml.VersionResolver
	if c.RegistryPath != "" {
		registry, err := storage.Open(c.RegistryPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", c.RegistryPath).Msg("registry open failed")
		}
		defer registry.Close()
		resolver = registry
	}

	arts, err := ml.LoadArtifacts(ml.ArtifactConfig{
		Dir:              c.ArtifactsDir,
		PreprocessorFile: c.PreprocessorFile,
		ModelFile:        c.ModelFile,
		ExpectedVersion:  c.ModelVersion,
		Resolver:         resolver,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("artifact load failed, refusing to serve")
	}

	policy, err := ml.ParseBatchPolicy(c.BatchPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid batch policy")
	}

	var (
		mw             *metrics.MetricsWrapper
		metricsHandler http.Handler
	)
	if c.MetricsEnabled {
		mw = metrics.NewWrapper(metrics.New())
		metricsHandler = promhttp.Handler()
	}

	opts := ml.PipelineOptions{
		ExplainFeatures: c.ExplainFeatures,
		BatchWorkers:    c.BatchWorkers,
		MaxBatchSize:    c.MaxBatchSize,
		BatchPolicy:     policy,
	}
	apiOpts := api.Options{
		Port:                c.ListenPort,
		RequestTimeout:      c.RequestTimeout,
		RequirePricePerSqft: c.RequirePricePerSqft,
		BatchPolicy:         policy,
		MetricsHandler:      metricsHandler,
	}
	// Assigned only when enabled so the interfaces stay nil otherwise.
	var driftMetrics ml.DriftMetrics
	if mw != nil {
		opts.Metrics = mw
		apiOpts.Metrics = mw
		driftMetrics = mw
	}
	opts.Drift = ml.NewDriftMonitor(arts.Transformer, ml.DriftConfig{
		Window:    c.DriftWindow,
		Threshold: c.DriftThreshold,
	}, driftMetrics)

	pipeline, err := ml.NewPipeline(features.NewDeriver(c.Pricing), arts, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline init failed")
	}

	server, err := api.NewServer(pipeline, apiOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("server init failed")
	}

	log.Info().
		Str("model_version", pipeline.Version()).
		Int("port", c.ListenPort).
		Bool("metrics", c.MetricsEnabled).
		Bool("drift_monitoring", opts.Drift != nil).
		Str("batch_policy", string(policy)).
		Msg("house pricer ready")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	waitForShutdown(server, serverErr)
}

// setupLogging applies the configured level and output format.
func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func waitForShutdown(server *api.Server, serverErr <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err, ok := <-serverErr:
		if ok && err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("server stopped")
}
