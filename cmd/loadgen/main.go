package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"house-pricer/internal/loadgen"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		target   = flag.String("target", "http://localhost:8000", "Base URL of the pricer")
		workers  = flag.Int("workers", 5, "Concurrent workers")
		rps      = flag.Float64("rate", 5, "Requests per second across all workers")
		duration = flag.Duration("duration", 0, "Run length (0 runs until interrupted)")
		timeout  = flag.Duration("timeout", 5*time.Second, "Per-request timeout")
		rootProb = flag.Float64("root-ratio", 0.5, "Share of GET / probes")
		omitPPS  = flag.Float64("omit-pps", 0.2, "Share of predictions without price_per_sqft")
		seed     = flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	gen, err := loadgen.New(loadgen.Config{
		BaseURL:     *target,
		Workers:     *workers,
		Rate:        *rps,
		Duration:    *duration,
		Timeout:     *timeout,
		RootRatio:   *rootProb,
		OmitPPSProb: *omitPPS,
		Seed:        *seed,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := gen.Run(ctx)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("load run failed")
	}

	codes := make([]int, 0, len(stats.ByStatus))
	for code := range stats.ByStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		log.Info().Int("status", code).Int64("count", stats.ByStatus[code]).Msg("responses")
	}
}
