// Package loadgen drives synthetic traffic against a running pricer to
// exercise its metrics and latency under concurrent load.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"house-pricer/internal/common"
	"house-pricer/internal/features"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config controls a load run. Zero values select defaults.
type Config struct {
	BaseURL     string
	Workers     int
	Rate        float64       // requests per second across all workers
	Duration    time.Duration // 0 runs until ctx is cancelled
	Timeout     time.Duration // per request
	RootRatio   float64       // share of GET / probes among requests
	OmitPPSProb float64       // share of predictions sent without price_per_sqft
	Seed        int64
}

// Stats summarises a run.
type Stats struct {
	Requests    int64
	Predictions int64
	Failures    int64
	ByStatus    map[int]int64
	MeanLatency time.Duration
}

// Generator sends random, schema-valid prediction requests.
type Generator struct {
	cfg     Config
	client  *resty.Client
	limiter *rate.Limiter

	requests    atomic.Int64
	predictions atomic.Int64
	failures    atomic.Int64
	latencyNs   atomic.Int64

	mu       sync.Mutex
	byStatus map[int]int64
}

// New builds a Generator for cfg.
func New(cfg Config) (*Generator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.Rate <= 0 {
		cfg.Rate = float64(cfg.Workers)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Generator{
		cfg:      cfg,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Workers),
		byStatus: make(map[int]int64),
	}, nil
}

// Run sends traffic until the duration elapses or ctx is cancelled.
// Transport errors are counted, never returned; Run only fails on
// cancellation of a run without a duration.
func (g *Generator) Run(ctx context.Context) (Stats, error) {
	if g.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Duration)
		defer cancel()
	}

	log.Info().
		Str("target", g.cfg.BaseURL).
		Int("workers", g.cfg.Workers).
		Float64("rate", g.cfg.Rate).
		Dur("duration", g.cfg.Duration).
		Msg("load generation started")

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < g.cfg.Workers; i++ {
		rng := rand.New(rand.NewSource(g.cfg.Seed + int64(i)))
		eg.Go(func() error {
			return g.worker(ctx, rng)
		})
	}
	err := eg.Wait()

	stats := g.Stats()
	log.Info().
		Int64("requests", stats.Requests).
		Int64("predictions", stats.Predictions).
		Int64("failures", stats.Failures).
		Dur("mean_latency", stats.MeanLatency).
		Msg("load generation finished")

	if errors.Is(err, context.DeadlineExceeded) && g.cfg.Duration > 0 {
		return stats, nil
	}
	return stats, err
}

func (g *Generator) worker(ctx context.Context, rng *rand.Rand) error {
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			// Wait fails early when the next token would land past the deadline.
			<-ctx.Done()
			return ctx.Err()
		}

		var (
			resp *resty.Response
			err  error
		)
		start := time.Now()
		predict := rng.Float64() >= g.cfg.RootRatio
		if predict {
			resp, err = g.client.R().SetContext(ctx).SetBody(RandomRequest(rng, g.cfg.OmitPPSProb)).Post("/predict")
		} else {
			resp, err = g.client.R().SetContext(ctx).Get("/")
		}
		if err != nil && ctx.Err() != nil {
			// Aborted by the end of the run; not counted.
			return ctx.Err()
		}

		g.latencyNs.Add(int64(time.Since(start)))
		g.requests.Add(1)
		if predict {
			g.predictions.Add(1)
		}
		if err != nil {
			g.failures.Add(1)
			log.Warn().Err(err).Msg("request failed")
			continue
		}
		g.record(resp.StatusCode())
	}
}

func (g *Generator) record(status int) {
	if status != http.StatusOK {
		g.failures.Add(1)
	}
	g.mu.Lock()
	g.byStatus[status]++
	g.mu.Unlock()
}

// Stats returns the counters so far.
func (g *Generator) Stats() Stats {
	s := Stats{
		Requests:    g.requests.Load(),
		Predictions: g.predictions.Load(),
		Failures:    g.failures.Load(),
		ByStatus:    make(map[int]int64),
	}
	if s.Requests > 0 {
		s.MeanLatency = time.Duration(g.latencyNs.Load() / s.Requests)
	}
	g.mu.Lock()
	for k, v := range g.byStatus {
		s.ByStatus[k] = v
	}
	g.mu.Unlock()
	return s
}

// RandomRequest draws a request inside the accepted input ranges.
// With probability omitPPS the price_per_sqft field is left out.
func RandomRequest(rng *rand.Rand, omitPPS float64) features.Request {
	req := features.Request{
		Sqft:      float64(1001 + rng.Intn(3998)),
		Bedrooms:  common.MinBedrooms + rng.Intn(common.MaxBedrooms-common.MinBedrooms+1),
		Bathrooms: float64(2+rng.Intn(9)) / 2, // 1.0 .. 5.0 in halves
		Location:  common.Locations[rng.Intn(len(common.Locations))],
		YearBuilt: common.MinYearBuilt + rng.Intn(common.MaxYearBuilt-common.MinYearBuilt+1),
		Condition: common.Conditions[rng.Intn(len(common.Conditions))],
	}
	if rng.Float64() >= omitPPS {
		pps := float64(51 + rng.Intn(948))
		req.PricePerSqft = &pps
	}
	return req
}
