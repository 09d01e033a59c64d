package ml

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"house-pricer/internal/common"
	"house-pricer/internal/features"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Confidence band factors. The band is a fixed ±10% heuristic around the
// point estimate, not a statistically derived interval.
const (
	IntervalLowerFactor = 0.9
	IntervalUpperFactor = 1.1
	currencyPlaces      = 2
)

// MetricsInterface defines metrics methods needed by the pipeline
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc(kind string)
	PredictionLatencyObserve(float64)
	PredictedPriceObserve(float64)
	BatchSizeObserve(int)
	ArtifactAgeSet(float64)
}

// Result is the outcome of one prediction.
type Result struct {
	PredictedPrice     float64            `json:"predicted_price"`
	ConfidenceInterval [2]float64         `json:"confidence_interval"`
	FeaturesImportance map[string]float64 `json:"features_importance"`
	PredictionTime     time.Time          `json:"prediction_time"`
}

// PipelineOptions configures a Pipeline. Zero values select defaults.
type PipelineOptions struct {
	ExplainFeatures bool
	BatchWorkers    int
	MaxBatchSize    int
	BatchPolicy     BatchPolicy
	Metrics         MetricsInterface
	Drift           *DriftMonitor // optional
	Now             func() time.Time
}

// HealthStatus summarises the pipeline for health endpoints.
type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	ModelLoaded     bool      `json:"model_loaded"`
	ModelVersion    string    `json:"model_version"`
	PredictionCount int64     `json:"prediction_count"`
	ErrorCount      int64     `json:"error_count"`
	ErrorRate       float64   `json:"error_rate"`
	LastError       string    `json:"last_error,omitempty"`
	LoadedAt        time.Time `json:"loaded_at"`
	UptimeSeconds   float64   `json:"uptime_seconds"`

	Drift map[string]float64 `json:"drift,omitempty"`
}

// ModelInfo describes the loaded artifacts.
type ModelInfo struct {
	Version        string    `json:"version"`
	Format         string    `json:"format"`
	InputFeatures  []string  `json:"input_features"`
	OutputFeatures []string  `json:"output_features"`
	LoadedAt       time.Time `json:"loaded_at"`
	ModifiedAt     time.Time `json:"modified_at"`
}

// Pipeline turns requests into priced results. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	deriver     *features.Deriver
	transformer Transformer
	scorer      Scorer
	artifacts   *Artifacts
	opts        PipelineOptions
	now         func() time.Time

	predictions atomic.Int64
	errors      atomic.Int64
	lastError   atomic.Value // string
	startTime   time.Time
}

// NewPipeline wires a deriver to loaded artifacts. It rejects artifacts whose
// input order differs from features.Order or whose layouts disagree.
func NewPipeline(deriver *features.Deriver, arts *Artifacts, opts PipelineOptions) (*Pipeline, error) {
	if deriver == nil {
		return nil, fmt.Errorf("deriver is nil")
	}
	if arts == nil || arts.Transformer == nil || arts.Scorer == nil {
		return nil, common.StartupFailure("pipeline", fmt.Errorf("artifacts not loaded"))
	}
	if !sameNames(arts.Transformer.InputFeatures(), features.Order) {
		return nil, common.StartupFailure("feature_order",
			fmt.Errorf("transformer inputs %v do not match %v", arts.Transformer.InputFeatures(), features.Order))
	}
	if !sameNames(arts.Transformer.OutputFeatures(), arts.Scorer.FeatureNames()) {
		return nil, common.StartupFailure("feature_order",
			fmt.Errorf("scorer features %v do not match transformer outputs %v",
				arts.Scorer.FeatureNames(), arts.Transformer.OutputFeatures()))
	}

	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = common.DefaultBatchWorkers
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = common.DefaultMaxBatchSize
	}
	if opts.BatchPolicy == "" {
		opts.BatchPolicy = BatchIsolate
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	p := &Pipeline{
		deriver:     deriver,
		transformer: arts.Transformer,
		scorer:      arts.Scorer,
		artifacts:   arts,
		opts:        opts,
		now:         now,
		startTime:   time.Now(),
	}

	if p.opts.Metrics != nil && !arts.ModifiedAt.IsZero() {
		p.opts.Metrics.ArtifactAgeSet(time.Since(arts.ModifiedAt).Seconds())
	}

	return p, nil
}

// Predict prices a single request.
func (p *Pipeline) Predict(ctx context.Context, req features.Request) (Result, error) {
	start := time.Now()
	defer func() {
		if p.opts.Metrics != nil {
			p.opts.Metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		}
	}()

	select {
	case <-ctx.Done():
		return Result{}, p.fail(common.PredictionFailed("canceled", ctx.Err()))
	default:
	}

	rec, err := p.deriver.Derive(req)
	if err != nil {
		return Result{}, p.fail(err)
	}
	p.opts.Drift.Observe(rec)

	var vec []float64
	if err := guard("transform", func() (err error) {
		vec, err = p.transformer.Transform(rec)
		return err
	}); err != nil {
		return Result{}, p.fail(common.PredictionFailed("transform", err))
	}
	if want := len(p.scorer.FeatureNames()); len(vec) != want {
		return Result{}, p.fail(common.PredictionFailed("transform",
			fmt.Errorf("transformer produced %d values, scorer expects %d", len(vec), want)))
	}

	var raw float64
	if err := guard("score", func() (err error) {
		raw, err = p.scorer.Score(vec)
		return err
	}); err != nil {
		return Result{}, p.fail(common.PredictionFailed("score", err))
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Result{}, p.fail(common.PredictionFailed("score", fmt.Errorf("non-finite score %v", raw)))
	}

	price := RoundCurrency(raw)
	result := Result{
		PredictedPrice:     price,
		ConfidenceInterval: ConfidenceInterval(price),
		FeaturesImportance: map[string]float64{},
		PredictionTime:     p.now(),
	}
	if p.opts.ExplainFeatures {
		result.FeaturesImportance = p.importance(vec)
	}

	p.predictions.Add(1)
	if p.opts.Metrics != nil {
		p.opts.Metrics.PredictionsInc()
		p.opts.Metrics.PredictedPriceObserve(price)
	}

	log.Debug().
		Interface("features", rec.Values()).
		Str("price_per_sqft_source", string(rec.PricePerSqftSource())).
		Float64("predicted_price", price).
		Msg("prediction successful")

	return result, nil
}

func (p *Pipeline) fail(err error) error {
	p.errors.Add(1)
	p.lastError.Store(err.Error())
	if p.opts.Metrics != nil {
		p.opts.Metrics.PredictionFailuresInc(string(common.KindOf(err)))
	}
	log.Warn().Err(err).Str("kind", string(common.KindOf(err))).Msg("prediction rejected")
	return err
}

// guard runs fn and converts a panic raised by artifact code into an error,
// so one bad request cannot take the process down.
func guard(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during %s: %v", step, r)
		}
	}()
	return fn()
}

// RoundCurrency rounds v to two decimal places, half away from zero.
func RoundCurrency(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(currencyPlaces).Float64()
	return f
}

// ConfidenceInterval returns the ±10% band around price, rounded to currency
// precision and ordered so that lower <= upper.
func ConfidenceInterval(price float64) [2]float64 {
	lower := RoundCurrency(price * IntervalLowerFactor)
	upper := RoundCurrency(price * IntervalUpperFactor)
	if lower > upper {
		lower, upper = upper, lower
	}
	return [2]float64{lower, upper}
}

// Version returns the served artifact version.
func (p *Pipeline) Version() string {
	return p.artifacts.Version
}

// Info describes the loaded artifacts.
func (p *Pipeline) Info() ModelInfo {
	return ModelInfo{
		Version:        p.artifacts.Version,
		Format:         ArtifactFormat,
		InputFeatures:  p.transformer.InputFeatures(),
		OutputFeatures: p.transformer.OutputFeatures(),
		LoadedAt:       p.artifacts.LoadedAt,
		ModifiedAt:     p.artifacts.ModifiedAt,
	}
}

// Health returns the current health status. The pipeline is healthy once
// artifacts are loaded; request-level failures only show in the counters.
func (p *Pipeline) Health() HealthStatus {
	predictions := p.predictions.Load()
	errs := p.errors.Load()

	var errorRate float64
	if total := predictions + errs; total > 0 {
		errorRate = float64(errs) / float64(total)
	}
	lastErr, _ := p.lastError.Load().(string)

	return HealthStatus{
		Healthy:         p.transformer != nil && p.scorer != nil,
		ModelLoaded:     p.transformer != nil && p.scorer != nil,
		ModelVersion:    p.artifacts.Version,
		PredictionCount: predictions,
		ErrorCount:      errs,
		ErrorRate:       errorRate,
		LastError:       lastErr,
		LoadedAt:        p.artifacts.LoadedAt,
		UptimeSeconds:   time.Since(p.startTime).Seconds(),
		Drift:           p.opts.Drift.Scores(),
	}
}
