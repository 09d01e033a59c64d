package evaluate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"house-pricer/internal/common"
	"house-pricer/internal/features"
	"house-pricer/internal/ml"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// Predictor prices batches of requests.
type Predictor interface {
	PredictBatch(ctx context.Context, reqs []features.Request) ([]ml.BatchItem, error)
	Version() string
}

// Prediction is the outcome for one sample.
type Prediction struct {
	Line      int
	Location  string
	Condition string
	Actual    float64
	Predicted float64
	Lower     float64
	Upper     float64
	Error     string // set when the pipeline rejected the sample
}

// Covered reports whether the actual price lies inside the interval.
func (p Prediction) Covered() bool {
	return p.Error == "" && p.Actual >= p.Lower && p.Actual <= p.Upper
}

// GroupStats are accuracy figures for one location.
type GroupStats struct {
	Count    int     `json:"count"`
	MAE      float64 `json:"mae"`
	MAPE     float64 `json:"mape"`
	Coverage float64 `json:"coverage"`
}

// Results holds the evaluation outcome.
type Results struct {
	ModelVersion string    `json:"model_version"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`

	Samples  int            `json:"samples"`
	Scored   int            `json:"scored"`
	Rejected map[string]int `json:"rejected"` // by error kind

	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	MAPE     float64 `json:"mape"`
	R2       float64 `json:"r2"`
	Bias     float64 `json:"bias"`     // mean of predicted - actual
	Coverage float64 `json:"coverage"` // share of actual prices inside the interval

	ByLocation  map[string]*GroupStats `json:"by_location"`
	Predictions []Prediction           `json:"-"`
}

// Engine runs samples through a predictor in batches.
type Engine struct {
	predictor Predictor
	batchSize int
}

// NewEngine creates an engine sending batches of at most batchSize.
func NewEngine(predictor Predictor, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = common.DefaultMaxBatchSize
	}
	return &Engine{predictor: predictor, batchSize: batchSize}
}

// Run scores every sample. Rejected samples are counted by error kind and
// excluded from the accuracy figures; only a failed batch call aborts.
func (e *Engine) Run(ctx context.Context, samples []Sample) (*Results, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to evaluate")
	}

	results := &Results{
		ModelVersion: e.predictor.Version(),
		StartTime:    time.Now(),
		Samples:      len(samples),
		Rejected:     make(map[string]int),
		ByLocation:   make(map[string]*GroupStats),
		Predictions:  make([]Prediction, 0, len(samples)),
	}

	for start := 0; start < len(samples); start += e.batchSize {
		end := min(start+e.batchSize, len(samples))
		chunk := samples[start:end]

		reqs := make([]features.Request, len(chunk))
		for i, s := range chunk {
			reqs[i] = s.Request
		}

		items, err := e.predictor.PredictBatch(ctx, reqs)
		if err != nil {
			return nil, fmt.Errorf("batch starting at line %d: %w", chunk[0].Line, err)
		}

		for i, item := range items {
			s := chunk[i]
			p := Prediction{
				Line:      s.Line,
				Location:  s.Request.Location,
				Condition: s.Request.Condition,
				Actual:    s.Actual,
			}
			if item.Err != nil {
				p.Error = item.Err.Error()
				results.Rejected[string(common.KindOf(item.Err))]++
				log.Debug().Err(item.Err).Int("line", s.Line).Msg("sample rejected")
			} else {
				p.Predicted = item.Result.PredictedPrice
				p.Lower = item.Result.ConfidenceInterval[0]
				p.Upper = item.Result.ConfidenceInterval[1]
			}
			results.Predictions = append(results.Predictions, p)
		}

		log.Debug().Int("done", end).Int("total", len(samples)).Msg("evaluation progress")
	}

	results.EndTime = time.Now()
	results.calculateMetrics()
	return results, nil
}

func (r *Results) calculateMetrics() {
	var actual, predicted []float64
	var absErr, sqErr, pctErr, diff float64
	covered := 0

	for _, p := range r.Predictions {
		if p.Error != "" {
			continue
		}
		actual = append(actual, p.Actual)
		predicted = append(predicted, p.Predicted)

		d := p.Predicted - p.Actual
		diff += d
		absErr += math.Abs(d)
		sqErr += d * d
		pctErr += math.Abs(d) / p.Actual
		if p.Covered() {
			covered++
		}

		g := r.ByLocation[p.Location]
		if g == nil {
			g = &GroupStats{}
			r.ByLocation[p.Location] = g
		}
		g.Count++
		g.MAE += math.Abs(d)
		g.MAPE += math.Abs(d) / p.Actual
		if p.Covered() {
			g.Coverage++
		}
	}

	r.Scored = len(actual)
	if r.Scored == 0 {
		return
	}
	n := float64(r.Scored)
	r.MAE = absErr / n
	r.RMSE = math.Sqrt(sqErr / n)
	r.MAPE = pctErr / n
	r.Bias = diff / n
	r.Coverage = float64(covered) / n
	if r.Scored > 1 && stat.Variance(actual, nil) > 0 {
		r.R2 = stat.RSquaredFrom(predicted, actual, nil)
	}

	for _, g := range r.ByLocation {
		c := float64(g.Count)
		g.MAE /= c
		g.MAPE /= c
		g.Coverage /= c
	}
}

// Locations returns the evaluated locations in name order.
func (r *Results) Locations() []string {
	names := make([]string, 0, len(r.ByLocation))
	for name := range r.ByLocation {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
