package ml

import (
	"math"
	"sort"
	"sync"
	"time"

	"house-pricer/internal/features"

	"github.com/rs/zerolog/log"
)

// DriftConfig configures input drift monitoring.
type DriftConfig struct {
	Window     int           // samples kept per feature; 0 disables monitoring
	Threshold  float64       // standardised mean shift that raises an alert
	MinSamples int           // samples required before a feature is scored
	Cooldown   time.Duration // minimum gap between alert rounds
}

// DriftAlert reports a feature whose recent inputs moved away from the
// distribution the transform artifact was fitted on.
type DriftAlert struct {
	Timestamp time.Time `json:"timestamp"`
	Feature   string    `json:"feature"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
	Severity  string    `json:"severity"`
}

// DriftMetrics receives per-feature drift scores.
type DriftMetrics interface {
	DriftScoreSet(feature string, score float64)
}

// ColumnStats is the fitted location and scale of a numeric column.
type ColumnStats struct {
	Mean  float64
	Scale float64
}

// baseliner is implemented by transformers that expose fitted statistics.
type baseliner interface {
	Baseline() map[string]ColumnStats
}

// DriftMonitor compares a rolling window of numeric inputs against the
// fitted baseline. The score of a feature is |window mean - fitted mean| /
// fitted scale. A nil *DriftMonitor is valid and observes nothing.
type DriftMonitor struct {
	mu        sync.Mutex
	cfg       DriftConfig
	names     []string
	baseline  map[string]ColumnStats
	windows   map[string]*rollingWindow
	lastAlert time.Time
	metrics   DriftMetrics
	now       func() time.Time
}

// NewDriftMonitor builds a monitor from the transformer's fitted numeric
// columns. It returns nil when monitoring is disabled or the transformer
// exposes no baseline.
func NewDriftMonitor(t Transformer, cfg DriftConfig, m DriftMetrics) *DriftMonitor {
	if cfg.Window <= 0 {
		return nil
	}
	b, ok := t.(baseliner)
	if !ok {
		log.Warn().Msg("transformer exposes no fitted statistics, drift monitoring disabled")
		return nil
	}
	baseline := b.Baseline()
	if len(baseline) == 0 {
		return nil
	}

	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if cfg.MinSamples <= 0 || cfg.MinSamples > cfg.Window {
		cfg.MinSamples = min(30, cfg.Window)
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Hour
	}

	d := &DriftMonitor{
		cfg:      cfg,
		baseline: baseline,
		windows:  make(map[string]*rollingWindow, len(baseline)),
		metrics:  m,
		now:      time.Now,
	}
	for name := range baseline {
		d.names = append(d.names, name)
		d.windows[name] = &rollingWindow{samples: make([]float64, cfg.Window)}
	}
	sort.Strings(d.names)
	return d
}

// Observe adds rec to the windows and returns the alerts raised, if any.
func (d *DriftMonitor) Observe(rec features.Record) []DriftAlert {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	coolingDown := !d.lastAlert.IsZero() && now.Sub(d.lastAlert) < d.cfg.Cooldown

	var alerts []DriftAlert
	for _, name := range d.names {
		v, ok := rec.Numeric(name)
		if !ok {
			continue
		}
		w := d.windows[name]
		w.add(v)
		if w.count() < d.cfg.MinSamples {
			continue
		}

		score := d.score(name, w)
		if d.metrics != nil {
			d.metrics.DriftScoreSet(name, score)
		}
		if score > d.cfg.Threshold && !coolingDown {
			alerts = append(alerts, DriftAlert{
				Timestamp: now,
				Feature:   name,
				Score:     score,
				Threshold: d.cfg.Threshold,
				Severity:  severity(score, d.cfg.Threshold),
			})
		}
	}

	if len(alerts) > 0 {
		d.lastAlert = now
		for _, a := range alerts {
			log.Warn().
				Str("feature", a.Feature).
				Float64("score", a.Score).
				Float64("threshold", a.Threshold).
				Str("severity", a.Severity).
				Msg("input drift detected")
		}
	}
	return alerts
}

// Scores returns the current score of every feature with enough samples.
func (d *DriftMonitor) Scores() map[string]float64 {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	scores := make(map[string]float64, len(d.names))
	for _, name := range d.names {
		if w := d.windows[name]; w.count() >= d.cfg.MinSamples {
			scores[name] = d.score(name, w)
		}
	}
	return scores
}

func (d *DriftMonitor) score(name string, w *rollingWindow) float64 {
	base := d.baseline[name]
	return math.Abs(w.mean()-base.Mean) / base.Scale
}

func severity(score, threshold float64) string {
	switch {
	case score > threshold*3:
		return "critical"
	case score > threshold*2:
		return "high"
	}
	return "medium"
}

// rollingWindow is a fixed-size ring of samples with a running sum.
type rollingWindow struct {
	samples []float64
	next    int
	full    bool
	sum     float64
}

func (w *rollingWindow) add(v float64) {
	if w.full {
		w.sum -= w.samples[w.next]
	}
	w.samples[w.next] = v
	w.sum += v
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *rollingWindow) count() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

func (w *rollingWindow) mean() float64 {
	if n := w.count(); n > 0 {
		return w.sum / float64(n)
	}
	return 0
}
