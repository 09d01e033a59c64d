package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces used by the
// prediction pipeline and the HTTP server.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	w.m.PredictionFailures.WithLabelValues(kind).Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) PredictedPriceObserve(price float64) {
	w.m.PredictedPrice.Observe(price)
}

func (w *MetricsWrapper) BatchSizeObserve(n int) {
	w.m.BatchSize.Observe(float64(n))
}

func (w *MetricsWrapper) ArtifactAgeSet(seconds float64) {
	w.m.ArtifactAge.Set(seconds)
}

func (w *MetricsWrapper) DriftScoreSet(feature string, score float64) {
	w.m.DriftScore.WithLabelValues(feature).Set(score)
}

// RequestObserve counts one HTTP request.
func (w *MetricsWrapper) RequestObserve(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (w *MetricsWrapper) RequestTimeoutsInc() {
	w.m.RequestTimeouts.Inc()
}

func (w *MetricsWrapper) WSConnectionsAdd(delta float64) {
	w.m.WSConnections.Add(delta)
}
