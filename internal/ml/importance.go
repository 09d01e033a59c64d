package ml

import (
	"math"

	"github.com/rs/zerolog/log"
)

// importance attributes a prediction to the raw input features. Each vector
// element's absolute contribution is credited to the feature it was encoded
// from (one-hot columns fold back into their categorical feature) and the
// shares are normalised to sum to 1. Scorers that cannot explain themselves
// yield an empty map.
func (p *Pipeline) importance(vec []float64) map[string]float64 {
	out := map[string]float64{}

	explainer, ok := p.scorer.(Explainer)
	if !ok {
		return out
	}

	contribs, err := explainer.Contributions(vec)
	if err != nil {
		log.Warn().Err(err).Msg("feature contributions unavailable")
		return out
	}
	sources := p.transformer.OutputSources()
	if len(sources) != len(contribs) {
		log.Warn().
			Int("sources", len(sources)).
			Int("contributions", len(contribs)).
			Msg("contribution layout mismatch")
		return out
	}

	var total float64
	for i, c := range contribs {
		a := math.Abs(c)
		out[sources[i]] += a
		total += a
	}
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return map[string]float64{}
	}
	for name, v := range out {
		out[name] = math.Round(v/total*1e4) / 1e4
	}
	return out
}

// TopFeatures returns up to n feature names ordered by descending share.
func TopFeatures(importance map[string]float64, n int) []string {
	type featureScore struct {
		name  string
		score float64
	}

	scores := make([]featureScore, 0, len(importance))
	for name, v := range importance {
		scores = append(scores, featureScore{name, v})
	}
	for i := 0; i < len(scores)-1; i++ {
		for j := i + 1; j < len(scores); j++ {
			if scores[i].score < scores[j].score ||
				(scores[i].score == scores[j].score && scores[i].name > scores[j].name) {
				scores[i], scores[j] = scores[j], scores[i]
			}
		}
	}

	if n > len(scores) {
		n = len(scores)
	}
	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = scores[i].name
	}
	return result
}
