// Package ml provides the house-price prediction pipeline: artifact loading,
// the transform and scoring capabilities, single and batch prediction, and
// the confidence band attached to each estimate.
//
// Artifacts are loaded once at startup and injected into a Pipeline. After
// loading they are read-only and shared by every in-flight request.
package ml

import "house-pricer/internal/features"

// ArtifactFormat is the only artifact format this build understands.
const ArtifactFormat = "house-price/v1"

// Transformer maps a feature record to the numeric vector the scorer expects.
// Implementations must be stateless per call and safe for concurrent use.
type Transformer interface {
	// Version identifies the fitted artifact.
	Version() string

	// InputFeatures lists the record features consumed, in order.
	InputFeatures() []string

	// OutputFeatures names each element of the produced vector.
	OutputFeatures() []string

	// OutputSources names, for each output element, the input feature it
	// was computed from.
	OutputSources() []string

	// Transform returns the model-ready vector for rec.
	Transform(rec features.Record) ([]float64, error)
}

// Scorer maps a transformed vector to a raw price estimate.
// Implementations must be stateless per call and safe for concurrent use.
type Scorer interface {
	Version() string

	// FeatureNames lists the vector layout the scorer was fitted on.
	FeatureNames() []string

	// Score returns the raw predicted price for vec.
	Score(vec []float64) (float64, error)
}

// Explainer is implemented by scorers that can attribute a score to the
// individual vector elements.
type Explainer interface {
	Contributions(vec []float64) ([]float64, error)
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
