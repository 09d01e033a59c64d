package ml

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ModelKindLinear is the scorer kind for LinearModel artifacts.
const ModelKindLinear = "linear"

// LinearModel is a fitted linear regression scoring artifact.
type LinearModel struct {
	Format       string    `json:"format"`
	ArtifactVer  string    `json:"version"`
	Kind         string    `json:"kind"`
	Names        []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	TrainedAt    time.Time `json:"trained_at"`

	coef *mat.VecDense
}

// Init validates the fitted parameters. It must be called once after decoding.
func (m *LinearModel) Init() error {
	if m.Kind != ModelKindLinear {
		return fmt.Errorf("unsupported model kind %q", m.Kind)
	}
	if len(m.Coefficients) == 0 {
		return fmt.Errorf("model has no coefficients")
	}
	if len(m.Coefficients) != len(m.Names) {
		return fmt.Errorf("model has %d coefficients for %d features", len(m.Coefficients), len(m.Names))
	}
	for i, c := range m.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("coefficient %d (%s) is not finite", i, m.Names[i])
		}
	}
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return fmt.Errorf("intercept is not finite")
	}
	m.coef = mat.NewVecDense(len(m.Coefficients), append([]float64(nil), m.Coefficients...))
	return nil
}

func (m *LinearModel) Version() string        { return m.ArtifactVer }
func (m *LinearModel) FeatureNames() []string { return append([]string(nil), m.Names...) }

// Score returns intercept + coef·vec.
func (m *LinearModel) Score(vec []float64) (float64, error) {
	if m.coef == nil {
		return 0, fmt.Errorf("model not initialised")
	}
	if len(vec) != m.coef.Len() {
		return 0, fmt.Errorf("expected %d features, got %d", m.coef.Len(), len(vec))
	}
	x := mat.NewVecDense(len(vec), vec)
	return m.Intercept + mat.Dot(m.coef, x), nil
}

// Contributions returns coef[i]*vec[i] for each element.
func (m *LinearModel) Contributions(vec []float64) ([]float64, error) {
	if m.coef == nil {
		return nil, fmt.Errorf("model not initialised")
	}
	if len(vec) != m.coef.Len() {
		return nil, fmt.Errorf("expected %d features, got %d", m.coef.Len(), len(vec))
	}
	out := mat.NewVecDense(len(vec), nil)
	out.MulElemVec(m.coef, mat.NewVecDense(len(vec), vec))
	return out.RawVector().Data, nil
}
