package ml

import (
	"context"
	"math"
	"sync"
	"testing"

	"house-pricer/internal/common"
	"house-pricer/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeriver() *features.Deriver {
	return features.NewDeriverWithClock(features.DefaultPricingTables(), fixedNow)
}

func newTestPipeline(t *testing.T, arts *Artifacts, opts PipelineOptions) *Pipeline {
	t.Helper()
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	p, err := NewPipeline(testDeriver(), arts, opts)
	require.NoError(t, err)
	return p
}

func TestPipeline_DocumentedExample(t *testing.T) {
	p := newTestPipeline(t, fixedArtifacts(489650.75), PipelineOptions{})

	res, err := p.Predict(context.Background(), exampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 489650.75, res.PredictedPrice)
	assert.InDelta(t, 440685.68, res.ConfidenceInterval[0], 0.011)
	assert.InDelta(t, 538615.82, res.ConfidenceInterval[1], 0.011)
	assert.Empty(t, res.FeaturesImportance)
	assert.NotNil(t, res.FeaturesImportance)
	assert.Equal(t, fixedNow(), res.PredictionTime)
}

func TestPipeline_IntervalBracketsPrice(t *testing.T) {
	prices := []float64{0, 0.01, 1234.565, 250000, 489650.754, 999999.999, 3.3333333}

	for _, raw := range prices {
		p := newTestPipeline(t, fixedArtifacts(raw), PipelineOptions{})
		res, err := p.Predict(context.Background(), exampleRequest())
		require.NoError(t, err)

		price := res.PredictedPrice
		assert.InDelta(t, raw, price, 0.005+1e-9, "price rounded to cents")
		assert.LessOrEqual(t, res.ConfidenceInterval[0], price)
		assert.GreaterOrEqual(t, res.ConfidenceInterval[1], price)
		assert.Equal(t, RoundCurrency(price*0.9), res.ConfidenceInterval[0])
		assert.Equal(t, RoundCurrency(price*1.1), res.ConfidenceInterval[1])
		assert.InDelta(t, price*0.9, res.ConfidenceInterval[0], 0.005+1e-9)
		assert.InDelta(t, price*1.1, res.ConfidenceInterval[1], 0.005+1e-9)
	}
}

func TestConfidenceInterval_NegativePriceStaysOrdered(t *testing.T) {
	ci := ConfidenceInterval(-100)
	assert.Equal(t, [2]float64{-110, -90}, ci)
}

func TestRoundCurrency(t *testing.T) {
	assert.Equal(t, 440685.68, RoundCurrency(440685.675))
	assert.Equal(t, 1.01, RoundCurrency(1.005))
	assert.Equal(t, -1.01, RoundCurrency(-1.005))
	assert.Equal(t, 12.0, RoundCurrency(11.999))
}

func TestPipeline_LinearArtifactsDeterministic(t *testing.T) {
	arts := testArtifacts(t)
	p := newTestPipeline(t, arts, PipelineOptions{})

	first, err := p.Predict(context.Background(), exampleRequest())
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), exampleRequest())
	require.NoError(t, err)

	assert.Equal(t, first.PredictedPrice, second.PredictedPrice)
	assert.Equal(t, first.ConfidenceInterval, second.ConfidenceInterval)

	rec, err := testDeriver().Derive(exampleRequest())
	require.NoError(t, err)
	vec, err := arts.Transformer.Transform(rec)
	require.NoError(t, err)
	raw, err := arts.Scorer.Score(vec)
	require.NoError(t, err)
	assert.Equal(t, RoundCurrency(raw), first.PredictedPrice)
	assert.Greater(t, first.PredictedPrice, 0.0)
}

func TestPipeline_InvalidInputPassesThrough(t *testing.T) {
	metrics := &MockMetrics{}
	p := newTestPipeline(t, fixedArtifacts(100000), PipelineOptions{Metrics: metrics})

	future := exampleRequest()
	future.YearBuilt = fixedNow().Year() + 1
	_, err := p.Predict(context.Background(), future)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, features.FeatureHouseAge, common.StepOf(err))

	noBaths := exampleRequest()
	noBaths.Bathrooms = 0
	_, err = p.Predict(context.Background(), noBaths)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, features.FeatureBedBathRatio, common.StepOf(err))

	assert.Equal(t, 2, metrics.Failures(string(common.KindInvalidInput)))
	assert.Equal(t, 0, metrics.Predictions())
}

func TestPipeline_ScoreErrorIsPredictionFailed(t *testing.T) {
	p := newTestPipeline(t, failingScorerArtifacts(func([]float64) (float64, error) {
		return 0, errBoom
	}), PipelineOptions{})

	_, err := p.Predict(context.Background(), exampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPredictionFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "score", common.StepOf(err))
}

func TestPipeline_ScorePanicIsRecovered(t *testing.T) {
	p := newTestPipeline(t, failingScorerArtifacts(func([]float64) (float64, error) {
		panic("corrupt weights")
	}), PipelineOptions{})

	_, err := p.Predict(context.Background(), exampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPredictionFailed)
	assert.Contains(t, err.Error(), "corrupt weights")

	// The pipeline keeps serving after a panic.
	healthy := newTestPipeline(t, fixedArtifacts(1), PipelineOptions{})
	_, err = healthy.Predict(context.Background(), exampleRequest())
	assert.NoError(t, err)
}

func TestPipeline_NonFiniteScore(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		p := newTestPipeline(t, fixedArtifacts(v), PipelineOptions{})
		_, err := p.Predict(context.Background(), exampleRequest())
		assert.ErrorIs(t, err, common.ErrPredictionFailed, "score=%v", v)
	}
}

func TestPipeline_TransformFailures(t *testing.T) {
	arts := fixedArtifacts(1)
	arts.Transformer.(*stubTransformer).fn = func(features.Record) ([]float64, error) {
		return nil, errBoom
	}
	p := newTestPipeline(t, arts, PipelineOptions{})
	_, err := p.Predict(context.Background(), exampleRequest())
	assert.ErrorIs(t, err, common.ErrPredictionFailed)
	assert.Equal(t, "transform", common.StepOf(err))

	arts = fixedArtifacts(1)
	arts.Transformer.(*stubTransformer).fn = func(features.Record) ([]float64, error) {
		return []float64{1, 2}, nil
	}
	p = newTestPipeline(t, arts, PipelineOptions{})
	_, err = p.Predict(context.Background(), exampleRequest())
	assert.ErrorIs(t, err, common.ErrPredictionFailed)
	assert.Contains(t, err.Error(), "scorer expects 1")
}

func TestPipeline_CanceledContext(t *testing.T) {
	p := newTestPipeline(t, fixedArtifacts(1), PipelineOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, exampleRequest())
	assert.ErrorIs(t, err, common.ErrPredictionFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_FeatureImportance(t *testing.T) {
	p := newTestPipeline(t, testArtifacts(t), PipelineOptions{ExplainFeatures: true})

	res, err := p.Predict(context.Background(), exampleRequest())
	require.NoError(t, err)
	require.NotEmpty(t, res.FeaturesImportance)

	var total float64
	for name, share := range res.FeaturesImportance {
		assert.Contains(t, features.Order, name)
		assert.GreaterOrEqual(t, share, 0.0)
		total += share
	}
	assert.InDelta(t, 1.0, total, 0.001)

	top := TopFeatures(res.FeaturesImportance, 2)
	assert.Equal(t, []string{features.FeatureSqft, features.FeaturePricePerSqft}, top)
}

func TestPipeline_ImportanceWithoutExplainer(t *testing.T) {
	p := newTestPipeline(t, fixedArtifacts(10), PipelineOptions{ExplainFeatures: true})
	res, err := p.Predict(context.Background(), exampleRequest())
	require.NoError(t, err)
	assert.Empty(t, res.FeaturesImportance)
}

func TestNewPipeline_RejectsMismatchedLayouts(t *testing.T) {
	_, err := NewPipeline(testDeriver(), nil, PipelineOptions{})
	assert.ErrorIs(t, err, common.ErrStartupFailure)

	arts := fixedArtifacts(1)
	arts.Scorer = &stubScorer{names: []string{"bedrooms"}, fn: func([]float64) (float64, error) { return 1, nil }}
	_, err = NewPipeline(testDeriver(), arts, PipelineOptions{})
	assert.ErrorIs(t, err, common.ErrStartupFailure)

	pre := testPreprocessor()
	pre.Columns[0], pre.Columns[1] = pre.Columns[1], pre.Columns[0]
	require.NoError(t, pre.Init())
	arts = &Artifacts{Transformer: pre, Scorer: testLinearModel(t, pre), Version: testVersion}
	_, err = NewPipeline(testDeriver(), arts, PipelineOptions{})
	require.Error(t, err)
	assert.Equal(t, "feature_order", common.StepOf(err))
}

func TestPipeline_HealthAndMetrics(t *testing.T) {
	metrics := &MockMetrics{}
	p := newTestPipeline(t, fixedArtifacts(5000), PipelineOptions{Metrics: metrics})

	for i := 0; i < 3; i++ {
		_, err := p.Predict(context.Background(), exampleRequest())
		require.NoError(t, err)
	}
	bad := exampleRequest()
	bad.Bathrooms = 0
	_, err := p.Predict(context.Background(), bad)
	require.Error(t, err)

	health := p.Health()
	assert.True(t, health.Healthy)
	assert.Equal(t, testVersion, health.ModelVersion)
	assert.Equal(t, int64(3), health.PredictionCount)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.InDelta(t, 0.25, health.ErrorRate, 1e-9)
	assert.Contains(t, health.LastError, "bathrooms")

	assert.Equal(t, 3, metrics.Predictions())
	assert.Equal(t, 4, metrics.LatencyObservations())
	assert.Equal(t, testVersion, p.Version())
}

func TestPipeline_Concurrency(t *testing.T) {
	p := newTestPipeline(t, testArtifacts(t), PipelineOptions{ExplainFeatures: true})
	want, err := p.Predict(context.Background(), exampleRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := p.Predict(context.Background(), exampleRequest())
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if got.PredictedPrice != want.PredictedPrice {
					t.Errorf("price drifted: %v != %v", got.PredictedPrice, want.PredictedPrice)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestPipeline_InfoDescribesArtifacts(t *testing.T) {
	p := newTestPipeline(t, testArtifacts(t), PipelineOptions{})
	info := p.Info()
	assert.Equal(t, testVersion, info.Version)
	assert.Equal(t, features.Order, info.InputFeatures)
	assert.Len(t, info.OutputFeatures, 17)
	assert.Equal(t, ArtifactFormat, info.Format)
}
