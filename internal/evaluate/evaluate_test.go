package evaluate

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"house-pricer/internal/common"
	"house-pricer/internal/features"
	"house-pricer/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `sqft,bedrooms,bathrooms,location,year_built,condition,price_per_sqft,price
1000.5,2,1.5,Suburb,1956,Good,320,110000
2000,3,2,Rural,1990,Fair,,180000
3000,4,0,Downtown,2001,Excellent,400,300000
4000,5,3,Suburb,2010,Good,350,440000
`

// sqftPredictor prices a house at 100 per sqft and rejects zero bathrooms.
type sqftPredictor struct {
	calls []int
}

func (p *sqftPredictor) PredictBatch(_ context.Context, reqs []features.Request) ([]ml.BatchItem, error) {
	p.calls = append(p.calls, len(reqs))
	items := make([]ml.BatchItem, len(reqs))
	for i, req := range reqs {
		items[i].Index = i
		if req.Bathrooms == 0 {
			items[i].Err = common.InvalidInput("bed_bath_ratio", "bathrooms must be greater than zero")
			continue
		}
		price := req.Sqft * 100
		items[i].Result = &ml.Result{
			PredictedPrice:     price,
			ConfidenceInterval: ml.ConfidenceInterval(price),
		}
	}
	return items, nil
}

func (p *sqftPredictor) Version() string { return "2025.07.1" }

func TestReadCSV(t *testing.T) {
	samples, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, samples, 4)

	first := samples[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, 1000.5, first.Request.Sqft)
	assert.Equal(t, "Suburb", first.Request.Location)
	require.NotNil(t, first.Request.PricePerSqft)
	assert.Equal(t, 320.0, *first.Request.PricePerSqft)
	assert.Equal(t, 110000.0, first.Actual)

	assert.Nil(t, samples[1].Request.PricePerSqft)
	assert.Equal(t, 5, samples[3].Line)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty", "", "header"},
		{"missing price", "sqft,bedrooms,bathrooms,location,year_built,condition\n", `"price"`},
		{"bad number", "sqft,bedrooms,bathrooms,location,year_built,condition,price\nbig,2,1,Rural,1990,Good,1\n", "line 2: sqft"},
		{"non-positive price", "sqft,bedrooms,bathrooms,location,year_built,condition,price\n2000,2,1,Rural,1990,Good,0\n", "price must be positive"},
		{"bad price per sqft", "sqft,bedrooms,bathrooms,location,year_built,condition,price_per_sqft,price\n2000,2,1,Rural,1990,Good,x,1\n", "price_per_sqft"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadJSON(t *testing.T) {
	input := `[
		{"sqft":1527,"bedrooms":2,"bathrooms":1.5,"location":"Suburb","year_built":1956,"condition":"Good","price":489650.75},
		{"sqft":2000,"bedrooms":3,"bathrooms":2,"location":"Rural","year_built":1990,"condition":"Fair","price_per_sqft":210,"price":400000}
	]`
	samples, err := ReadJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 489650.75, samples[0].Actual)
	assert.Nil(t, samples[0].Request.PricePerSqft)
	require.NotNil(t, samples[1].Request.PricePerSqft)
	assert.Equal(t, 210.0, *samples[1].Request.PricePerSqft)

	_, err = ReadJSON(strings.NewReader(`[{"sqft":2000}]`))
	assert.ErrorContains(t, err, "price must be positive")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	samples, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, samples, 4)

	_, err = LoadFile(filepath.Join(dir, "sales.parquet"))
	assert.Error(t, err)
}

func TestEngine_Run(t *testing.T) {
	samples, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	predictor := &sqftPredictor{}
	results, err := NewEngine(predictor, 3).Run(context.Background(), samples)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 1}, predictor.calls)
	assert.Equal(t, "2025.07.1", results.ModelVersion)
	assert.Equal(t, 4, results.Samples)
	assert.Equal(t, 3, results.Scored)
	assert.Equal(t, map[string]int{"INVALID_INPUT": 1}, results.Rejected)
	require.Len(t, results.Predictions, 4)
	assert.NotEmpty(t, results.Predictions[2].Error)

	// Errors: 100050-110000=-9950, 200000-180000=20000, 400000-440000=-40000
	assert.InDelta(t, (9950.0+20000+40000)/3, results.MAE, 1e-6)
	assert.InDelta(t, (-9950.0+20000-40000)/3, results.Bias, 1e-6)
	assert.InDelta(t, (9950.0/110000+20000.0/180000+40000.0/440000)/3, results.MAPE, 1e-9)
	// All three actuals fall inside the ±10% band.
	assert.Equal(t, 1.0, results.Coverage)
	assert.Greater(t, results.R2, 0.9)

	assert.Equal(t, []string{"Rural", "Suburb"}, results.Locations())
	suburb := results.ByLocation["Suburb"]
	assert.Equal(t, 2, suburb.Count)
	assert.InDelta(t, (9950.0+40000)/2, suburb.MAE, 1e-6)
}

func TestEngine_RunEmpty(t *testing.T) {
	_, err := NewEngine(&sqftPredictor{}, 0).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestPrediction_Covered(t *testing.T) {
	p := Prediction{Actual: 100, Lower: 90, Upper: 110}
	assert.True(t, p.Covered())
	p.Actual = 111
	assert.False(t, p.Covered())
	p = Prediction{Actual: 100, Lower: 90, Upper: 110, Error: "rejected"}
	assert.False(t, p.Covered())
}

func TestReporter_GenerateReport(t *testing.T) {
	samples, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	results, err := NewEngine(&sqftPredictor{}, 10).Run(context.Background(), samples)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "report")
	reporter := NewReporter(results, dir)
	require.NoError(t, reporter.GenerateReport())
	reporter.PrintSummary()

	summary, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Model Version: 2025.07.1")
	assert.Contains(t, string(summary), "Rejected (INVALID_INPUT): 1")
	assert.Contains(t, string(summary), "Interval Coverage: 100.00%")

	file, err := os.Open(filepath.Join(dir, PredictionsFile))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "covered", rows[0][7])
	assert.Equal(t, "false", rows[3][7])
	assert.NotEmpty(t, rows[3][8])

	data, err := os.ReadFile(filepath.Join(dir, JSONReportFile))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 3.0, decoded["scored"])
	assert.NotContains(t, decoded, "Predictions")
}

func TestReporter_WriteSummary(t *testing.T) {
	results := &Results{ModelVersion: "v", Rejected: map[string]int{}, ByLocation: map[string]*GroupStats{}}
	var buf bytes.Buffer
	require.NoError(t, NewReporter(results, "").WriteSummary(&buf))
	assert.Contains(t, buf.String(), "EVALUATION SUMMARY")
	assert.NotContains(t, buf.String(), "BY LOCATION")
}
