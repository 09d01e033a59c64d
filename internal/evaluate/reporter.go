package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Report file names written by GenerateReport.
const (
	SummaryFile     = "evaluation_summary.txt"
	PredictionsFile = "predictions.csv"
	JSONReportFile  = "evaluation.json"
)

// Reporter writes evaluation reports.
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes the summary, the per-sample log and the JSON report.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.writeFile(SummaryFile, r.WriteSummary); err != nil {
		return err
	}
	if err := r.writeFile(PredictionsFile, r.writePredictions); err != nil {
		return err
	}
	return r.writeFile(JSONReportFile, r.writeJSON)
}

func (r *Reporter) writeFile(name string, fn func(io.Writer) error) error {
	path := filepath.Join(r.outputPath, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer file.Close()

	if err := fn(file); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Info().Str("file", path).Msg("report generated")
	return nil
}

// WriteSummary writes a human-readable summary to w.
func (r *Reporter) WriteSummary(w io.Writer) error {
	res := r.results

	fmt.Fprintf(w, "EVALUATION SUMMARY\n")
	fmt.Fprintf(w, "==================\n\n")
	fmt.Fprintf(w, "Model Version: %s\n", res.ModelVersion)
	fmt.Fprintf(w, "Duration: %s\n\n", res.EndTime.Sub(res.StartTime))

	fmt.Fprintf(w, "SAMPLES\n")
	fmt.Fprintf(w, "-------\n")
	fmt.Fprintf(w, "Total: %d\n", res.Samples)
	fmt.Fprintf(w, "Scored: %d\n", res.Scored)
	for kind, n := range res.Rejected {
		fmt.Fprintf(w, "Rejected (%s): %d\n", kind, n)
	}

	fmt.Fprintf(w, "\nACCURACY\n")
	fmt.Fprintf(w, "--------\n")
	fmt.Fprintf(w, "MAE: %.2f\n", res.MAE)
	fmt.Fprintf(w, "RMSE: %.2f\n", res.RMSE)
	fmt.Fprintf(w, "MAPE: %.2f%%\n", res.MAPE*100)
	fmt.Fprintf(w, "R2: %.4f\n", res.R2)
	fmt.Fprintf(w, "Bias: %.2f\n", res.Bias)
	fmt.Fprintf(w, "Interval Coverage: %.2f%%\n", res.Coverage*100)

	if len(res.ByLocation) > 0 {
		fmt.Fprintf(w, "\nBY LOCATION\n")
		fmt.Fprintf(w, "-----------\n")
		for _, name := range res.Locations() {
			g := res.ByLocation[name]
			_, err := fmt.Fprintf(w, "%s: %d samples, MAE %.2f, MAPE %.2f%%, coverage %.2f%%\n",
				name, g.Count, g.MAE, g.MAPE*100, g.Coverage*100)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reporter) writePredictions(w io.Writer) error {
	writer := csv.NewWriter(w)

	header := []string{"line", "location", "condition", "actual", "predicted", "lower", "upper", "covered", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range r.results.Predictions {
		record := []string{
			strconv.Itoa(p.Line),
			p.Location,
			p.Condition,
			fmt.Sprintf("%.2f", p.Actual),
			fmt.Sprintf("%.2f", p.Predicted),
			fmt.Sprintf("%.2f", p.Lower),
			fmt.Sprintf("%.2f", p.Upper),
			strconv.FormatBool(p.Covered()),
			p.Error,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (r *Reporter) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.results)
}

// PrintSummary logs the headline figures.
func (r *Reporter) PrintSummary() {
	res := r.results
	log.Info().
		Str("model_version", res.ModelVersion).
		Int("samples", res.Samples).
		Int("scored", res.Scored).
		Float64("mae", res.MAE).
		Float64("rmse", res.RMSE).
		Float64("mape", res.MAPE).
		Float64("r2", res.R2).
		Float64("coverage", res.Coverage).
		Msg("evaluation complete")
}
