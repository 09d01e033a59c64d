package ml

import (
	"fmt"
	"math"

	"house-pricer/internal/features"
)

// Column kinds understood by the Preprocessor
const (
	ColumnNumeric     = "numeric"
	ColumnCategorical = "categorical"
)

// Column describes how one input feature is encoded.
type Column struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Mean       float64  `json:"mean,omitempty"`
	Scale      float64  `json:"scale,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Preprocessor is a fitted transform artifact: numeric columns are
// standardised with (x - mean) / scale and categorical columns are one-hot
// encoded. Categories unseen at fit time encode as all zeros.
type Preprocessor struct {
	Format       string   `json:"format"`
	ArtifactVer  string   `json:"version"`
	Columns      []Column `json:"columns"`
	inputNames   []string
	outputNames  []string
	outputSource []string
	categoryIdx  []map[string]int
}

// Init validates the fitted parameters and builds the output layout. It must
// be called once after decoding.
func (p *Preprocessor) Init() error {
	if len(p.Columns) == 0 {
		return fmt.Errorf("preprocessor has no columns")
	}

	seen := make(map[string]bool, len(p.Columns))
	p.inputNames = make([]string, 0, len(p.Columns))
	p.outputNames = p.outputNames[:0]
	p.outputSource = p.outputSource[:0]
	p.categoryIdx = make([]map[string]int, len(p.Columns))

	for i, col := range p.Columns {
		if col.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate column %q", col.Name)
		}
		seen[col.Name] = true
		p.inputNames = append(p.inputNames, col.Name)

		switch col.Kind {
		case ColumnNumeric:
			if col.Scale <= 0 || math.IsNaN(col.Scale) || math.IsInf(col.Scale, 0) {
				return fmt.Errorf("column %q: scale must be positive, got %v", col.Name, col.Scale)
			}
			p.outputNames = append(p.outputNames, col.Name)
			p.outputSource = append(p.outputSource, col.Name)
		case ColumnCategorical:
			if len(col.Categories) == 0 {
				return fmt.Errorf("column %q: no categories", col.Name)
			}
			idx := make(map[string]int, len(col.Categories))
			for _, cat := range col.Categories {
				if _, dup := idx[cat]; dup {
					return fmt.Errorf("column %q: duplicate category %q", col.Name, cat)
				}
				idx[cat] = len(p.outputNames)
				p.outputNames = append(p.outputNames, col.Name+"="+cat)
				p.outputSource = append(p.outputSource, col.Name)
			}
			p.categoryIdx[i] = idx
		default:
			return fmt.Errorf("column %q: unknown kind %q", col.Name, col.Kind)
		}
	}
	return nil
}

func (p *Preprocessor) Version() string          { return p.ArtifactVer }
func (p *Preprocessor) InputFeatures() []string  { return append([]string(nil), p.inputNames...) }
func (p *Preprocessor) OutputFeatures() []string { return append([]string(nil), p.outputNames...) }
func (p *Preprocessor) OutputSources() []string  { return append([]string(nil), p.outputSource...) }

// Baseline returns the fitted mean and scale of every numeric column.
func (p *Preprocessor) Baseline() map[string]ColumnStats {
	out := make(map[string]ColumnStats)
	for _, col := range p.Columns {
		if col.Kind == ColumnNumeric {
			out[col.Name] = ColumnStats{Mean: col.Mean, Scale: col.Scale}
		}
	}
	return out
}

// Transform encodes rec into a fresh vector laid out as OutputFeatures.
func (p *Preprocessor) Transform(rec features.Record) ([]float64, error) {
	vec := make([]float64, len(p.outputNames))
	pos := 0
	for i, col := range p.Columns {
		switch col.Kind {
		case ColumnNumeric:
			v, ok := rec.Numeric(col.Name)
			if !ok {
				return nil, fmt.Errorf("record has no numeric feature %q", col.Name)
			}
			vec[pos] = (v - col.Mean) / col.Scale
			pos++
		case ColumnCategorical:
			v, ok := rec.Categorical(col.Name)
			if !ok {
				return nil, fmt.Errorf("record has no categorical feature %q", col.Name)
			}
			if j, known := p.categoryIdx[i][v]; known {
				vec[j] = 1
			}
			pos += len(col.Categories)
		}
	}
	return vec, nil
}
