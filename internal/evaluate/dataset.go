// Package evaluate scores the served artifacts against labelled sales
// data offline and reports accuracy and interval coverage.
package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"house-pricer/internal/features"

	"github.com/rs/zerolog/log"
)

// ColumnPrice is the label column of a dataset.
const ColumnPrice = "price"

// Sample is one labelled house.
type Sample struct {
	Line    int // 1-based source line or record number
	Request features.Request
	Actual  float64
}

// jsonSample is the JSON form of a Sample.
type jsonSample struct {
	features.Request
	Price float64 `json:"price"`
}

// LoadFile loads samples from a .csv or .json file.
func LoadFile(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	var samples []Sample
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		samples, err = ReadCSV(file)
	case ".json":
		samples, err = ReadJSON(file)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().Str("file", path).Int("samples", len(samples)).Msg("dataset loaded")
	return samples, nil
}

// ReadCSV reads samples from CSV with a header row naming the request
// fields and the price label. price_per_sqft may be absent or empty.
func ReadCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range append(requiredInputs(), ColumnPrice) {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var samples []Sample
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		s, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s.Line = line
		samples = append(samples, s)
	}
	return samples, nil
}

// ReadJSON reads samples from a JSON array of request objects that also
// carry a price field.
func ReadJSON(r io.Reader) ([]Sample, error) {
	var raw []jsonSample
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}

	samples := make([]Sample, len(raw))
	for i, js := range raw {
		if js.Price <= 0 {
			return nil, fmt.Errorf("record %d: price must be positive, got %v", i+1, js.Price)
		}
		samples[i] = Sample{Line: i + 1, Request: js.Request, Actual: js.Price}
	}
	return samples, nil
}

func requiredInputs() []string {
	return []string{
		features.FeatureSqft, features.FeatureBedrooms, features.FeatureBathrooms,
		features.FeatureLocation, features.FeatureYearBuilt, features.FeatureCondition,
	}
}

func parseRecord(record []string, cols map[string]int) (Sample, error) {
	field := func(name string) string {
		if i, ok := cols[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var (
		s   Sample
		err error
	)
	if s.Request.Sqft, err = strconv.ParseFloat(field(features.FeatureSqft), 64); err != nil {
		return s, fmt.Errorf("sqft: %w", err)
	}
	if s.Request.Bedrooms, err = strconv.Atoi(field(features.FeatureBedrooms)); err != nil {
		return s, fmt.Errorf("bedrooms: %w", err)
	}
	if s.Request.Bathrooms, err = strconv.ParseFloat(field(features.FeatureBathrooms), 64); err != nil {
		return s, fmt.Errorf("bathrooms: %w", err)
	}
	if s.Request.YearBuilt, err = strconv.Atoi(field(features.FeatureYearBuilt)); err != nil {
		return s, fmt.Errorf("year_built: %w", err)
	}
	s.Request.Location = field(features.FeatureLocation)
	s.Request.Condition = field(features.FeatureCondition)

	if v := field(features.FeaturePricePerSqft); v != "" {
		pps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("price_per_sqft: %w", err)
		}
		s.Request.PricePerSqft = &pps
	}

	if s.Actual, err = strconv.ParseFloat(field(ColumnPrice), 64); err != nil {
		return s, fmt.Errorf("price: %w", err)
	}
	if s.Actual <= 0 {
		return s, fmt.Errorf("price must be positive, got %v", s.Actual)
	}
	return s, nil
}
