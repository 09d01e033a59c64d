package cfg

import (
	"strings"
	"testing"
	"time"

	"house-pricer/internal/features"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		ListenPort:       8000,
		MetricsEnabled:   true,
		RequestTimeout:   5 * time.Second,
		ArtifactsDir:     "models/trained",
		PreprocessorFile: "preprocessor.json",
		ModelFile:        "model.json",
		BatchWorkers:     4,
		MaxBatchSize:     100,
		BatchPolicy:      "isolate",
		DriftThreshold:   0.5,
		LogLevel:         "info",
		LogFormat:        "json",
		Pricing:          features.DefaultPricingTables(),
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	err := validateSettings(settings)
	if err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"port too low", func(s *Settings) { s.ListenPort = 1023 }, "listen port"},
		{"port too high", func(s *Settings) { s.ListenPort = 65536 }, "listen port"},
		{"timeout too short", func(s *Settings) { s.RequestTimeout = 50 * time.Millisecond }, "request timeout"},
		{"timeout too long", func(s *Settings) { s.RequestTimeout = 2 * time.Minute }, "request timeout"},
		{"empty artifacts dir", func(s *Settings) { s.ArtifactsDir = "" }, "artifacts directory"},
		{"empty model file", func(s *Settings) { s.ModelFile = "" }, "file names"},
		{"zero workers", func(s *Settings) { s.BatchWorkers = 0 }, "batch workers"},
		{"too many workers", func(s *Settings) { s.BatchWorkers = 65 }, "batch workers"},
		{"zero batch size", func(s *Settings) { s.MaxBatchSize = 0 }, "max batch size"},
		{"huge batch size", func(s *Settings) { s.MaxBatchSize = 10001 }, "max batch size"},
		{"unknown policy", func(s *Settings) { s.BatchPolicy = "best-effort" }, "batch policy"},
		{"negative drift window", func(s *Settings) { s.DriftWindow = -1 }, "drift window"},
		{"huge drift window", func(s *Settings) { s.DriftWindow = 100001 }, "drift window"},
		{"zero drift threshold", func(s *Settings) { s.DriftThreshold = 0 }, "drift threshold"},
		{"bad log level", func(s *Settings) { s.LogLevel = "verbose" }, "log level"},
		{"bad log format", func(s *Settings) { s.LogFormat = "xml" }, "log format"},
		{"zero default rate", func(s *Settings) { s.Pricing.DefaultBaseRate = 0 }, "default base rate"},
		{"rate above cap", func(s *Settings) { s.Pricing.BaseRates["Urban"] = 20000 }, "Urban"},
		{"negative rate", func(s *Settings) { s.Pricing.BaseRates["Rural"] = -5 }, "Rural"},
		{"unknown location", func(s *Settings) { s.Pricing.BaseRates["Lakeside"] = 400 }, "Lakeside"},
		{"multiplier above cap", func(s *Settings) { s.Pricing.ConditionMultipliers["Good"] = 11 }, "Good"},
		{"unknown condition", func(s *Settings) { s.Pricing.ConditionMultipliers["Mint"] = 1.5 }, "Mint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSettings_NormalisesBatchPolicy(t *testing.T) {
	settings := createValidSettings()
	settings.BatchPolicy = "  FAILFAST "

	if err := validateSettings(settings); err != nil {
		t.Fatalf("Expected policy to be accepted, got error: %v", err)
	}
	if settings.BatchPolicy != "failfast" {
		t.Errorf("Expected normalised policy failfast, got %q", settings.BatchPolicy)
	}
}

func TestValidateSettings_BoundaryValues(t *testing.T) {
	settings := createValidSettings()
	settings.ListenPort = 1024
	settings.RequestTimeout = 100 * time.Millisecond
	settings.BatchWorkers = 64
	settings.MaxBatchSize = 10000
	settings.DriftWindow = 100000
	settings.Pricing.BaseRates["Waterfront"] = 10000
	settings.Pricing.ConditionMultipliers["Excellent"] = 10

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected boundary values to pass, got error: %v", err)
	}

	settings.ListenPort = 65535
	settings.RequestTimeout = time.Minute
	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected upper boundary values to pass, got error: %v", err)
	}
}

func TestMergePricing(t *testing.T) {
	merged := mergePricing(features.PricingTables{
		BaseRates: map[string]float64{"Downtown": 400},
	})

	if merged.BaseRates["Downtown"] != 400 {
		t.Errorf("Expected Downtown override 400, got %f", merged.BaseRates["Downtown"])
	}
	if merged.BaseRates["Suburb"] != 320 {
		t.Errorf("Expected Suburb default 320, got %f", merged.BaseRates["Suburb"])
	}
	if merged.ConditionMultipliers["Poor"] != 0.7 {
		t.Errorf("Expected Poor default 0.7, got %f", merged.ConditionMultipliers["Poor"])
	}
	if merged.DefaultBaseRate != 300 {
		t.Errorf("Expected default base rate 300, got %f", merged.DefaultBaseRate)
	}

	// The shipped defaults must not be mutated by a merge.
	if features.DefaultPricingTables().BaseRates["Downtown"] != 350 {
		t.Error("Expected shipped defaults to be unchanged")
	}
}
