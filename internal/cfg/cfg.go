package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"house-pricer/internal/common"
	"house-pricer/internal/features"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ListenPort          int
	MetricsEnabled      bool
	RequestTimeout      time.Duration
	RequirePricePerSqft bool
	ArtifactsDir        string
	PreprocessorFile    string
	ModelFile           string
	ModelVersion        string // optional pin
	RegistryPath        string // optional bbolt registry
	BatchWorkers        int
	MaxBatchSize        int
	BatchPolicy         string
	ExplainFeatures     bool
	DriftWindow         int // 0 disables drift monitoring
	DriftThreshold      float64
	LogLevel            string
	LogFormat           string
	Pricing             features.PricingTables
}

type ConfigFile struct {
	Server struct {
		ListenPort          int    `yaml:"listenPort"`
		MetricsEnabled      *bool  `yaml:"metricsEnabled"`
		RequestTimeout      string `yaml:"requestTimeout"`
		RequirePricePerSqft bool   `yaml:"requirePricePerSqft"`
	} `yaml:"server"`

	Artifacts struct {
		Dir              string `yaml:"dir"`
		PreprocessorFile string `yaml:"preprocessorFile"`
		ModelFile        string `yaml:"modelFile"`
		Version          string `yaml:"version"`
		RegistryPath     string `yaml:"registryPath"`
	} `yaml:"artifacts"`

	Batch struct {
		Workers int    `yaml:"workers"`
		MaxSize int    `yaml:"maxSize"`
		Policy  string `yaml:"policy"`
	} `yaml:"batch"`

	Features struct {
		Explain        bool                   `yaml:"explain"`
		DriftWindow    int                    `yaml:"driftWindow"`
		DriftThreshold float64                `yaml:"driftThreshold"`
		Pricing        features.PricingTables `yaml:"pricing"`
	} `yaml:"features"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

func Load() (Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// loadDotEnv exports the variables in path without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		requestTimeout = common.DefaultRequestTimeout * time.Millisecond
	}

	metricsEnabled := true
	if config.Server.MetricsEnabled != nil {
		metricsEnabled = *config.Server.MetricsEnabled
	}

	pricing := mergePricing(config.Features.Pricing)
	pricing.DefaultBaseRate = getFloatFromEnvOrConfig(common.EnvDefaultBaseRate, pricing.DefaultBaseRate)

	driftThreshold := config.Features.DriftThreshold
	if driftThreshold == 0 {
		driftThreshold = common.DefaultDriftThreshold
	}
	driftThreshold = getFloatFromEnvOrConfig(common.EnvDriftThreshold, driftThreshold)

	settings := Settings{
		ListenPort:          getIntFromEnvOrConfig(common.EnvListenPort, config.Server.ListenPort, common.DefaultListenPort),
		MetricsEnabled:      getBoolFromEnvOrConfig(common.EnvMetricsEnabled, metricsEnabled),
		RequestTimeout:      getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		RequirePricePerSqft: getBoolFromEnvOrConfig(common.EnvRequirePricePerSqft, config.Server.RequirePricePerSqft),
		ArtifactsDir:        getEnvOrDefault(common.EnvArtifactsDir, orDefault(config.Artifacts.Dir, common.DefaultArtifactsDir)),
		PreprocessorFile:    getEnvOrDefault(common.EnvPreprocessorFile, orDefault(config.Artifacts.PreprocessorFile, common.DefaultPreprocessorFile)),
		ModelFile:           getEnvOrDefault(common.EnvModelFile, orDefault(config.Artifacts.ModelFile, common.DefaultModelFile)),
		ModelVersion:        getEnvOrDefault(common.EnvModelVersion, config.Artifacts.Version),
		RegistryPath:        getEnvOrDefault(common.EnvRegistryPath, config.Artifacts.RegistryPath),
		BatchWorkers:        getIntFromEnvOrConfig(common.EnvBatchWorkers, config.Batch.Workers, common.DefaultBatchWorkers),
		MaxBatchSize:        getIntFromEnvOrConfig(common.EnvMaxBatchSize, config.Batch.MaxSize, common.DefaultMaxBatchSize),
		BatchPolicy:         getEnvOrDefault(common.EnvBatchPolicy, orDefault(config.Batch.Policy, common.DefaultBatchPolicy)),
		ExplainFeatures:     getBoolFromEnvOrConfig(common.EnvExplainFeatures, config.Features.Explain),
		DriftWindow:         getIntFromEnvOrConfig(common.EnvDriftWindow, config.Features.DriftWindow, 0),
		DriftThreshold:      driftThreshold,
		LogLevel:            getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:           getEnvOrDefault(common.EnvLogFormat, orDefault(config.Logging.Format, common.DefaultLogFormat)),
		Pricing:             pricing,
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	pricing := features.DefaultPricingTables()
	pricing.DefaultBaseRate = getFloatOrDefault(common.EnvDefaultBaseRate, pricing.DefaultBaseRate)

	settings := Settings{
		ListenPort:          getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		MetricsEnabled:      getBoolOrDefault(common.EnvMetricsEnabled, true),
		RequestTimeout:      getDurationOrDefault(common.EnvRequestTimeout, common.DefaultRequestTimeout*time.Millisecond),
		RequirePricePerSqft: getBoolOrDefault(common.EnvRequirePricePerSqft, false),
		ArtifactsDir:        getEnvOrDefault(common.EnvArtifactsDir, common.DefaultArtifactsDir),
		PreprocessorFile:    getEnvOrDefault(common.EnvPreprocessorFile, common.DefaultPreprocessorFile),
		ModelFile:           getEnvOrDefault(common.EnvModelFile, common.DefaultModelFile),
		ModelVersion:        os.Getenv(common.EnvModelVersion), // optional
		RegistryPath:        os.Getenv(common.EnvRegistryPath), // optional
		BatchWorkers:        getIntOrDefault(common.EnvBatchWorkers, common.DefaultBatchWorkers),
		MaxBatchSize:        getIntOrDefault(common.EnvMaxBatchSize, common.DefaultMaxBatchSize),
		BatchPolicy:         getEnvOrDefault(common.EnvBatchPolicy, common.DefaultBatchPolicy),
		ExplainFeatures:     getBoolOrDefault(common.EnvExplainFeatures, false),
		DriftWindow:         getIntOrDefault(common.EnvDriftWindow, 0),
		DriftThreshold:      getFloatOrDefault(common.EnvDriftThreshold, common.DefaultDriftThreshold),
		LogLevel:            getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:           getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		Pricing:             pricing,
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// mergePricing overlays configured pricing tables on the shipped defaults.
func mergePricing(configured features.PricingTables) features.PricingTables {
	tables := features.DefaultPricingTables()
	for loc, rate := range configured.BaseRates {
		tables.BaseRates[loc] = rate
	}
	for cond, mult := range configured.ConditionMultipliers {
		tables.ConditionMultipliers[cond] = mult
	}
	if configured.DefaultBaseRate != 0 {
		tables.DefaultBaseRate = configured.DefaultBaseRate
	}
	return tables
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getDurationOrDefault accepts Go durations ("750ms") or bare milliseconds.
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	return configValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ListenPort < common.MinListenPort || settings.ListenPort > common.MaxListenPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d",
			common.MinListenPort, common.MaxListenPort, settings.ListenPort)
	}

	minTimeout := common.MinRequestTimeout * time.Millisecond
	maxTimeout := common.MaxRequestTimeout * time.Millisecond
	if settings.RequestTimeout < minTimeout || settings.RequestTimeout > maxTimeout {
		return fmt.Errorf("request timeout must be between %v and %v, got %v", minTimeout, maxTimeout, settings.RequestTimeout)
	}

	if settings.ArtifactsDir == "" {
		return fmt.Errorf("artifacts directory cannot be empty")
	}
	if settings.PreprocessorFile == "" || settings.ModelFile == "" {
		return fmt.Errorf("artifact file names cannot be empty")
	}

	if settings.BatchWorkers <= 0 || settings.BatchWorkers > common.MaxBatchWorkers {
		return fmt.Errorf("batch workers must be between 1 and %d, got %d", common.MaxBatchWorkers, settings.BatchWorkers)
	}
	if settings.MaxBatchSize <= 0 || settings.MaxBatchSize > common.MaxBatchSizeLimit {
		return fmt.Errorf("max batch size must be between 1 and %d, got %d", common.MaxBatchSizeLimit, settings.MaxBatchSize)
	}
	settings.BatchPolicy = strings.ToLower(strings.TrimSpace(settings.BatchPolicy))
	if settings.BatchPolicy != common.BatchPolicyIsolate && settings.BatchPolicy != common.BatchPolicyFailFast {
		return fmt.Errorf("batch policy must be %q or %q, got %q",
			common.BatchPolicyIsolate, common.BatchPolicyFailFast, settings.BatchPolicy)
	}

	if settings.DriftWindow < 0 || settings.DriftWindow > common.MaxDriftWindow {
		return fmt.Errorf("drift window must be between 0 and %d, got %d", common.MaxDriftWindow, settings.DriftWindow)
	}
	if settings.DriftThreshold <= 0 {
		return fmt.Errorf("drift threshold must be positive, got %f", settings.DriftThreshold)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}
	if settings.LogFormat != "json" && settings.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	return validatePricing(settings.Pricing)
}

func validatePricing(p features.PricingTables) error {
	if p.DefaultBaseRate <= 0 || p.DefaultBaseRate > common.MaxBaseRate {
		return fmt.Errorf("default base rate must be between 0 and %.0f, got %f", common.MaxBaseRate, p.DefaultBaseRate)
	}
	for loc, rate := range p.BaseRates {
		if !contains(common.Locations, loc) {
			return fmt.Errorf("base rate for unknown location %q", loc)
		}
		if rate <= 0 || rate > common.MaxBaseRate {
			return fmt.Errorf("location %s: base rate must be between 0 and %.0f, got %f", loc, common.MaxBaseRate, rate)
		}
	}
	for cond, mult := range p.ConditionMultipliers {
		if !contains(common.Conditions, cond) {
			return fmt.Errorf("multiplier for unknown condition %q", cond)
		}
		if mult <= 0 || mult > common.MaxConditionFactor {
			return fmt.Errorf("condition %s: multiplier must be between 0 and %.0f, got %f", cond, common.MaxConditionFactor, mult)
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
