package common

// Property locations accepted by the service
const (
	LocationRural      = "Rural"
	LocationSuburb     = "Suburb"
	LocationUrban      = "Urban"
	LocationDowntown   = "Downtown"
	LocationWaterfront = "Waterfront"
	LocationMountain   = "Mountain"
)

// Property conditions accepted by the service
const (
	ConditionPoor      = "Poor"
	ConditionFair      = "Fair"
	ConditionGood      = "Good"
	ConditionExcellent = "Excellent"
)

// Locations lists every accepted location in schema order.
var Locations = []string{
	LocationRural, LocationSuburb, LocationUrban,
	LocationDowntown, LocationWaterfront, LocationMountain,
}

// Conditions lists every accepted condition in schema order.
var Conditions = []string{ConditionPoor, ConditionFair, ConditionGood, ConditionExcellent}

// Environment variable keys
const (
	EnvConfigFile          = "CONFIG_FILE"
	EnvListenPort          = "LISTEN_PORT"
	EnvArtifactsDir        = "ARTIFACTS_DIR"
	EnvPreprocessorFile    = "PREPROCESSOR_FILE"
	EnvModelFile           = "MODEL_FILE"
	EnvModelVersion        = "MODEL_VERSION"
	EnvRegistryPath        = "REGISTRY_PATH"
	EnvBatchWorkers        = "BATCH_WORKERS"
	EnvMaxBatchSize        = "MAX_BATCH_SIZE"
	EnvBatchPolicy         = "BATCH_POLICY"
	EnvRequestTimeout      = "REQUEST_TIMEOUT"
	EnvRequirePricePerSqft = "REQUIRE_PRICE_PER_SQFT"
	EnvExplainFeatures     = "EXPLAIN_FEATURES"
	EnvMetricsEnabled      = "METRICS_ENABLED"
	EnvLogLevel            = "LOG_LEVEL"
	EnvLogFormat           = "LOG_FORMAT"
	EnvDefaultBaseRate     = "DEFAULT_BASE_RATE"
	EnvDriftWindow         = "DRIFT_WINDOW"
	EnvDriftThreshold      = "DRIFT_THRESHOLD"
)

// Configuration defaults
const (
	DefaultListenPort       = 8000
	DefaultArtifactsDir     = "models/trained"
	DefaultPreprocessorFile = "preprocessor.json"
	DefaultModelFile        = "model.json"
	DefaultBatchWorkers     = 4
	DefaultMaxBatchSize     = 100
	DefaultBatchPolicy      = "isolate"
	DefaultRequestTimeout   = 5000 // milliseconds
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultBaseRate         = 300.0 // currency units per sqft
	DefaultMultiplier       = 1.0
	DefaultDriftThreshold   = 0.5 // fitted standard deviations
)

// Batch policies
const (
	BatchPolicyIsolate  = "isolate"
	BatchPolicyFailFast = "failfast"
)

// Validation constants
const (
	MinListenPort      = 1024
	MaxListenPort      = 65535
	MaxBatchWorkers    = 64
	MaxBatchSizeLimit  = 10000
	MinRequestTimeout  = 100 // milliseconds
	MaxRequestTimeout  = 60000
	MinSqft            = 1000.0
	MaxSqft            = 5000.0
	MinBedrooms        = 1
	MaxBedrooms        = 6
	MinBathrooms       = 0.5
	MaxBathrooms       = 5.0
	MinYearBuilt       = 1945
	MaxYearBuilt       = 2023
	MinPricePerSqft    = 50.0
	MaxPricePerSqft    = 1000.0
	MaxBaseRate        = 10000.0
	MaxConditionFactor = 10.0
	MaxDriftWindow     = 100000
)
