package common

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvModelPath        = "MODEL_PATH"
	EnvModelFormat      = "MODEL_FORMAT"
	EnvCodecPath        = "CODEC_PATH"
	EnvMetadataPath     = "METADATA_PATH"
	EnvModelsDir        = "MODELS_DIR"
	EnvPythonPath       = "PYTHON_PATH"
	EnvInferenceURL     = "INFERENCE_URL"
	EnvInferenceTimeout = "INFERENCE_TIMEOUT"
	EnvDatasetPath      = "DATASET_PATH"
	EnvDatasetSheet     = "DATASET_SHEET"
	EnvDataPath         = "DATA_PATH"
	EnvMetricsPort      = "METRICS_PORT"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
)

// Configuration defaults
const (
	DefaultModelFormat      = "auto"
	DefaultModelsDir        = "models"
	DefaultInferenceTimeout = "10s"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPort      = 0 // disabled
	DefaultEnvFile          = ".env"
)

// Log formats
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Process exit codes
const (
	ExitOK          = 0
	ExitUsage       = 1
	ExitInput       = 2
	ExitUnavailable = 3
	ExitInternal    = 4
)

// Storage
const (
	PredictionsDBFile      = "predictions.db"
	PredictionsBucket      = "predictions"
	DefaultHistoryLimit    = 20
	StorageLockTimeoutSecs = 1
)

// Result line prefixes shown to end users
const (
	PredictedPrefix = "Predicted Conservation Concern: "
	ErrorPrefix     = "Error: "
)
