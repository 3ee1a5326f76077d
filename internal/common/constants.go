package common

import "errors"

// Dataset columns
const (
	StatusColumn    = "status"
	StudentIDColumn = "student_id"
)

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvDataPath       = "DATA_PATH"
	EnvModelPath      = "MODEL_PATH"
	EnvOutputDir      = "EDA_OUTPUT_DIR"
	EnvTargetColumn   = "TARGET_COLUMN"
	EnvIDColumn       = "ID_COLUMN"
	EnvStorePath      = "STORE_PATH"
	EnvServerPort     = "SERVER_PORT"
	EnvServerURL      = "SERVER_URL"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvRateLimit      = "RATE_LIMIT"
	EnvRateBurst      = "RATE_BURST"
	EnvSVMC           = "SVM_C"
	EnvSVMGamma       = "SVM_GAMMA"
	EnvLogLevel       = "LOG_LEVEL"
)

// Configuration defaults
const (
	DefaultDataPath       = "research/Job_Placement_Data_Enhanced.csv"
	DefaultModelPath      = "models/svm_model.json"
	DefaultOutputDir      = "research/eda_outputs"
	DefaultServerPort     = 8501
	DefaultServerURL      = "http://localhost:8501"
	DefaultRateLimit      = 20.0
	DefaultRateBurst      = 40
	DefaultSVMC           = 1.0
	DefaultLogLevel       = "info"
	DefaultHistoryLimit   = 20
	DefaultRequestTimeout = 5 // seconds
)

// Validation constants
const (
	MinServerPort = 1024
	MaxServerPort = 65535
	MaxRateLimit  = 10000.0
	MaxSVMC       = 1e6
)

// ErrFileNotFound is wrapped with the offending path whenever a dataset or a
// model bundle does not exist.
var ErrFileNotFound = errors.New("file not found")
