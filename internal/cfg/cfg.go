package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"placement-predictor/internal/common"
)

type Settings struct {
	DataPath       string
	ModelPath      string
	OutputDir      string
	TargetColumn   string
	IDColumn       string
	StorePath      string // empty disables prediction history
	ServerPort     int
	ServerURL      string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	HistoryLimit   int
	SVMC           float64
	SVMGamma       float64 // 0 selects the "scale" heuristic
	LogLevel       string
}

type ConfigFile struct {
	Data struct {
		Path         string `yaml:"path"`
		TargetColumn string `yaml:"targetColumn"`
		IDColumn     string `yaml:"idColumn"`
		OutputDir    string `yaml:"outputDir"`
	} `yaml:"data"`

	Model struct {
		Path  string  `yaml:"path"`
		C     float64 `yaml:"c"`
		Gamma float64 `yaml:"gamma"`
	} `yaml:"model"`

	Server struct {
		Port           int     `yaml:"port"`
		URL            string  `yaml:"url"`
		RequestTimeout string  `yaml:"requestTimeout"`
		RateLimit      float64 `yaml:"rateLimit"`
		RateBurst      int     `yaml:"rateBurst"`
	} `yaml:"server"`

	System struct {
		StorePath    string `yaml:"storePath"`
		HistoryLimit int    `yaml:"historyLimit"`
		LogLevel     string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE, or
// the environment alone when no file is configured. Environment variables
// always win over file values.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to read .env: %w", err)
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// LoadFile loads settings from an explicit YAML path, as used by --config.
func LoadFile(path string) (Settings, error) {
	return loadFromYAML(path)
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
		requestTimeout = common.DefaultRequestTimeout * time.Second
	}

	settings := Settings{
		DataPath:       getEnvOrDefault(common.EnvDataPath, orString(config.Data.Path, common.DefaultDataPath)),
		ModelPath:      getEnvOrDefault(common.EnvModelPath, orString(config.Model.Path, common.DefaultModelPath)),
		OutputDir:      getEnvOrDefault(common.EnvOutputDir, orString(config.Data.OutputDir, common.DefaultOutputDir)),
		TargetColumn:   getEnvOrDefault(common.EnvTargetColumn, orString(config.Data.TargetColumn, common.StatusColumn)),
		IDColumn:       getEnvOrDefault(common.EnvIDColumn, orString(config.Data.IDColumn, common.StudentIDColumn)),
		StorePath:      getEnvOrDefault(common.EnvStorePath, config.System.StorePath),
		ServerPort:     getIntFromEnvOrConfig(common.EnvServerPort, config.Server.Port, common.DefaultServerPort),
		ServerURL:      getEnvOrDefault(common.EnvServerURL, orString(config.Server.URL, common.DefaultServerURL)),
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		RateLimit:      getFloatFromEnvOrConfig(common.EnvRateLimit, config.Server.RateLimit, common.DefaultRateLimit),
		RateBurst:      getIntFromEnvOrConfig(common.EnvRateBurst, config.Server.RateBurst, common.DefaultRateBurst),
		HistoryLimit:   orInt(config.System.HistoryLimit, common.DefaultHistoryLimit),
		SVMC:           getFloatFromEnvOrConfig(common.EnvSVMC, config.Model.C, common.DefaultSVMC),
		SVMGamma:       getFloatFromEnvOrConfig(common.EnvSVMGamma, config.Model.Gamma, 0),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, common.DefaultLogLevel)),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:       getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		ModelPath:      getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		OutputDir:      getEnvOrDefault(common.EnvOutputDir, common.DefaultOutputDir),
		TargetColumn:   getEnvOrDefault(common.EnvTargetColumn, common.StatusColumn),
		IDColumn:       getEnvOrDefault(common.EnvIDColumn, common.StudentIDColumn),
		StorePath:      os.Getenv(common.EnvStorePath), // optional
		ServerPort:     getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		ServerURL:      getEnvOrDefault(common.EnvServerURL, common.DefaultServerURL),
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, common.DefaultRequestTimeout*time.Second),
		RateLimit:      getFloatOrDefault(common.EnvRateLimit, common.DefaultRateLimit),
		RateBurst:      getIntOrDefault(common.EnvRateBurst, common.DefaultRateBurst),
		HistoryLimit:   common.DefaultHistoryLimit,
		SVMC:           getFloatOrDefault(common.EnvSVMC, common.DefaultSVMC),
		SVMGamma:       getFloatOrDefault(common.EnvSVMGamma, 0),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Level returns the parsed zerolog level. Settings that passed validation
// always parse.
func (s *Settings) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
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

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return orInt(configValue, defaultValue)
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

// validateSettings performs range checks on every configuration value
func validateSettings(settings *Settings) error {
	// Validate paths
	if settings.DataPath == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.OutputDir == "" {
		return fmt.Errorf("EDA output directory cannot be empty")
	}

	// Validate columns
	if settings.TargetColumn == "" {
		return fmt.Errorf("target column cannot be empty")
	}
	if settings.IDColumn == settings.TargetColumn {
		return fmt.Errorf("ID column and target column must differ, both are %q", settings.TargetColumn)
	}

	// Validate server
	if settings.ServerPort < common.MinServerPort || settings.ServerPort > common.MaxServerPort {
		return fmt.Errorf("server port must be between %d and %d, got %d", common.MinServerPort, common.MaxServerPort, settings.ServerPort)
	}
	if settings.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}
	if settings.RateLimit <= 0 || settings.RateLimit > common.MaxRateLimit {
		return fmt.Errorf("rate limit must be between 0 and %.0f requests per second, got %f", common.MaxRateLimit, settings.RateLimit)
	}
	if settings.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1, got %d", settings.RateBurst)
	}
	if settings.HistoryLimit < 1 || settings.HistoryLimit > 1000 {
		return fmt.Errorf("history limit must be between 1 and 1000, got %d", settings.HistoryLimit)
	}

	// Validate model hyperparameters
	if settings.SVMC <= 0 || settings.SVMC > common.MaxSVMC {
		return fmt.Errorf("SVM C must be between 0 and %g, got %f", common.MaxSVMC, settings.SVMC)
	}
	if settings.SVMGamma < 0 {
		return fmt.Errorf("SVM gamma cannot be negative, got %f", settings.SVMGamma)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}
