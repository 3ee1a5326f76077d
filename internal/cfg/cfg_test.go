package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"placement-predictor/internal/common"
)

var testEnvKeys = []string{
	common.EnvConfigFile,
	common.EnvDataPath,
	common.EnvModelPath,
	common.EnvOutputDir,
	common.EnvTargetColumn,
	common.EnvIDColumn,
	common.EnvStorePath,
	common.EnvServerPort,
	common.EnvServerURL,
	common.EnvRequestTimeout,
	common.EnvRateLimit,
	common.EnvRateBurst,
	common.EnvSVMC,
	common.EnvSVMGamma,
	common.EnvLogLevel,
}

// clearTestEnv blanks every variable the loader reads; t.Setenv restores them.
func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, key := range testEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != common.DefaultDataPath {
					t.Errorf("expected default DataPath, got %s", settings.DataPath)
				}
				if settings.ModelPath != common.DefaultModelPath {
					t.Errorf("expected default ModelPath, got %s", settings.ModelPath)
				}
				if settings.TargetColumn != "status" {
					t.Errorf("expected target column 'status', got %s", settings.TargetColumn)
				}
				if settings.IDColumn != "student_id" {
					t.Errorf("expected ID column 'student_id', got %s", settings.IDColumn)
				}
				if settings.StorePath != "" {
					t.Errorf("expected history to be disabled by default, got %s", settings.StorePath)
				}
				if settings.ServerPort != 8501 {
					t.Errorf("expected default ServerPort 8501, got %d", settings.ServerPort)
				}
				if settings.RequestTimeout != 5*time.Second {
					t.Errorf("expected default RequestTimeout 5s, got %v", settings.RequestTimeout)
				}
				if settings.SVMC != 1.0 {
					t.Errorf("expected default SVMC 1.0, got %f", settings.SVMC)
				}
				if settings.SVMGamma != 0 {
					t.Errorf("expected scale gamma (0) by default, got %f", settings.SVMGamma)
				}
				if settings.HistoryLimit != common.DefaultHistoryLimit {
					t.Errorf("expected default HistoryLimit, got %d", settings.HistoryLimit)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				common.EnvDataPath:       "/data/placement.xlsx",
				common.EnvModelPath:      "/models/bundle.json",
				common.EnvStorePath:      "/var/lib/placement",
				common.EnvServerPort:     "9090",
				common.EnvRequestTimeout: "2s",
				common.EnvRateLimit:      "5.5",
				common.EnvRateBurst:      "10",
				common.EnvSVMC:           "10",
				common.EnvSVMGamma:       "0.05",
				common.EnvLogLevel:       "debug",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != "/data/placement.xlsx" {
					t.Errorf("expected custom DataPath, got %s", settings.DataPath)
				}
				if settings.ModelPath != "/models/bundle.json" {
					t.Errorf("expected custom ModelPath, got %s", settings.ModelPath)
				}
				if settings.StorePath != "/var/lib/placement" {
					t.Errorf("expected custom StorePath, got %s", settings.StorePath)
				}
				if settings.ServerPort != 9090 {
					t.Errorf("expected ServerPort 9090, got %d", settings.ServerPort)
				}
				if settings.RequestTimeout != 2*time.Second {
					t.Errorf("expected RequestTimeout 2s, got %v", settings.RequestTimeout)
				}
				if settings.RateLimit != 5.5 || settings.RateBurst != 10 {
					t.Errorf("expected rate 5.5/10, got %f/%d", settings.RateLimit, settings.RateBurst)
				}
				if settings.SVMC != 10 || settings.SVMGamma != 0.05 {
					t.Errorf("expected C=10 gamma=0.05, got C=%f gamma=%f", settings.SVMC, settings.SVMGamma)
				}
				if settings.Level() != zerolog.DebugLevel {
					t.Errorf("expected debug level, got %v", settings.Level())
				}
			},
		},
		{
			name: "unparseable numbers fall back to defaults",
			envVars: map[string]string{
				common.EnvServerPort: "not-a-port",
				common.EnvSVMC:       "lots",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ServerPort != common.DefaultServerPort {
					t.Errorf("expected default port, got %d", settings.ServerPort)
				}
				if settings.SVMC != common.DefaultSVMC {
					t.Errorf("expected default C, got %f", settings.SVMC)
				}
			},
		},
		{
			name:    "port out of range",
			envVars: map[string]string{common.EnvServerPort: "80"},
			wantErr: true,
		},
		{
			name:    "negative C",
			envVars: map[string]string{common.EnvSVMC: "-1"},
			wantErr: true,
		},
		{
			name:    "bad log level",
			envVars: map[string]string{common.EnvLogLevel: "chatty"},
			wantErr: true,
		},
		{
			name: "target and id collide",
			envVars: map[string]string{
				common.EnvTargetColumn: "student_id",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all environment variables first
			clearTestEnv(t)

			// Set test environment variables
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
data:
  path: "/data/jobs.csv"
  targetColumn: "status"
  idColumn: "student_id"
  outputDir: "/tmp/eda"

model:
  path: "/models/svm.json"
  c: 2.5
  gamma: 0.1

server:
  port: 9000
  url: "http://predictor:9000"
  requestTimeout: "3s"
  rateLimit: 50
  rateBurst: 100

system:
  storePath: "/var/lib/placement"
  historyLimit: 50
  logLevel: "warn"
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != "/data/jobs.csv" {
					t.Errorf("expected DataPath '/data/jobs.csv', got %s", settings.DataPath)
				}
				if settings.OutputDir != "/tmp/eda" {
					t.Errorf("expected OutputDir '/tmp/eda', got %s", settings.OutputDir)
				}
				if settings.ModelPath != "/models/svm.json" {
					t.Errorf("expected ModelPath '/models/svm.json', got %s", settings.ModelPath)
				}
				if settings.SVMC != 2.5 || settings.SVMGamma != 0.1 {
					t.Errorf("expected C=2.5 gamma=0.1, got C=%f gamma=%f", settings.SVMC, settings.SVMGamma)
				}
				if settings.ServerPort != 9000 {
					t.Errorf("expected ServerPort 9000, got %d", settings.ServerPort)
				}
				if settings.ServerURL != "http://predictor:9000" {
					t.Errorf("expected ServerURL, got %s", settings.ServerURL)
				}
				if settings.RequestTimeout != 3*time.Second {
					t.Errorf("expected RequestTimeout 3s, got %v", settings.RequestTimeout)
				}
				if settings.RateLimit != 50 || settings.RateBurst != 100 {
					t.Errorf("expected rate 50/100, got %f/%d", settings.RateLimit, settings.RateBurst)
				}
				if settings.HistoryLimit != 50 {
					t.Errorf("expected HistoryLimit 50, got %d", settings.HistoryLimit)
				}
				if settings.Level() != zerolog.WarnLevel {
					t.Errorf("expected warn level, got %v", settings.Level())
				}
			},
		},
		{
			name: "partial YAML falls back to defaults",
			yamlContent: `
model:
  path: "bundle.json"
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != "bundle.json" {
					t.Errorf("expected ModelPath 'bundle.json', got %s", settings.ModelPath)
				}
				if settings.DataPath != common.DefaultDataPath {
					t.Errorf("expected default DataPath, got %s", settings.DataPath)
				}
				if settings.ServerPort != common.DefaultServerPort {
					t.Errorf("expected default ServerPort, got %d", settings.ServerPort)
				}
				if settings.RequestTimeout != common.DefaultRequestTimeout*time.Second {
					t.Errorf("expected default RequestTimeout, got %v", settings.RequestTimeout)
				}
			},
		},
		{
			name: "environment overrides YAML",
			yamlContent: `
model:
  path: "from-yaml.json"
  c: 3
server:
  port: 9000
`,
			envOverrides: map[string]string{
				common.EnvModelPath:  "from-env.json",
				common.EnvServerPort: "9100",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != "from-env.json" {
					t.Errorf("expected env ModelPath, got %s", settings.ModelPath)
				}
				if settings.ServerPort != 9100 {
					t.Errorf("expected env ServerPort 9100, got %d", settings.ServerPort)
				}
				if settings.SVMC != 3 {
					t.Errorf("expected YAML C=3, got %f", settings.SVMC)
				}
			},
		},
		{
			name:        "invalid YAML",
			yamlContent: "data: [unterminated",
			wantErr:     true,
		},
		{
			name: "invalid values",
			yamlContent: `
server:
  rateLimit: -5
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	clearTestEnv(t)

	_, err := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_UsesConfigFile(t *testing.T) {
	clearTestEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "model:\n  path: \"via-config-file.json\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(common.EnvConfigFile, configPath)

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.ModelPath != "via-config-file.json" {
		t.Errorf("expected ModelPath from CONFIG_FILE, got %s", settings.ModelPath)
	}
}

func TestLoad_Env(t *testing.T) {
	clearTestEnv(t)
	t.Setenv(common.EnvDataPath, "env.csv")

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.DataPath != "env.csv" {
		t.Errorf("expected DataPath from env, got %s", settings.DataPath)
	}
}

func TestLoadFile(t *testing.T) {
	clearTestEnv(t)

	configPath := filepath.Join(t.TempDir(), "explicit.yaml")
	if err := os.WriteFile(configPath, []byte("data:\n  path: \"explicit.csv\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.DataPath != "explicit.csv" {
		t.Errorf("expected DataPath 'explicit.csv', got %s", settings.DataPath)
	}
}
