package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"bird-conservation/internal/common"
	"bird-conservation/internal/ml"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelPath        string
	ModelFormat      string
	CodecPath        string
	MetadataPath     string
	ModelsDir        string
	PythonPath       string
	InferenceURL     string
	InferenceTimeout time.Duration
	DatasetPath      string
	DatasetSheet     string
	DataPath         string
	MetricsPort      int
	LogLevel         string
	LogFormat        string
}

type ConfigFile struct {
	Model struct {
		Path             string `yaml:"path"`
		Format           string `yaml:"format"`
		CodecPath        string `yaml:"codecPath"`
		MetadataPath     string `yaml:"metadataPath"`
		ModelsDir        string `yaml:"modelsDir"`
		PythonPath       string `yaml:"pythonPath"`
		InferenceURL     string `yaml:"inferenceURL"`
		InferenceTimeout string `yaml:"inferenceTimeout"`
	} `yaml:"model"`

	Dataset struct {
		Path  string `yaml:"path"`
		Sheet string `yaml:"sheet"`
	} `yaml:"dataset"`

	Storage struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"storage"`

	System struct {
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
		LogFormat   string `yaml:"logFormat"`
	} `yaml:"system"`
}

// Load reads .env when present, then the YAML file named by CONFIG_FILE or
// the environment alone. Environment values override the file.
func Load() (Settings, error) {
	if err := godotenv.Load(common.DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to read %s: %w", common.DefaultEnvFile, err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
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

	timeout, err := time.ParseDuration(orDefault(config.Model.InferenceTimeout, common.DefaultInferenceTimeout))
	if err != nil {
		return Settings{}, fmt.Errorf("model.inferenceTimeout: %w", err)
	}

	settings := Settings{
		ModelPath:        getEnvOrDefault(common.EnvModelPath, config.Model.Path),
		ModelFormat:      getEnvOrDefault(common.EnvModelFormat, orDefault(config.Model.Format, common.DefaultModelFormat)),
		CodecPath:        getEnvOrDefault(common.EnvCodecPath, config.Model.CodecPath),
		MetadataPath:     getEnvOrDefault(common.EnvMetadataPath, config.Model.MetadataPath),
		ModelsDir:        getEnvOrDefault(common.EnvModelsDir, orDefault(config.Model.ModelsDir, common.DefaultModelsDir)),
		PythonPath:       getEnvOrDefault(common.EnvPythonPath, config.Model.PythonPath),
		InferenceURL:     getEnvOrDefault(common.EnvInferenceURL, config.Model.InferenceURL),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, timeout),
		DatasetPath:      getEnvOrDefault(common.EnvDatasetPath, config.Dataset.Path),
		DatasetSheet:     getEnvOrDefault(common.EnvDatasetSheet, config.Dataset.Sheet),
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		MetricsPort:      getIntOrDefault(common.EnvMetricsPort, config.System.MetricsPort),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		LogFormat:        getEnvOrDefault(common.EnvLogFormat, orDefault(config.System.LogFormat, common.DefaultLogFormat)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	defaultTimeout, _ := time.ParseDuration(common.DefaultInferenceTimeout)

	settings := Settings{
		ModelPath:        os.Getenv(common.EnvModelPath),
		ModelFormat:      getEnvOrDefault(common.EnvModelFormat, common.DefaultModelFormat),
		CodecPath:        os.Getenv(common.EnvCodecPath),
		MetadataPath:     os.Getenv(common.EnvMetadataPath),
		ModelsDir:        getEnvOrDefault(common.EnvModelsDir, common.DefaultModelsDir),
		PythonPath:       os.Getenv(common.EnvPythonPath),
		InferenceURL:     os.Getenv(common.EnvInferenceURL),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, defaultTimeout),
		DatasetPath:      os.Getenv(common.EnvDatasetPath),
		DatasetSheet:     os.Getenv(common.EnvDatasetSheet),
		DataPath:         os.Getenv(common.EnvDataPath), // optional
		MetricsPort:      getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:        getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// ModelConfig returns the artifact configuration for ml.Load.
func (s Settings) ModelConfig() ml.Config {
	return ml.Config{
		ModelPath:    s.ModelPath,
		Format:       s.ModelFormat,
		CodecPath:    s.CodecPath,
		MetadataPath: s.MetadataPath,
		PythonPath:   s.PythonPath,
		InferenceURL: s.InferenceURL,
		Timeout:      s.InferenceTimeout,
	}
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

// validateSettings checks ranges and required combinations
func validateSettings(settings *Settings) error {
	settings.ModelFormat = strings.ToLower(strings.TrimSpace(settings.ModelFormat))
	if !slices.Contains(ml.Formats(), settings.ModelFormat) {
		return fmt.Errorf("model format must be one of %v, got %q", ml.Formats(), settings.ModelFormat)
	}

	if settings.ModelFormat == ml.FormatRemote && settings.InferenceURL == "" {
		return fmt.Errorf("model format %s requires %s", ml.FormatRemote, common.EnvInferenceURL)
	}
	if settings.InferenceURL != "" {
		u, err := url.Parse(settings.InferenceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("inference URL must be an http(s) URL, got %q", settings.InferenceURL)
		}
	}

	if settings.ModelPath == "" && settings.ModelsDir == "" && settings.InferenceURL == "" {
		return fmt.Errorf("one of %s, %s or %s is required", common.EnvModelPath, common.EnvModelsDir, common.EnvInferenceURL)
	}

	if settings.InferenceTimeout < 100*time.Millisecond || settings.InferenceTimeout > 5*time.Minute {
		return fmt.Errorf("inference timeout must be between 100ms and 5m, got %v", settings.InferenceTimeout)
	}

	if settings.MetricsPort != 0 && (settings.MetricsPort < 1024 || settings.MetricsPort > 65535) {
		return fmt.Errorf("metrics port must be 0 (disabled) or between 1024 and 65535, got %d", settings.MetricsPort)
	}

	if settings.DatasetSheet != "" && settings.DatasetPath == "" {
		return fmt.Errorf("%s is set but %s is empty", common.EnvDatasetSheet, common.EnvDatasetPath)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}
	switch settings.LogFormat {
	case common.LogFormatJSON, common.LogFormatConsole:
	default:
		return fmt.Errorf("log format must be %s or %s, got %q", common.LogFormatJSON, common.LogFormatConsole, settings.LogFormat)
	}

	return nil
}
