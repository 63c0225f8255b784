// Package cfg loads service configuration from an optional YAML file with
// environment variable overrides, then validates the result. Configuration is
// read once at process start.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"loanrisk-api/internal/common"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	ModelPath        string
	Port             int
	MetricsPort      int
	DashboardPort    int // 0 disables the dashboard
	DataPath         string
	ProbThreshold    float64
	InferenceTimeout time.Duration
	EnableFallback   bool
	RateLimit        int // requests per minute per client, 0 disables limiting
	MaxBatchSize     int
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Model struct {
		Path             string  `yaml:"path"`
		ProbThreshold    float64 `yaml:"probThreshold"`
		InferenceTimeout string  `yaml:"inferenceTimeout"`
		// Pointer so an absent key keeps the enabled default.
		EnableFallback *bool `yaml:"enableFallback"`
	} `yaml:"model"`

	Server struct {
		Port          int `yaml:"port"`
		MetricsPort   int `yaml:"metricsPort"`
		DashboardPort int `yaml:"dashboardPort"`
		RateLimit     int `yaml:"rateLimit"`
		MaxBatchSize  int `yaml:"maxBatchSize"`
	} `yaml:"server"`

	System struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"system"`
}

// Load resolves configuration from CONFIG_FILE when set, falling back to
// environment variables alone.
func Load() (Settings, error) {
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("parse config file: %w", err)
	}

	inferenceTimeout, err := time.ParseDuration(config.Model.InferenceTimeout)
	if err != nil {
		inferenceTimeout = 5 * time.Second
	}

	enableFallback := true
	if config.Model.EnableFallback != nil {
		enableFallback = *config.Model.EnableFallback
	}

	settings := Settings{
		ModelPath:        getEnvOrDefault(common.EnvModelPath, defaultString(config.Model.Path, common.DefaultModelPath)),
		Port:             getIntFromEnvOrConfig(common.EnvPort, config.Server.Port, common.DefaultPort),
		MetricsPort:      getIntFromEnvOrConfig(common.EnvMetricsPort, config.Server.MetricsPort, common.DefaultMetricsPort),
		DashboardPort:    getIntFromEnvOrConfig(common.EnvDashboardPort, config.Server.DashboardPort, 0),
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ProbThreshold:    getFloatFromEnvOrConfig(common.EnvProbThreshold, config.Model.ProbThreshold, common.DefaultProbThreshold),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, inferenceTimeout),
		EnableFallback:   getBoolOrDefault(common.EnvEnableFallback, enableFallback),
		RateLimit:        getIntFromEnvOrConfig(common.EnvRateLimit, config.Server.RateLimit, common.DefaultRateLimit),
		MaxBatchSize:     getIntFromEnvOrConfig(common.EnvMaxBatchSize, config.Server.MaxBatchSize, common.DefaultMaxBatchSize),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelPath:        getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		Port:             getIntOrDefault(common.EnvPort, common.DefaultPort),
		MetricsPort:      getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		DashboardPort:    getIntOrDefault(common.EnvDashboardPort, 0),
		DataPath:         os.Getenv(common.EnvDataPath), // optional
		ProbThreshold:    getFloatOrDefault(common.EnvProbThreshold, common.DefaultProbThreshold),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, 5*time.Second),
		EnableFallback:   getBoolOrDefault(common.EnvEnableFallback, true),
		RateLimit:        getIntOrDefault(common.EnvRateLimit, common.DefaultRateLimit),
		MaxBatchSize:     getIntOrDefault(common.EnvMaxBatchSize, common.DefaultMaxBatchSize),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func defaultString(v, def string) string {
	if v != "" {
		return v
	}
	return def
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

func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.DashboardPort != 0 && (settings.DashboardPort < common.MinPort || settings.DashboardPort > common.MaxPort) {
		return fmt.Errorf("dashboard port must be 0 or between %d and %d, got %d", common.MinPort, common.MaxPort, settings.DashboardPort)
	}
	if settings.Port == settings.MetricsPort {
		return fmt.Errorf("port and metrics port must differ, both are %d", settings.Port)
	}
	if settings.ProbThreshold <= 0 || settings.ProbThreshold >= 1 {
		return fmt.Errorf("probability threshold must be in (0,1), got %f", settings.ProbThreshold)
	}
	if settings.InferenceTimeout < 100*time.Millisecond || settings.InferenceTimeout > time.Minute {
		return fmt.Errorf("inference timeout must be between 100ms and 1m, got %v", settings.InferenceTimeout)
	}
	if settings.RateLimit < 0 {
		return fmt.Errorf("rate limit must be non-negative, got %d", settings.RateLimit)
	}
	if settings.MaxBatchSize <= 0 || settings.MaxBatchSize > common.MaxBatchSizeLimit {
		return fmt.Errorf("max batch size must be between 1 and %d, got %d", common.MaxBatchSizeLimit, settings.MaxBatchSize)
	}
	return nil
}
