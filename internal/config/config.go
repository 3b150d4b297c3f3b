// Package config loads the model catalog and feature map consumed at
// process start.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/smartdeal/dealextract/internal/domain"
)

// Config holds all configuration for the dispatch core.
type Config struct {
	Server   ServerConfig           `mapstructure:"server"`
	Cache    CacheConfig            `mapstructure:"cache"`
	Matching MatchingConfig         `mapstructure:"matching"`
	Retry    RetryConfig            `mapstructure:"retry"`
	Models   []domain.ModelConfig   `mapstructure:"models"`
	Features []domain.FeatureConfig `mapstructure:"features"`

	// FeatureMapPath, when set, is where administrative feature-map
	// updates are persisted.
	FeatureMapPath string `mapstructure:"feature_map_path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// CacheConfig holds response-cache configuration.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MatchingConfig selects the evaluation mode and its thresholds.
type MatchingConfig struct {
	Mode string `mapstructure:"mode"` // "legacy" or "geometry"
}

// RetryConfig holds the shared retry/backoff policy parameters.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("dealextract")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dealextract/")

	v.SetEnvPrefix("DEALEXTRACT")
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover the rest.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if len(config.Models) == 0 {
		config.Models = DefaultModels()
	}
	if len(config.Features) == 0 {
		config.Features = DefaultFeatures()
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")

	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.sweep_interval", "10m")

	v.SetDefault("matching.mode", "geometry")

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
}

// DefaultModels is the built-in model catalog used when the config file
// supplies none.
func DefaultModels() []domain.ModelConfig {
	return []domain.ModelConfig{
		{
			ID:                   "gemini-2.5-flash-lite",
			Kind:                 domain.KindCloudAPI,
			CostPerMTok:          0.075,
			MaxRequestsPerMinute: 60,
			DefaultTimeout:       60 * time.Second,
			APIKeyEnv:            "GOOGLE_API_KEY",
		},
		{
			ID:                   "gemini-2.5-flash",
			Kind:                 domain.KindCloudAPI,
			CostPerMTok:          0.15,
			MaxRequestsPerMinute: 60,
			DefaultTimeout:       60 * time.Second,
			APIKeyEnv:            "GOOGLE_API_KEY",
		},
		{
			ID:                   "claude-sonnet-4-20250514",
			Kind:                 domain.KindCloudAPI,
			CostPerMTok:          3.0,
			MaxRequestsPerMinute: 50,
			DefaultTimeout:       60 * time.Second,
			APIKeyEnv:            "ANTHROPIC_API_KEY",
		},
		{
			ID:                   "gpt-4o",
			Kind:                 domain.KindCloudAPI,
			CostPerMTok:          2.5,
			MaxRequestsPerMinute: 60,
			DefaultTimeout:       60 * time.Second,
			APIKeyEnv:            "OPENAI_API_KEY",
		},
		{
			ID:                   "llava:7b",
			Kind:                 domain.KindLocalInference,
			MaxRequestsPerMinute: 600,
			DefaultTimeout:       120 * time.Second,
			BaseURL:              "http://localhost:11434",
		},
		{
			ID:                   "qwen2.5vl:7b",
			Kind:                 domain.KindLocalInference,
			MaxRequestsPerMinute: 600,
			DefaultTimeout:       120 * time.Second,
			BaseURL:              "http://localhost:11434",
		},
		{
			ID:                   "ocr-tesseract",
			Kind:                 domain.KindOCRPipeline,
			MaxRequestsPerMinute: 600,
			DefaultTimeout:       30 * time.Second,
		},
	}
}

// DefaultFeatures is the built-in feature map.
func DefaultFeatures() []domain.FeatureConfig {
	return []domain.FeatureConfig{
		{
			Name:           "brochure_extraction",
			DefaultModelID: "gemini-2.5-flash-lite",
			AllowedModelIDs: []string{
				"gemini-2.5-flash-lite", "gemini-2.5-flash",
				"claude-sonnet-4-20250514", "gpt-4o",
				"llava:7b", "qwen2.5vl:7b", "ocr-tesseract",
			},
			CacheTTL: 24 * time.Hour,
		},
		{
			Name:           "receipt_parsing",
			DefaultModelID: "gemini-2.5-flash-lite",
			AllowedModelIDs: []string{
				"gemini-2.5-flash-lite", "gpt-4o", "ocr-tesseract",
			},
			CacheTTL: 24 * time.Hour,
		},
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Matching.Mode != "legacy" && config.Matching.Mode != "geometry" {
		return fmt.Errorf("matching mode must be 'legacy' or 'geometry', got: %s", config.Matching.Mode)
	}

	if config.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got: %d", config.Retry.MaxRetries)
	}

	ids := make(map[string]bool, len(config.Models))
	for _, m := range config.Models {
		if m.ID == "" {
			return fmt.Errorf("model with empty id in catalog")
		}
		if ids[m.ID] {
			return fmt.Errorf("duplicate model id in catalog: %s", m.ID)
		}
		ids[m.ID] = true
		switch m.Kind {
		case domain.KindCloudAPI, domain.KindLocalInference, domain.KindOCRPipeline:
		default:
			return fmt.Errorf("model %s has unknown backend kind: %s", m.ID, m.Kind)
		}
	}

	for _, f := range config.Features {
		if f.Name == "" {
			return fmt.Errorf("feature with empty name")
		}
		if !ids[f.DefaultModelID] {
			return fmt.Errorf("feature %s default model %s not in catalog", f.Name, f.DefaultModelID)
		}
		for _, id := range f.AllowedModelIDs {
			if !ids[id] {
				return fmt.Errorf("feature %s allows unknown model %s", f.Name, id)
			}
		}
	}

	return nil
}
