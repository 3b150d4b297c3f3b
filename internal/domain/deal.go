// Package domain defines the core types shared across the extraction
// dispatch and evaluation components.
package domain

import "time"

// BackendKind categorizes an extraction backend.
type BackendKind string

const (
	KindCloudAPI       BackendKind = "cloud-api"
	KindLocalInference BackendKind = "local-inference"
	KindOCRPipeline    BackendKind = "ocr-pipeline"
)

// ModelConfig is an immutable descriptor for one extraction backend.
// Created at process start from configuration and looked up by ID.
type ModelConfig struct {
	ID                   string        `mapstructure:"id" yaml:"id" json:"id"`
	Kind                 BackendKind   `mapstructure:"kind" yaml:"kind" json:"kind"`
	CostPerMTok          float64       `mapstructure:"cost_per_mtok" yaml:"cost_per_mtok" json:"cost_per_mtok"`
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute" yaml:"max_requests_per_minute" json:"max_requests_per_minute"`
	DefaultTimeout       time.Duration `mapstructure:"default_timeout" yaml:"default_timeout" json:"default_timeout"`
	BaseURL              string        `mapstructure:"base_url" yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKeyEnv            string        `mapstructure:"api_key_env" yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
}

// FeatureConfig maps a logical feature to its default model and the set of
// models an override may select.
type FeatureConfig struct {
	Name            string        `mapstructure:"name" yaml:"name" json:"name"`
	DefaultModelID  string        `mapstructure:"default_model" yaml:"default_model" json:"default_model"`
	AllowedModelIDs []string      `mapstructure:"allowed_models" yaml:"allowed_models" json:"allowed_models"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`
}

// Allows reports whether the given model may serve this feature.
func (f FeatureConfig) Allows(modelID string) bool {
	for _, id := range f.AllowedModelIDs {
		if id == modelID {
			return true
		}
	}
	return false
}

// ExtractionRequest is a single content-extraction call. It is immutable
// and never persisted by this core.
type ExtractionRequest struct {
	Feature         string
	Document        []byte
	MediaType       string
	Width           int // declared page width in pixels, 0 if unknown
	Height          int // declared page height in pixels, 0 if unknown
	OverrideModelID string

	// Store controls cache participation: false bypasses both the
	// lookup and the write-back.
	Store bool
}

// Deal is one extracted product offer. Prices are kept as normalized
// decimal strings ("1.99"), never floats.
type Deal struct {
	ProductName   string      `json:"product_name" validate:"required"`
	Price         *string     `json:"price"`
	Discount      *string     `json:"discount"`
	Unit          *string     `json:"unit"`
	OriginalPrice *string     `json:"original_price"`
	BBox          *[4]float64 `json:"bbox"`
}

// ExtractionResponse is the dispatch result consumed by the CLI and HTTP
// layers.
type ExtractionResponse struct {
	Deals      []Deal `json:"deals"`
	ModelUsed  string `json:"model_used"`
	LatencyMs  int64  `json:"latency_ms"`
	Cached     bool   `json:"cached"`
	ParseOK    bool   `json:"parse_ok"`
	TokensUsed int    `json:"tokens_used"`
	Raw        string `json:"-"`
}

// StrPtr returns a pointer to s. Convenience for literal Deal values.
func StrPtr(s string) *string { return &s }
