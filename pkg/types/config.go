// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citation-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// Default model identifiers.
const (
	ModelSonnet35 = "claude-3-5-sonnet-20241022"
	ModelHaiku35  = "claude-3-5-haiku-20241022"
	ModelSonnet37 = "claude-3-7-sonnet-20250219"

	DefaultModel     = ModelSonnet35
	DefaultMaxTokens = 8192
)

// modelAliases maps display names to model identifiers.
var modelAliases = map[string]string{
	"Claude 3.5 Sonnet": ModelSonnet35,
	"Claude 3.5 Haiku":  ModelHaiku35,
	"Claude 3.7 Sonnet": ModelSonnet37,
}

// ResolveModel turns a display name or model identifier into a model
// identifier. Empty input resolves to DefaultModel.
func ResolveModel(name string) string {
	if name == "" {
		return DefaultModel
	}
	if id, ok := modelAliases[name]; ok {
		return id
	}
	return name
}

// AIConfig holds settings for calling the Messages API.
type AIConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Model is the AI model identifier (e.g. "claude-3-5-sonnet-20241022").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the Messages API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTokens caps the response length (default 8192).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// MaxRetries is the number of retry attempts on rate limiting (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// SamplingConfig holds the sampling parameters for one request. Nil fields
// are left to the API default.
type SamplingConfig struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty" mapstructure:"top_p"`
	TopK        *int     `json:"top_k,omitempty" yaml:"top_k,omitempty" mapstructure:"top_k"`
}

// StoreConfig holds settings for the evaluation store.
type StoreConfig struct {
	// DataDir is the directory that contains the SQLite database.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
}

// EvalConfig holds settings for evaluation runs.
type EvalConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Concurrency is the number of questions processed in parallel (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// RequestsPerMinute limits API calls across the run. Zero means unlimited.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// Config groups all component configurations.
type Config struct {
	AI    AIConfig    `json:"ai" yaml:"ai" mapstructure:"ai"`
	Store StoreConfig `json:"store" yaml:"store" mapstructure:"store"`
	Eval  EvalConfig  `json:"eval" yaml:"eval" mapstructure:"eval"`
}

// Merge returns c with every non-zero field of override applied on top.
func (c AIConfig) Merge(override AIConfig) AIConfig {
	if override.Timeout > 0 {
		c.Timeout = override.Timeout
	}
	if override.UserAgent != "" {
		c.UserAgent = override.UserAgent
	}
	if override.Model != "" {
		c.Model = override.Model
	}
	if override.APIKey != "" {
		c.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		c.BaseURL = override.BaseURL
	}
	if override.MaxTokens > 0 {
		c.MaxTokens = override.MaxTokens
	}
	if override.MaxRetries > 0 {
		c.MaxRetries = override.MaxRetries
	}
	return c
}
