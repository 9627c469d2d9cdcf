// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/citation-engine/internal/anthropic"
	"github.com/pdiddy/citation-engine/internal/evalstore"
	"github.com/pdiddy/citation-engine/internal/secrets"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// setDefaults registers every configuration key so that environment
// variables such as CITATION_ENGINE_AI_MODEL are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.timeout", 5*time.Minute)
	v.SetDefault("ai.user_agent", "citation-engine/"+version)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", anthropic.DefaultBaseURL)
	v.SetDefault("ai.max_tokens", types.DefaultMaxTokens)
	v.SetDefault("ai.max_retries", 5)

	v.SetDefault("store.data_dir", defaultDataDir())

	v.SetDefault("eval.model", "")
	v.SetDefault("eval.concurrency", 1)
	v.SetDefault("eval.requests_per_minute", 0)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".citation-engine"
	}
	return filepath.Join(home, ".local", "share", "citation-engine")
}

// loadConfig decodes the merged configuration. The API key falls back to
// .secrets/ and then ANTHROPIC_API_KEY; eval settings inherit every AI
// setting they leave unset.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = secrets.Lookup(loadedSecrets, secrets.AnthropicAPIKey)
	}
	cfg.Eval.AIConfig = cfg.AI.Merge(cfg.Eval.AIConfig)
	return cfg, nil
}

// newClient builds a Messages API client. It fails early when no API key
// is configured.
func newClient(cfg types.AIConfig) (*anthropic.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key: set %s, add .secrets/%s, or set ai.api_key in the config file",
			secrets.EnvVar(secrets.AnthropicAPIKey), secrets.AnthropicAPIKey)
	}
	return anthropic.NewClient(cfg), nil
}

func openStore() (*evalstore.Store, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return evalstore.NewStore(cfg.Store)
}
