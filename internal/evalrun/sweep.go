// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalrun

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// Sweep bounds for the number of configurations in a parameter sweep.
const (
	MinSweepPoints = 2
	MaxSweepPoints = 10
)

// Range is a closed interval of a sampling parameter.
type Range struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// Sweep describes evenly spaced sampling configurations. Point i of N takes
// Min + (Max-Min)*i/(N-1) for every parameter.
type Sweep struct {
	Temperature Range `yaml:"temperature" mapstructure:"temperature"`
	TopP        Range `yaml:"top_p" mapstructure:"top_p"`
	TopK        Range `yaml:"top_k" mapstructure:"top_k"`
	Points      int   `yaml:"points" mapstructure:"points"`
}

// Single returns the one-configuration plan for fixed parameter values.
func Single(temperature, topP float64, topK int) []types.SamplingConfig {
	return []types.SamplingConfig{{
		Temperature: &temperature,
		TopP:        &topP,
		TopK:        &topK,
	}}
}

// Configs expands the sweep. Temperature and top_p are rounded to two
// decimals; top_k is truncated to an integer.
func (s Sweep) Configs() ([]types.SamplingConfig, error) {
	if s.Points < MinSweepPoints || s.Points > MaxSweepPoints {
		return nil, fmt.Errorf("sweep points must be between %d and %d, got %d",
			MinSweepPoints, MaxSweepPoints, s.Points)
	}

	configs := make([]types.SamplingConfig, s.Points)
	for i := range configs {
		frac := float64(i) / float64(s.Points-1)
		temp := round2(s.Temperature.Min + (s.Temperature.Max-s.Temperature.Min)*frac)
		topP := round2(s.TopP.Min + (s.TopP.Max-s.TopP.Min)*frac)
		topK := int(s.TopK.Min + (s.TopK.Max-s.TopK.Min)*frac)
		configs[i] = types.SamplingConfig{Temperature: &temp, TopP: &topP, TopK: &topK}
	}
	return configs, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// describeSampling renders a configuration the way run descriptions
// record it: "temp=0.7, top_p=0.9, top_k=10".
func describeSampling(c types.SamplingConfig) string {
	return fmt.Sprintf("temp=%s, top_p=%s, top_k=%s",
		formatFloat(c.Temperature), formatFloat(c.TopP), formatInt(c.TopK))
}

// ParseParameters extracts the parameter line from a run description, the
// inverse of describeSampling. It returns nil when there is none.
func ParseParameters(description string) map[string]string {
	for _, line := range strings.Split(description, "\n") {
		_, rest, ok := strings.Cut(line, "Parameters:")
		if !ok {
			continue
		}
		params := make(map[string]string)
		for _, kv := range strings.Split(strings.TrimSpace(rest), ", ") {
			k, v, ok := strings.Cut(kv, "=")
			if ok {
				params[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
		return params
	}
	return nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return "default"
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatInt(v *int) string {
	if v == nil {
		return "default"
	}
	return strconv.Itoa(*v)
}
