// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/pkg/types"
)

func TestSweepConfigs(t *testing.T) {
	s := Sweep{
		Temperature: Range{Min: 0.5, Max: 0.9},
		TopP:        Range{Min: 0.7, Max: 1.0},
		TopK:        Range{Min: 5, Max: 20},
		Points:      3,
	}

	configs, err := s.Configs()
	require.NoError(t, err)
	require.Len(t, configs, 3)

	want := []struct {
		temp, topP float64
		topK       int
	}{
		{0.5, 0.7, 5},
		{0.7, 0.85, 12},
		{0.9, 1.0, 20},
	}
	for i, w := range want {
		assert.Equal(t, w.temp, *configs[i].Temperature, "config %d temperature", i)
		assert.Equal(t, w.topP, *configs[i].TopP, "config %d top_p", i)
		assert.Equal(t, w.topK, *configs[i].TopK, "config %d top_k", i)
	}
}

func TestSweepConfigsRejectsPointCount(t *testing.T) {
	for _, n := range []int{0, 1, 11} {
		_, err := Sweep{Points: n}.Configs()
		assert.Error(t, err, "points=%d", n)
	}
}

func TestSingle(t *testing.T) {
	configs := Single(0.7, 0.9, 10)
	require.Len(t, configs, 1)
	assert.Equal(t, "temp=0.7, top_p=0.9, top_k=10", describeSampling(configs[0]))
}

func TestDescribeSampling(t *testing.T) {
	one, k := 1.0, 5
	assert.Equal(t, "temp=1.0, top_p=default, top_k=5",
		describeSampling(types.SamplingConfig{Temperature: &one, TopK: &k}))
}

func TestRunNameAndDescription(t *testing.T) {
	assert.Equal(t, "nightly", RunName("nightly", 0, 1))
	assert.Equal(t, "nightly (Config 2)", RunName("nightly", 1, 3))

	desc := RunDescription("baseline", Single(0.5, 0.7, 5)[0])
	assert.Equal(t, "baseline\nParameters: temp=0.5, top_p=0.7, top_k=5", desc)
}

func TestParseParameters(t *testing.T) {
	got := ParseParameters("baseline\nParameters: temp=0.5, top_p=0.7, top_k=5")
	assert.Equal(t, map[string]string{"temp": "0.5", "top_p": "0.7", "top_k": "5"}, got)
	assert.Nil(t, ParseParameters("no parameters here"))
}
