// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/pkg/types"
)

const policyMessage = `{
  "id": "msg_01",
  "type": "message",
  "content": [{
    "type": "text",
    "text": "Remote work is allowed.",
    "citations": [{
      "type": "char_location",
      "cited_text": "Employees may work remotely",
      "document_index": 0,
      "document_title": "Policy",
      "start_char_index": 0,
      "end_char_index": 22
    }]
  }]
}`

const policyEvents = "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
	"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n" +
	"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Remote work is allowed.\"}}\n\n" +
	"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"citations_delta\",\"citation\":{\"type\":\"char_location\",\"cited_text\":\"Employees may work remotely\",\"document_index\":0,\"document_title\":\"Policy\",\"start_char_index\":0,\"end_char_index\":22}}}\n\n" +
	"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n" +
	"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

const policyOutput = "Remote work is allowed [1].\n\n**References**\n\n[1] Policy: \"Employees may work remotely\"\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunFormat(t *testing.T) {
	path := writeFile(t, "response.json", policyMessage)

	var out bytes.Buffer
	formatCmd.SetOut(&out)
	t.Cleanup(func() { formatCmd.SetOut(nil) })

	require.NoError(t, runFormat(formatCmd, []string{path}))
	assert.Equal(t, policyOutput, out.String())
}

func TestRunFormatMissingFile(t *testing.T) {
	err := runFormat(formatCmd, []string{filepath.Join(t.TempDir(), "missing.json")})
	assert.ErrorContains(t, err, "opening")
}

func TestRunReplay(t *testing.T) {
	path := writeFile(t, "events.sse", policyEvents)

	var out bytes.Buffer
	replayCmd.SetOut(&out)
	t.Cleanup(func() { replayCmd.SetOut(nil) })

	require.NoError(t, runReplay(replayCmd, []string{path}))
	assert.Equal(t, policyOutput, out.String())
}

func TestRenderEventsLive(t *testing.T) {
	f := cite.NewStreamFormatter()
	var out bytes.Buffer
	fn := renderEvents(f, &out, true)

	text := "Done."
	for _, ev := range []types.StreamEvent{
		{Type: types.EventMessageStart},
		{Type: types.EventContentBlockDelta, Delta: &types.Delta{Type: types.DeltaText, Text: text}},
		{Type: "ping"},
		{Type: types.EventMessageStop},
		{Type: "ping"},
	} {
		require.NoError(t, fn(ev))
	}

	got := out.String()
	assert.Equal(t, 1, strings.Count(got, "--- event"), "only changed renderings are printed")
	assert.Contains(t, got, "--- event 2: content_block_delta (in_block) ---\nDone.\n")
	assert.Equal(t, cite.StateDone, f.State())
}

func TestFinishStreamError(t *testing.T) {
	f := cite.NewStreamFormatter()
	require.NoError(t, f.Apply(types.StreamEvent{Type: types.EventContentBlockDelta,
		Delta: &types.Delta{Type: types.DeltaText, Text: "Partial"}}))
	require.NoError(t, f.Apply(types.StreamEvent{Type: types.EventError,
		Err: &types.StreamError{Type: "overloaded_error", Message: "Overloaded"}}))

	var out bytes.Buffer
	err := finishStream(f, &out, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded_error")
	assert.Equal(t, "Partial\n", out.String())
}

func TestFinishStreamWithoutStopOmitsReferences(t *testing.T) {
	f := cite.NewStreamFormatter()
	require.NoError(t, f.Apply(types.StreamEvent{Type: types.EventContentBlockDelta,
		Delta: &types.Delta{Type: types.DeltaText, Text: "Remote work is allowed."}}))
	c := types.Citation{
		Kind:          types.LocationCharOffset,
		DocumentTitle: "Policy",
		CitedText:     "Employees may work remotely",
		Span:          &types.Span{Start: 0, End: 22},
	}
	require.NoError(t, f.Apply(types.StreamEvent{Type: types.EventContentBlockDelta,
		Delta: &types.Delta{Type: types.DeltaCitations, Citation: &c}}))

	var out bytes.Buffer
	require.NoError(t, finishStream(f, &out, "text"))
	assert.Equal(t, "Remote work is allowed [1].\n", out.String())

	out.Reset()
	require.NoError(t, finishStream(f, &out, "json"))
	assert.NotContains(t, out.String(), "references")

	require.NoError(t, f.Apply(types.StreamEvent{Type: types.EventError}))
	out.Reset()
	require.Error(t, finishStream(f, &out, "text"))
	assert.NotContains(t, out.String(), "References")
}

func TestWriteDocument(t *testing.T) {
	doc := cite.FormattedDocument{
		Body:       "Body [1].",
		References: []types.ReferenceEntry{{Number: 1, Title: "Policy", Text: "quote", Page: 2}},
	}

	tests := []struct {
		output string
		want   []string
	}{
		{"text", []string{"Body [1].", `[1] Policy: "quote" (Page 2)`}},
		{"json", []string{`"body": "Body [1]."`, `"page": 2`}},
		{"yaml", []string{"body:", "title: Policy", "page: 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, writeDocument(&out, doc, tt.output))
			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
		})
	}

	assert.ErrorContains(t, writeDocument(&bytes.Buffer{}, doc, "xml"), "unsupported output")
}

func TestSplitPages(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single page", "Only page.\n", []string{"Only page."}},
		{"form feeds", "One\fTwo\f\fThree", []string{"One", "Two", "Three"}},
		{"blank", " \n\f\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range splitPages(tt.text) {
				assert.Equal(t, "text", p.Type)
				got = append(got, p.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadSource(t *testing.T) {
	path := writeFile(t, "Remote Work Policy.txt", "Page one.\fPage two.")

	src, err := readSource(path)
	require.NoError(t, err)
	assert.Equal(t, "Remote Work Policy", src.Title)
	assert.Len(t, src.Pages, 2)

	_, err = readSource(writeFile(t, "empty.txt", "\n"))
	assert.ErrorContains(t, err, "has no text")
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\nb\tc", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}

func newSweepCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "start"}
	addSamplingFlags(cmd)
	addSweepFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestConfigsFromFlags(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		configs, err := configsFromFlags(newSweepCommand(t, "--temperature", "0.3"))
		require.NoError(t, err)
		require.Len(t, configs, 1)
		assert.Equal(t, 0.3, *configs[0].Temperature)
		assert.Equal(t, 0.9, *configs[0].TopP)
		assert.Equal(t, 10, *configs[0].TopK)
	})

	t.Run("sweep", func(t *testing.T) {
		configs, err := configsFromFlags(newSweepCommand(t, "--sweep", "--points", "3"))
		require.NoError(t, err)
		require.Len(t, configs, 3)
		assert.Equal(t, 0.7, *configs[1].Temperature)
		assert.Equal(t, 0.85, *configs[1].TopP)
		assert.Equal(t, 12, *configs[1].TopK)
	})

	t.Run("bad range", func(t *testing.T) {
		_, err := configsFromFlags(newSweepCommand(t, "--sweep", "--top-k-range", "5"))
		assert.ErrorContains(t, err, "--top-k-range takes two values")
	})

	t.Run("too many points", func(t *testing.T) {
		_, err := configsFromFlags(newSweepCommand(t, "--sweep", "--points", "11"))
		assert.ErrorContains(t, err, "between 2 and 10")
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	v := viper.New()
	setDefaults(v)
	v.Set("ai.model", "Claude 3.5 Haiku")
	v.Set("eval.max_tokens", 1024)
	v.Set("eval.concurrency", 4)

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.AI.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.AI.Timeout)
	assert.Equal(t, types.DefaultMaxTokens, cfg.AI.MaxTokens)

	assert.Equal(t, "Claude 3.5 Haiku", cfg.Eval.Model, "eval inherits the AI model")
	assert.Equal(t, "env-key", cfg.Eval.APIKey)
	assert.Equal(t, 1024, cfg.Eval.MaxTokens, "eval overrides win")
	assert.Equal(t, 4, cfg.Eval.Concurrency)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := newClient(types.AIConfig{})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	c, err := newClient(types.AIConfig{APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", c.Model)
}
