// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citation-engine/internal/anthropic"
	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over local documents and format the cited answer",
	Long: `Ask sends a question together with one or more documents to the Messages
API with citations enabled and prints the answer with numbered markers
and a references section.

Each --doc file becomes one document titled after its file name, and
form feed characters split a file into pages so answers can cite page
numbers. The answer is streamed unless --no-stream is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	docs, _ := cmd.Flags().GetStringArray("doc")
	system, _ := cmd.Flags().GetString("system")
	noStream, _ := cmd.Flags().GetBool("no-stream")
	live, _ := cmd.Flags().GetBool("live")
	output, _ := cmd.Flags().GetString("output")

	if len(docs) == 0 {
		return fmt.Errorf("at least one --doc is required")
	}
	sources := make([]types.Source, 0, len(docs))
	for _, path := range docs {
		src, err := readSource(path)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	client, err := newClient(cfg.AI)
	if err != nil {
		return err
	}

	req := anthropic.Request{
		System:    system,
		Documents: anthropic.DocumentsFromSources(sources),
		Prompt:    args[0],
		Sampling:  samplingFromFlags(cmd),
	}

	out := cmd.OutOrStdout()
	if noStream {
		resp, err := client.Send(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writeDocument(out, cite.FormatBatch(resp.Blocks), output)
	}

	f := cite.NewStreamFormatter()
	if err := client.Stream(cmd.Context(), req, renderEvents(f, out, live)); err != nil {
		return err
	}
	return finishStream(f, out, output)
}

// readSource loads a text file as a source titled after its base name.
// Form feeds separate pages.
func readSource(path string) (types.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Source{}, fmt.Errorf("reading %s: %w", path, err)
	}
	pages := splitPages(string(data))
	if len(pages) == 0 {
		return types.Source{}, fmt.Errorf("%s has no text", path)
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return types.Source{Title: title, Pages: pages}, nil
}

// splitPages splits text on form feeds, dropping blank pages.
func splitPages(text string) []types.Page {
	var pages []types.Page
	for _, p := range strings.Split(text, "\f") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pages = append(pages, types.Page{Type: "text", Text: p})
	}
	return pages
}

// samplingFromFlags returns the sampling parameters given explicitly on
// the command line; unset flags stay nil and use the API default.
func samplingFromFlags(cmd *cobra.Command) types.SamplingConfig {
	var s types.SamplingConfig
	if cmd.Flags().Changed("temperature") {
		v, _ := cmd.Flags().GetFloat64("temperature")
		s.Temperature = &v
	}
	if cmd.Flags().Changed("top-p") {
		v, _ := cmd.Flags().GetFloat64("top-p")
		s.TopP = &v
	}
	if cmd.Flags().Changed("top-k") {
		v, _ := cmd.Flags().GetInt("top-k")
		s.TopK = &v
	}
	return s
}

func addSamplingFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("temperature", 0.7, "sampling temperature")
	cmd.Flags().Float64("top-p", 0.9, "nucleus sampling threshold")
	cmd.Flags().Int("top-k", 10, "top-k sampling cutoff")
}

func init() {
	askCmd.Flags().StringArray("doc", nil, "document file to cite from (repeatable)")
	askCmd.Flags().String("system", "", "system prompt")
	askCmd.Flags().Bool("no-stream", false, "wait for the complete response instead of streaming")
	askCmd.Flags().Bool("live", false, "print the rendering after every streamed event")
	askCmd.Flags().StringP("output", "o", "text", "final output format: text, json, or yaml")
	addSamplingFlags(askCmd)

	rootCmd.AddCommand(askCmd)
}
