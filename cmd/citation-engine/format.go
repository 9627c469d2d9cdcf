// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/internal/anthropic"
	"github.com/pdiddy/citation-engine/internal/cite"
)

var formatCmd = &cobra.Command{
	Use:   "format [response.json]",
	Short: "Format a saved Messages API response with its citations",
	Long: `Format reads a complete Messages API response (a JSON message object)
from a file, or from stdin when the argument is "-" or omitted, and prints
the text with numbered citation markers followed by a references section.

Use --output json or --output yaml to print the body and the reference
entries as structured data.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFormat,
}

func runFormat(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	r, closeFn, err := openInput(args)
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := anthropic.DecodeMessage(r)
	if err != nil {
		return err
	}
	return writeDocument(cmd.OutOrStdout(), cite.FormatBatch(resp.Blocks), output)
}

// openInput opens the file named by args[0], or stdin when there is no
// argument or it is "-".
func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", args[0], err)
	}
	return f, func() { f.Close() }, nil
}

// writeDocument prints a formatted document as text, JSON, or YAML.
func writeDocument(w io.Writer, doc cite.FormattedDocument, output string) error {
	switch output {
	case "text", "":
		_, err := fmt.Fprintln(w, doc.String())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output %q: use text, json, or yaml", output)
	}
}

func init() {
	formatCmd.Flags().StringP("output", "o", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(formatCmd)
}
