// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalstore

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/pkg/types"
)

//go:embed seed.yaml
var seedYAML []byte

// QuestionFile is the YAML layout accepted by ImportQuestions.
type QuestionFile struct {
	Questions []types.Question `yaml:"questions"`
}

// ImportSummary holds counts from an import.
type ImportSummary struct {
	Imported int
	Skipped  int
	Failed   int
}

// Total returns the number of questions processed.
func (s ImportSummary) Total() int {
	return s.Imported + s.Skipped + s.Failed
}

// ImportQuestions reads a QuestionFile from r and stores every question
// that is not already present (same name and content). Progress lines and
// a summary are written to w.
func (s *Store) ImportQuestions(ctx context.Context, r io.Reader, w io.Writer) (ImportSummary, error) {
	var file QuestionFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return ImportSummary{}, fmt.Errorf("parsing question file: %w", err)
	}

	existing, err := s.Questions(ctx)
	if err != nil {
		return ImportSummary{}, err
	}
	seen := make(map[[2]string]bool, len(existing))
	for _, q := range existing {
		seen[[2]string{q.Name, q.Content}] = true
	}

	var summary ImportSummary
	for _, q := range file.Questions {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		key := [2]string{q.Name, q.Content}
		if seen[key] {
			fmt.Fprintf(w, "skipped  %s: already present\n", q.Name)
			summary.Skipped++
			continue
		}

		stored, err := s.AddQuestion(ctx, q)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", q.Name, err)
			summary.Failed++
			continue
		}
		seen[key] = true
		fmt.Fprintf(w, "imported %s (id %d, %d sources)\n", stored.Name, stored.ID, len(stored.Sources))
		summary.Imported++
	}

	fmt.Fprintf(w, "\nimported: %d, skipped: %d, failed: %d\n",
		summary.Imported, summary.Skipped, summary.Failed)
	return summary, nil
}

// Seed imports the built-in sample questions when the store has no
// questions yet.
func (s *Store) Seed(ctx context.Context, w io.Writer) (ImportSummary, error) {
	existing, err := s.Questions(ctx)
	if err != nil {
		return ImportSummary{}, err
	}
	if len(existing) > 0 {
		fmt.Fprintf(w, "seed skipped: store already has %d questions\n", len(existing))
		return ImportSummary{}, nil
	}
	return s.ImportQuestions(ctx, bytes.NewReader(seedYAML), w)
}
