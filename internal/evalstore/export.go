// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"Test Run Name",
	"Test Run Description",
	"Model",
	"Prompt Name",
	"Prompt Version",
	"Prompt Content",
	"Question",
	"Response",
	"Created At",
}

// ExportRunCSV writes one CSV row per result of the run. The run's prompt
// must still exist; results whose question was deleted are skipped.
func (s *Store) ExportRunCSV(ctx context.Context, runID string, w io.Writer) error {
	d, err := s.Detail(ctx, runID)
	if err != nil {
		return err
	}
	if d.Prompt == nil {
		return fmt.Errorf("exporting run %s: prompt %d: %w", d.Run.ID, d.Run.PromptID, ErrNotFound)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, r := range d.Results {
		q, ok := d.Questions[r.QuestionID]
		if !ok {
			continue
		}
		row := []string{
			d.Run.Name,
			d.Run.Description,
			d.Run.Model,
			d.Prompt.Name,
			strconv.Itoa(d.Prompt.Version),
			d.Prompt.Content,
			q.Content,
			r.Response,
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
