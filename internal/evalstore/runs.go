// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// CreateTestRun stores a new test run with a fresh UUID and returns it.
func (s *Store) CreateTestRun(ctx context.Context, run types.TestRun) (types.TestRun, error) {
	if strings.TrimSpace(run.Name) == "" {
		return types.TestRun{}, errors.New("creating test run: name is required")
	}

	run.ID = uuid.NewString()
	created, ts := s.timestamp()
	run.CreatedAt = created

	var promptID sql.NullInt64
	if run.PromptID > 0 {
		promptID = sql.NullInt64{Int64: run.PromptID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO test_runs (id, prompt_id, name, description, model, temperature, top_p, top_k, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, promptID, run.Name, run.Description, run.Model,
		nullFloat(run.Sampling.Temperature), nullFloat(run.Sampling.TopP), nullInt(run.Sampling.TopK),
		ts,
	)
	if err != nil {
		return types.TestRun{}, fmt.Errorf("inserting test run: %w", err)
	}
	return run, nil
}

const runColumns = `id, prompt_id, name, description, model, temperature, top_p, top_k, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (types.TestRun, error) {
	var (
		run         types.TestRun
		promptID    sql.NullInt64
		description sql.NullString
		temperature sql.NullFloat64
		topP        sql.NullFloat64
		topK        sql.NullInt64
		ts          string
	)
	if err := row.Scan(&run.ID, &promptID, &run.Name, &description, &run.Model,
		&temperature, &topP, &topK, &ts); err != nil {
		return types.TestRun{}, err
	}
	run.PromptID = promptID.Int64
	run.Description = description.String
	if temperature.Valid {
		run.Sampling.Temperature = &temperature.Float64
	}
	if topP.Valid {
		run.Sampling.TopP = &topP.Float64
	}
	if topK.Valid {
		k := int(topK.Int64)
		run.Sampling.TopK = &k
	}
	run.CreatedAt = parseTime(ts)
	return run, nil
}

// TestRuns returns all test runs, newest first.
func (s *Store) TestRuns(ctx context.Context) ([]types.TestRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM test_runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying test runs: %w", err)
	}
	defer rows.Close()

	var out []types.TestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning test run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// TestRun returns one test run. A unique ID prefix is accepted in place of
// the full UUID.
func (s *Store) TestRun(ctx context.Context, id string) (types.TestRun, error) {
	if id == "" {
		return types.TestRun{}, fmt.Errorf("test run %q: %w", id, ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM test_runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return types.TestRun{}, fmt.Errorf("querying test run %s: %w", id, err)
	}
	defer rows.Close()

	var matches []types.TestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return types.TestRun{}, fmt.Errorf("scanning test run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return types.TestRun{}, fmt.Errorf("querying test run %s: %w", id, err)
	}

	switch {
	case len(matches) == 0:
		return types.TestRun{}, fmt.Errorf("test run %s: %w", id, ErrNotFound)
	case matches[0].ID == id || len(matches) == 1:
		return matches[0], nil
	default:
		return types.TestRun{}, fmt.Errorf("test run prefix %s is ambiguous", id)
	}
}

// DeleteTestRun removes a test run and its results.
func (s *Store) DeleteTestRun(ctx context.Context, id string) error {
	run, err := s.TestRun(ctx, id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM test_runs WHERE id = ?`, run.ID)
	if err != nil {
		return fmt.Errorf("deleting test run %s: %w", run.ID, err)
	}
	return requireAffected(res, "test run "+run.ID)
}

// AddRunResult stores the formatted response to one question of a run.
func (s *Store) AddRunResult(ctx context.Context, runID string, questionID int64, response string) (types.RunResult, error) {
	created, ts := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO run_results (run_id, question_id, response, created_at) VALUES (?, ?, ?, ?)`,
		runID, questionID, response, ts,
	)
	if err != nil {
		return types.RunResult{}, fmt.Errorf("inserting result for question %d: %w", questionID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.RunResult{}, fmt.Errorf("reading result id: %w", err)
	}
	return types.RunResult{
		ID:         id,
		RunID:      runID,
		QuestionID: questionID,
		Response:   response,
		CreatedAt:  created,
	}, nil
}

// RunResults returns a run's results in insertion order.
func (s *Store) RunResults(ctx context.Context, runID string) ([]types.RunResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, question_id, response, created_at FROM run_results WHERE run_id = ? ORDER BY id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("querying results of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []types.RunResult
	for rows.Next() {
		var (
			r  types.RunResult
			ts string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.QuestionID, &r.Response, &ts); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.CreatedAt = parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunDetail bundles a test run with everything needed to display it.
type RunDetail struct {
	Run types.TestRun

	// Prompt is nil when the prompt has been deleted since the run.
	Prompt *types.Prompt

	Results []types.RunResult

	// Questions maps question ID to question for every result whose
	// question still exists.
	Questions map[int64]types.Question
}

// Detail loads a run, its prompt, its results and the questions they answer.
func (s *Store) Detail(ctx context.Context, runID string) (RunDetail, error) {
	run, err := s.TestRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	d := RunDetail{Run: run, Questions: make(map[int64]types.Question)}

	if run.PromptID > 0 {
		p, err := s.Prompt(ctx, run.PromptID)
		switch {
		case err == nil:
			d.Prompt = &p
		case !errors.Is(err, ErrNotFound):
			return RunDetail{}, err
		}
	}

	if d.Results, err = s.RunResults(ctx, run.ID); err != nil {
		return RunDetail{}, err
	}
	for _, r := range d.Results {
		if _, ok := d.Questions[r.QuestionID]; ok {
			continue
		}
		q, err := s.Question(ctx, r.QuestionID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return RunDetail{}, err
		}
		d.Questions[r.QuestionID] = q
	}
	return d, nil
}

// ComparedQuestion pairs the responses two runs gave to one question. A
// nil side means that run has no result for the question.
type ComparedQuestion struct {
	Question types.Question
	A, B     *types.RunResult
}

// Compare lines up the results of two runs by question, in the order the
// questions appear in run a followed by questions only run b answered.
// Results for deleted questions are left out.
func (s *Store) Compare(ctx context.Context, a, b string) (RunDetail, RunDetail, []ComparedQuestion, error) {
	da, err := s.Detail(ctx, a)
	if err != nil {
		return RunDetail{}, RunDetail{}, nil, err
	}
	db, err := s.Detail(ctx, b)
	if err != nil {
		return RunDetail{}, RunDetail{}, nil, err
	}

	index := make(map[int64]int)
	var out []ComparedQuestion
	add := func(d RunDetail, setA bool) {
		for i := range d.Results {
			r := &d.Results[i]
			q, ok := d.Questions[r.QuestionID]
			if !ok {
				continue
			}
			pos, seen := index[r.QuestionID]
			if !seen {
				pos = len(out)
				index[r.QuestionID] = pos
				out = append(out, ComparedQuestion{Question: q})
			}
			if setA && out[pos].A == nil {
				out[pos].A = r
			} else if !setA && out[pos].B == nil {
				out[pos].B = r
			}
		}
	}
	add(da, true)
	add(db, false)
	return da, db, out, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// escapeLike escapes LIKE wildcards. UUIDs never contain them, but prefixes
// typed by a user might.
func escapeLike(s string) string {
	return strings.NewReplacer(`%`, `\%`, `_`, `\_`).Replace(s)
}
