// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evalrun runs a prompt over a set of evaluation questions for one or
// more sampling configurations and stores the citation-formatted responses.
package evalrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/citation-engine/internal/anthropic"
	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Backend sends one request and returns the complete response.
type Backend interface {
	Send(ctx context.Context, req anthropic.Request) (*anthropic.Response, error)
}

// Recorder persists test runs and their results.
type Recorder interface {
	CreateTestRun(ctx context.Context, run types.TestRun) (types.TestRun, error)
	AddRunResult(ctx context.Context, runID string, questionID int64, response string) (types.RunResult, error)
}

// Plan is one evaluation: a prompt and model applied to every question
// under every sampling configuration.
type Plan struct {
	Name        string
	Description string
	Model       string
	Prompt      types.Prompt

	// Questions must have their sources loaded.
	Questions []types.Question
	Configs   []types.SamplingConfig
}

// Summary holds counts from an evaluation.
type Summary struct {
	Runs   []types.TestRun
	Saved  int
	Failed int
}

// Runner executes plans.
type Runner struct {
	backend     Backend
	store       Recorder
	concurrency int
	limiter     *rate.Limiter

	mu  sync.Mutex
	out io.Writer
}

// NewRunner builds a runner. Progress lines go to w. Concurrency below one
// means one question at a time; a RequestsPerMinute of zero disables rate
// limiting.
func NewRunner(backend Backend, store Recorder, cfg types.EvalConfig, w io.Writer) *Runner {
	if w == nil {
		w = io.Discard
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &Runner{
		backend:     backend,
		store:       store,
		concurrency: concurrency,
		limiter:     limiter,
		out:         w,
	}
}

// RunName returns the stored name for configuration i of n.
func RunName(name string, i, n int) string {
	if n == 1 {
		return name
	}
	return fmt.Sprintf("%s (Config %d)", name, i+1)
}

// RunDescription appends the parameter line to a run description.
func RunDescription(description string, c types.SamplingConfig) string {
	return description + "\nParameters: " + describeSampling(c)
}

// Run creates one test run per configuration and stores a result for every
// question. A question whose request fails is stored as "Error: ..." and
// the run continues; store failures and cancellation abort the run.
func (r *Runner) Run(ctx context.Context, plan Plan) (Summary, error) {
	if len(plan.Questions) == 0 {
		return Summary{}, errors.New("running evaluation: no questions")
	}
	configs := plan.Configs
	if len(configs) == 0 {
		configs = []types.SamplingConfig{{}}
	}

	var summary Summary
	for i, cfg := range configs {
		run, err := r.store.CreateTestRun(ctx, types.TestRun{
			PromptID:    plan.Prompt.ID,
			Name:        RunName(plan.Name, i, len(configs)),
			Description: RunDescription(plan.Description, cfg),
			Model:       plan.Model,
			Sampling:    cfg,
		})
		if err != nil {
			return summary, fmt.Errorf("creating test run: %w", err)
		}
		summary.Runs = append(summary.Runs, run)
		r.logf("run %s %q (%s)\n", run.ID, run.Name, describeSampling(cfg))

		responses, failed, err := r.answerAll(ctx, plan, cfg, i, len(configs))
		if err != nil {
			return summary, err
		}
		summary.Failed += failed

		for j, q := range plan.Questions {
			if _, err := r.store.AddRunResult(ctx, run.ID, q.ID, responses[j]); err != nil {
				return summary, fmt.Errorf("saving result for question %d: %w", q.ID, err)
			}
			summary.Saved++
		}
	}

	r.logf("\nruns: %d, saved: %d, failed: %d\n", len(summary.Runs), summary.Saved, summary.Failed)
	return summary, nil
}

// answerAll answers every question under one configuration. Responses are
// returned in question order.
func (r *Runner) answerAll(ctx context.Context, plan Plan, cfg types.SamplingConfig, ci, cn int) ([]string, int, error) {
	responses := make([]string, len(plan.Questions))
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for j, q := range plan.Questions {
		j, q := j, q
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return err
			}
			r.logf("running config %d/%d question %d/%d: %s\n", ci+1, cn, j+1, len(plan.Questions), preview(q.Content))

			text, err := r.answer(gctx, plan, q, cfg)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.mu.Lock()
				failed++
				r.mu.Unlock()
				r.logf("failed   question %d: %v\n", q.ID, err)
				responses[j] = "Error: " + err.Error()
				return nil
			}
			r.logf("answered question %d (%d chars)\n", q.ID, len(text))
			responses[j] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, failed, err
	}
	return responses, failed, nil
}

func (r *Runner) answer(ctx context.Context, plan Plan, q types.Question, cfg types.SamplingConfig) (string, error) {
	resp, err := r.backend.Send(ctx, BuildRequest(plan.Model, plan.Prompt, q, cfg))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cite.FormatBatch(resp.Blocks).String()), nil
}

func (r *Runner) logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// preview shortens a question for progress output.
func preview(s string) string {
	const max = 100
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
