// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citation-engine/internal/evalrun"
	"github.com/pdiddy/citation-engine/internal/evalstore"
	"github.com/pdiddy/citation-engine/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Start, inspect, compare, and export test runs",
	Long: `Runs manages test runs. A test run answers a set of stored questions with
one prompt and one sampling configuration and keeps every formatted
response. A parameter sweep creates one test run per configuration.

Run IDs may be abbreviated to any unique prefix.`,
}

// --- start subcommand ---

var runsStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Answer questions with a prompt and record the responses",
	Long: `Start renders the prompt for every selected question (all questions by
default), sends it with the question's sources as citable documents, and
stores the citation-formatted answers in a new test run.

Use --temperature, --top-p, and --top-k for a single configuration, or
--sweep with --points to spread evenly spaced configurations over the
--*-range bounds. A failed request is stored as "Error: ..." and the run
continues.`,
	Args: cobra.NoArgs,
	RunE: runRunsStart,
}

func runRunsStart(cmd *cobra.Command, args []string) error {
	promptID, _ := cmd.Flags().GetInt64("prompt")
	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	questionIDs, _ := cmd.Flags().GetInt64Slice("question")

	configs, err := configsFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	client, err := newClient(cfg.Eval.AIConfig)
	if err != nil {
		return err
	}

	store, err := evalstore.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	prompt, err := store.Prompt(ctx, promptID)
	if err != nil {
		return err
	}
	questions, err := selectQuestions(cmd, store, questionIDs)
	if err != nil {
		return err
	}

	runner := evalrun.NewRunner(client, store, cfg.Eval, cmd.OutOrStdout())
	summary, err := runner.Run(ctx, evalrun.Plan{
		Name:        name,
		Description: description,
		Model:       types.ResolveModel(cfg.Eval.Model),
		Prompt:      prompt,
		Questions:   questions,
		Configs:     configs,
	})
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%d question(s) failed; their results hold the error text\n", summary.Failed)
	}
	return nil
}

// configsFromFlags returns the sweep configurations when --sweep is set,
// otherwise the single configuration from the sampling flags.
func configsFromFlags(cmd *cobra.Command) ([]types.SamplingConfig, error) {
	sweep, _ := cmd.Flags().GetBool("sweep")
	if !sweep {
		temp, _ := cmd.Flags().GetFloat64("temperature")
		topP, _ := cmd.Flags().GetFloat64("top-p")
		topK, _ := cmd.Flags().GetInt("top-k")
		return evalrun.Single(temp, topP, topK), nil
	}

	points, _ := cmd.Flags().GetInt("points")
	s := evalrun.Sweep{Points: points}
	for _, r := range []struct {
		flag string
		dst  *evalrun.Range
	}{
		{"temperature-range", &s.Temperature},
		{"top-p-range", &s.TopP},
		{"top-k-range", &s.TopK},
	} {
		v, _ := cmd.Flags().GetFloat64Slice(r.flag)
		if len(v) != 2 {
			return nil, fmt.Errorf("--%s takes two values: min,max", r.flag)
		}
		*r.dst = evalrun.Range{Min: v[0], Max: v[1]}
	}
	return s.Configs()
}

// selectQuestions loads the given questions, or every question when ids is
// empty, with their sources.
func selectQuestions(cmd *cobra.Command, store *evalstore.Store, ids []int64) ([]types.Question, error) {
	ctx := cmd.Context()
	if len(ids) == 0 {
		all, err := store.Questions(ctx)
		if err != nil {
			return nil, err
		}
		for _, q := range all {
			ids = append(ids, q.ID)
		}
	}
	questions := make([]types.Question, 0, len(ids))
	for _, id := range ids {
		q, err := store.Question(ctx, id)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List test runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.TestRuns(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No test runs stored.")
		return nil
	}

	fmt.Fprintf(out, "%-8s  %-36s  %-28s  %s\n", "ID", "Name", "Model", "Created")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(out, "%-8s  %-36s  %-28s  %s\n",
			shortID(r.ID), truncate(r.Name, 36), truncate(r.Model, 28), r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(out, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a test run with its prompt, parameters, and responses",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.Detail(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, d)
	}
	printRunHeader(out, d)
	for i, r := range d.Results {
		fmt.Fprintf(out, "\n=== Result %d: %s\n\n%s\n", i+1, questionText(d, r.QuestionID), r.Response)
	}
	return nil
}

func printRunHeader(w io.Writer, d evalstore.RunDetail) {
	fmt.Fprintf(w, "Run:     %s\n", d.Run.ID)
	fmt.Fprintf(w, "Name:    %s\n", d.Run.Name)
	fmt.Fprintf(w, "Model:   %s\n", d.Run.Model)
	fmt.Fprintf(w, "Created: %s\n", d.Run.CreatedAt.Format("2006-01-02 15:04:05"))
	if d.Prompt != nil {
		fmt.Fprintf(w, "Prompt:  %s v%d\n", d.Prompt.Name, d.Prompt.Version)
	} else {
		fmt.Fprintf(w, "Prompt:  (deleted)\n")
	}

	if params := evalrun.ParseParameters(d.Run.Description); len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + params[k]
		}
		fmt.Fprintf(w, "Params:  %s\n", strings.Join(parts, "  "))
	}
	if desc, _, _ := strings.Cut(d.Run.Description, "\nParameters:"); strings.TrimSpace(desc) != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(desc))
	}
}

func questionText(d evalstore.RunDetail, id int64) string {
	q, ok := d.Questions[id]
	if !ok {
		return fmt.Sprintf("(question %d deleted)", id)
	}
	return q.Content
}

// --- delete subcommand ---

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a test run and its results",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	run, err := store.TestRun(ctx, args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteTestRun(ctx, run.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s (%s)\n", run.ID, run.Name)
	return nil
}

// --- export subcommand ---

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a test run's results as CSV",
	Long: `Export writes one CSV row per result with the run, prompt, question, and
response. Output goes to stdout unless --file is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsExport,
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if path == "" {
		return store.ExportRunCSV(cmd.Context(), args[0], cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := store.ExportRunCSV(cmd.Context(), args[0], f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Exported to %s\n", path)
	return nil
}

// --- compare subcommand ---

var runsCompareCmd = &cobra.Command{
	Use:   "compare <run-a> <run-b>",
	Short: "Show two runs' responses question by question",
	Args:  cobra.ExactArgs(2),
	RunE:  runRunsCompare,
}

func runRunsCompare(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	a, b, rows, err := store.Compare(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "A: %s  %s  (%s)\n", shortID(a.Run.ID), a.Run.Name, a.Run.Model)
	fmt.Fprintf(out, "B: %s  %s  (%s)\n", shortID(b.Run.ID), b.Run.Name, b.Run.Model)
	for _, row := range rows {
		fmt.Fprintf(out, "\n=== %s\n", row.Question.Content)
		fmt.Fprintf(out, "\n--- A\n%s\n", responseText(row.A))
		fmt.Fprintf(out, "\n--- B\n%s\n", responseText(row.B))
	}
	return nil
}

func responseText(r *types.RunResult) string {
	if r == nil {
		return "(no result)"
	}
	return r.Response
}

func addSweepFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("sweep", false, "sweep sampling parameters instead of a single configuration")
	f.Int("points", 3, fmt.Sprintf("number of sweep configurations (%d-%d)", evalrun.MinSweepPoints, evalrun.MaxSweepPoints))
	f.Float64Slice("temperature-range", []float64{0.5, 0.9}, "sweep temperature min,max")
	f.Float64Slice("top-p-range", []float64{0.7, 1.0}, "sweep top_p min,max")
	f.Float64Slice("top-k-range", []float64{5, 20}, "sweep top_k min,max")
}

// shortID abbreviates a run ID for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	f := runsStartCmd.Flags()
	f.Int64("prompt", 0, "prompt ID (required)")
	f.String("name", "", "test run name (required)")
	f.String("description", "", "test run description")
	f.Int64Slice("question", nil, "question ID to include (repeatable, default all)")
	addSamplingFlags(runsStartCmd)
	addSweepFlags(runsStartCmd)
	f.Int("concurrency", 1, "questions answered in parallel")
	f.Int("rpm", 0, "maximum requests per minute (0 for unlimited)")
	_ = runsStartCmd.MarkFlagRequired("prompt")
	_ = runsStartCmd.MarkFlagRequired("name")
	_ = viper.BindPFlag("eval.concurrency", f.Lookup("concurrency"))
	_ = viper.BindPFlag("eval.requests_per_minute", f.Lookup("rpm"))

	runsListCmd.Flags().Bool("json", false, "output as JSON")
	runsShowCmd.Flags().Bool("json", false, "output as JSON")
	runsExportCmd.Flags().StringP("file", "f", "", "write CSV to this file instead of stdout")

	runsCmd.AddCommand(runsStartCmd, runsListCmd, runsShowCmd, runsDeleteCmd, runsExportCmd, runsCompareCmd)
	rootCmd.AddCommand(runsCmd)
}
