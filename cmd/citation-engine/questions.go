// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/pkg/types"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage evaluation questions and their source documents",
	Long: `Questions manages the evaluation questions kept in the local store. Each
question has a name, the question text, and the source documents the
answer should cite.`,
}

// --- add subcommand ---

var questionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a question with source documents",
	Long: `Add stores a new question. Each --source file becomes one source titled
after its file name; form feeds split a file into pages.`,
	Args: cobra.NoArgs,
	RunE: runQuestionsAdd,
}

func runQuestionsAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	content, _ := cmd.Flags().GetString("content")
	paths, _ := cmd.Flags().GetStringArray("source")

	q := types.Question{Name: name, Content: content}
	for _, path := range paths {
		src, err := readSource(path)
		if err != nil {
			return err
		}
		q.Sources = append(q.Sources, src)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stored, err := store.AddQuestion(cmd.Context(), q)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added question %d: %s (%d sources)\n", stored.ID, stored.Name, len(stored.Sources))
	return nil
}

// --- list subcommand ---

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored questions",
	Args:  cobra.NoArgs,
	RunE:  runQuestionsList,
}

func runQuestionsList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	questions, err := store.Questions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, questions)
	}
	if len(questions) == 0 {
		fmt.Fprintln(out, "No questions stored.")
		return nil
	}

	fmt.Fprintf(out, "%-6s  %-30s  %s\n", "ID", "Name", "Question")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, q := range questions {
		fmt.Fprintf(out, "%-6d  %-30s  %s\n", q.ID, truncate(q.Name, 30), truncate(q.Content, 50))
	}
	fmt.Fprintf(out, "\n%d questions\n", len(questions))
	return nil
}

// --- show subcommand ---

var questionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a question and its sources",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuestionsShow,
}

func runQuestionsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := store.Question(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, q)
	}
	printQuestion(out, q)
	return nil
}

func printQuestion(w io.Writer, q types.Question) {
	fmt.Fprintf(w, "Question %d: %s\n", q.ID, q.Name)
	fmt.Fprintf(w, "Created:  %s\n\n", q.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, q.Content)
	for i, s := range q.Sources {
		fmt.Fprintf(w, "\nSource %d: %s (%d pages)\n", i+1, s.Title, len(s.Pages))
		for j, p := range s.Pages {
			fmt.Fprintf(w, "  [page %d] %s\n", j+1, truncate(p.Text, 70))
		}
	}
}

// --- delete subcommand ---

var questionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a question and its sources",
	Long: `Delete removes a question and its sources. Results already recorded for
the question remain in their test runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuestionsDelete,
}

func runQuestionsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteQuestion(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted question %d\n", id)
	return nil
}

// --- import subcommand ---

var questionsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import questions from a YAML file",
	Long: `Import reads a YAML file with a top-level "questions" list, each entry
with name, content, and sources (title and pages). Questions already in
the store with the same name and content are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuestionsImport,
}

func runQuestionsImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.ImportQuestions(cmd.Context(), f, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d question(s) failed to import", summary.Failed)
	}
	return nil
}

// --- seed subcommand ---

var questionsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in sample question into an empty store",
	Args:  cobra.NoArgs,
	RunE:  runQuestionsSeed,
}

func runQuestionsSeed(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Seed(cmd.Context(), cmd.OutOrStdout())
	return err
}

// --- shared helpers ---

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to max runes, marking the cut with "...". Newlines
// are flattened so table rows stay on one line.
func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func init() {
	questionsAddCmd.Flags().String("name", "", "question name (required)")
	questionsAddCmd.Flags().String("content", "", "question text (required)")
	questionsAddCmd.Flags().StringArray("source", nil, "source document file (repeatable)")
	_ = questionsAddCmd.MarkFlagRequired("name")
	_ = questionsAddCmd.MarkFlagRequired("content")

	questionsListCmd.Flags().Bool("json", false, "output as JSON")
	questionsShowCmd.Flags().Bool("json", false, "output as JSON")

	questionsCmd.AddCommand(questionsAddCmd, questionsListCmd, questionsShowCmd,
		questionsDeleteCmd, questionsImportCmd, questionsSeedCmd)
	rootCmd.AddCommand(questionsCmd)
}
