// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage versioned prompt templates",
	Long: `Prompts manages the prompt templates used by test runs. Adding a prompt
under an existing name creates its next version. Templates may reference
{question} and {sources}.`,
}

var promptsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a prompt or a new version of one",
	Args:  cobra.NoArgs,
	RunE:  runPromptsAdd,
}

func runPromptsAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	content, _ := cmd.Flags().GetString("content")
	file, _ := cmd.Flags().GetString("file")

	if file != "" {
		if content != "" {
			return fmt.Errorf("use either --content or --file, not both")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		content = string(data)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.AddPrompt(cmd.Context(), name, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added prompt %d: %s v%d\n", p.ID, p.Name, p.Version)
	return nil
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every prompt version",
	Args:  cobra.NoArgs,
	RunE:  runPromptsList,
}

func runPromptsList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	prompts, err := store.Prompts(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, prompts)
	}
	if len(prompts) == 0 {
		fmt.Fprintln(out, "No prompts stored.")
		return nil
	}

	fmt.Fprintf(out, "%-6s  %-30s  %-7s  %s\n", "ID", "Name", "Version", "Content")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, p := range prompts {
		fmt.Fprintf(out, "%-6d  %-30s  %-7d  %s\n", p.ID, truncate(p.Name, 30), p.Version, truncate(p.Content, 40))
	}
	return nil
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a prompt template",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsShow,
}

func runPromptsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.Prompt(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Prompt %d: %s v%d\n", p.ID, p.Name, p.Version)
	fmt.Fprintf(out, "Created: %s\n\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out, p.Content)
	return nil
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one prompt version",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsDelete,
}

func runPromptsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeletePrompt(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted prompt %d\n", id)
	return nil
}

func init() {
	promptsAddCmd.Flags().String("name", "", "prompt name (required)")
	promptsAddCmd.Flags().String("content", "", "template text")
	promptsAddCmd.Flags().String("file", "", "read the template from a file")
	_ = promptsAddCmd.MarkFlagRequired("name")

	promptsListCmd.Flags().Bool("json", false, "output as JSON")

	promptsCmd.AddCommand(promptsAddCmd, promptsListCmd, promptsShowCmd, promptsDeleteCmd)
	rootCmd.AddCommand(promptsCmd)
}
