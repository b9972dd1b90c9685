package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"financial_extractor/pkg/core/prompt"
)

var promptsCategory string

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect the prompt library, including directory overrides",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt IDs, optionally restricted to one category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadPrompts()
		if err != nil {
			return err
		}
		return runPromptsList(cmd.OutOrStdout(), reg, promptsCategory)
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the system prompt of one template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadPrompts()
		if err != nil {
			return err
		}
		return runPromptsShow(cmd.OutOrStdout(), reg, args[0])
	},
}

func runPromptsList(w io.Writer, reg *prompt.Registry, category string) error {
	var templates []*prompt.PromptTemplate
	if category != "" {
		templates = reg.ListByCategory(category)
		if len(templates) == 0 {
			return eris.Errorf("no prompts in category %q", category)
		}
	} else {
		for _, id := range reg.ListPrompts() {
			pt, err := reg.GetPrompt(id)
			if err != nil {
				return err
			}
			templates = append(templates, pt)
		}
	}

	for _, pt := range templates {
		if _, err := fmt.Fprintf(w, "%s\t%s\tv%s\t%s\n", pt.ID, pt.Category, pt.Version, pt.Name); err != nil {
			return err
		}
	}
	return nil
}

func runPromptsShow(w io.Writer, reg *prompt.Registry, id string) error {
	system, err := reg.GetSystemPrompt(id)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, strings.TrimRight(system, "\n")+"\n")
	return err
}

func init() {
	promptsListCmd.Flags().StringVar(&promptsCategory, "category", "", "only list prompts of this category (extraction or chat)")
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd)
	rootCmd.AddCommand(promptsCmd)
}
