// internal/cli/plan.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	planInstructions string
	planOutput       string
)

var planCmd = &cobra.Command{
	Use:   "plan <url>",
	Short: "Generate an extraction plan without running it",
	Long: `Plan fetches the page, asks the planner to design its extraction, and prints
the plan as JSON. Edit the plan by hand if needed and run it with 'scrape exec'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a.Planner == nil {
			return fmt.Errorf("planning requires an API key: set GEMINI_API_KEY or run 'scrape keys set'")
		}

		plan, err := a.Scraper.Plan(cmd.Context(), args[0], planInstructions)
		if err != nil {
			return fmt.Errorf("planning failed: %w", err)
		}
		return writeJSON(planOutput, plan)
	},
}

func init() {
	planCmd.Flags().StringVarP(&planInstructions, "instructions", "i", "", "What to extract, in plain words")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "Write the plan to a file instead of stdout")
	rootCmd.AddCommand(planCmd)
}
