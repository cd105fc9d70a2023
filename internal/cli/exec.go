// internal/cli/exec.go
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/expo-works/scrape/internal/scraper"
	"github.com/expo-works/scrape/pkg/models"
)

var (
	execInstructions string
	execPreview      bool
	execOutput       string
	execRaw          bool
)

var execCmd = &cobra.Command{
	Use:   "exec <plan.json>",
	Short: "Execute a saved extraction plan",
	Long: `Exec runs a previously saved (and possibly hand-edited) plan. No planner key
is needed unless the crawl has to replan or consolidate output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		ctx := cmd.Context()

		plan, err := readPlanFile(args[0])
		if err != nil {
			return err
		}

		result, err := runWithProgress(cmd, func() (*scraper.Result, error) {
			return a.Scraper.Execute(ctx, plan, scraper.RunOptions{
				Preview:      execPreview,
				Instructions: execInstructions,
			})
		})
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Crawled %d pages, %d items\n", len(result.Pages), result.ItemCount())

		if execRaw || a.Parser == nil {
			return writeJSON(execOutput, result.Pages)
		}

		records, err := a.Parser.Parse(ctx, result.Pages, execInstructions)
		if err != nil {
			return fmt.Errorf("parsing failed: %w", err)
		}
		return writeJSON(execOutput, records)
	},
}

func init() {
	execCmd.Flags().StringVarP(&execInstructions, "instructions", "i", "", "What to extract, in plain words")
	execCmd.Flags().BoolVar(&execPreview, "preview", false, "Crawl one page with a few items to check the plan")
	execCmd.Flags().StringVarP(&execOutput, "output", "o", "", "Write records to a file instead of stdout")
	execCmd.Flags().BoolVar(&execRaw, "raw", false, "Emit raw crawl output without AI consolidation")
	rootCmd.AddCommand(execCmd)
}

func readPlanFile(path string) (*models.ExtractionPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan models.ExtractionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return &plan, nil
}
