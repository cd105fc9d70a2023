// internal/cli/run.go
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/expo-works/scrape/internal/scraper"
	"github.com/expo-works/scrape/pkg/models"
)

var (
	runInstructions string
	runPreview      bool
	runOutput       string
	runSavePlan     string
	runRaw          bool
)

var runCmd = &cobra.Command{
	Use:   "run <url>",
	Short: "Plan and scrape a directory listing in one go",
	Long: `Run asks the planner to design an extraction plan for the URL, executes it,
and prints the structured records as JSON. Use --preview to crawl a single
page with a handful of items before committing to a full run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a.Planner == nil {
			return fmt.Errorf("planning requires an API key: set GEMINI_API_KEY or run 'scrape keys set'")
		}

		url := args[0]
		ctx := cmd.Context()

		plan, err := a.Scraper.Plan(ctx, url, runInstructions)
		if err != nil {
			return fmt.Errorf("planning failed: %w", err)
		}
		if runSavePlan != "" {
			if err := writePlanFile(runSavePlan, plan); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Plan saved to %s\n", runSavePlan)
		}

		result, err := runWithProgress(cmd, func() (*scraper.Result, error) {
			return a.Scraper.Execute(ctx, plan, scraper.RunOptions{
				Preview:      runPreview,
				Instructions: runInstructions,
			})
		})
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Crawled %d pages, %d items\n", len(result.Pages), result.ItemCount())

		if runRaw || a.Parser == nil {
			return writeJSON(runOutput, result.Pages)
		}

		records, err := a.Parser.Parse(ctx, result.Pages, runInstructions)
		if err != nil {
			return fmt.Errorf("parsing failed: %w", err)
		}
		return writeJSON(runOutput, records)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runInstructions, "instructions", "i", "", "What to extract, in plain words")
	runCmd.Flags().BoolVar(&runPreview, "preview", false, "Crawl one page with a few items to check the plan")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write records to a file instead of stdout")
	runCmd.Flags().StringVar(&runSavePlan, "save-plan", "", "Save the generated plan to a JSON file")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "Emit raw crawl output without AI consolidation")
	rootCmd.AddCommand(runCmd)
}

// runWithProgress shows an indeterminate progress spinner while fn runs,
// unless output is going to a terminal-unfriendly place.
func runWithProgress(cmd *cobra.Command, fn func() (*scraper.Result, error)) (*scraper.Result, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()

	result, err := fn()
	close(done)
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	return result, err
}

// writeJSON marshals v to path, or stdout when path is empty.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize output: %w", err)
	}
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Output written to %s\n", path)
	return nil
}

func writePlanFile(path string, plan *models.ExtractionPlan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
