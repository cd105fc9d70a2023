// internal/cli/root.go
package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/expo-works/scrape/internal/app"
	"github.com/expo-works/scrape/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Plan-driven extraction of structured data from web directories",
	Long: `Scrape turns a directory listing page into structured records. An AI planner
studies the page and emits a declarative extraction plan; the engine executes
the plan: pagination, detail pages, sub-links, and discovered data APIs.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)

	// Initialize the application lazily so -h/help never starts it
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp() != nil {
			return nil
		}

		cfg, err := config.Load(rootCmd)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load configuration, using defaults")
			cfg = &config.Config{}
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(a)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a := GetApp()
		if a == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.HTTPTimeout)
		defer cancel()
		_ = a.Close(ctx)
		SetApp(nil)
	}
}
