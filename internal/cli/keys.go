// internal/cli/keys.go
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/expo-works/scrape/internal/auth"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage stored API keys",
}

var keysSetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the planner API key in the OS keyring",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			fmt.Fprint(os.Stderr, "API key: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read key: %w", err)
			}
			key = strings.TrimSpace(line)
		}

		if err := auth.SaveKey(auth.GeminiKeyName, key); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Key stored")
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored planner API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.DeleteKey(auth.GeminiKeyName); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Key removed")
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Report whether a planner API key is configured",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv(auth.GeminiEnvVar) != "" {
			fmt.Printf("Using key from %s\n", auth.GeminiEnvVar)
			return nil
		}
		if _, err := auth.LoadKey(auth.GeminiKeyName); err == nil {
			fmt.Println("Using stored key")
			return nil
		}
		fmt.Println("No key configured")
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysSetCmd, keysDeleteCmd, keysShowCmd)
	rootCmd.AddCommand(keysCmd)
}
