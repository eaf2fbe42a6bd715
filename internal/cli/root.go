// Package cli implements the pulsekey command line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulsekey/pulsekey/internal/logging"
)

// Version is the build version, overridden at link time.
var Version = "dev"

var (
	flagConfig  string
	flagVerbose bool
	flagJSON    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config.json", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable JSON output")
}

var rootCmd = &cobra.Command{
	Use:   "pulsekey",
	Short: "Timed key delivery into a running process",
	Long: `pulsekey sends configured keystrokes to a named running process on
fixed schedules: a strict key sequence, independent per-key cadences, or
both at once. A global hotkey pauses and resumes delivery at any time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(flagVerbose, flagJSON)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
