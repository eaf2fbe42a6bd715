package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulsekey/pulsekey/internal/config"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file without running",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if flagJSON {
			return writeJSON(map[string]any{
				"valid":            true,
				"process_name":     cfg.ProcessName,
				"sequence_steps":   len(cfg.KeySequence),
				"independent_keys": len(cfg.IndependentKeys),
				"pause_hotkey":     cfg.PauseHotkey,
			})
		}

		fmt.Printf("Config OK: %d sequence step(s), %d independent key(s), target %q\n",
			len(cfg.KeySequence), len(cfg.IndependentKeys), cfg.ProcessName)
		return nil
	},
}
