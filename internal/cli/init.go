package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulsekey/pulsekey/internal/config"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Init writes a config file with the default settings and an example
key sequence. Edit process_name and the keys, then start with 'pulsekey run'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(flagConfig); err == nil && !initForce {
			return fmt.Errorf("'%s' already exists; use --force to overwrite", flagConfig)
		}

		cfg := config.Default()
		cfg.ProcessName = "notepad.exe"
		cfg.KeySequence = []config.KeyAction{
			{Key: "1", IntervalAfter: config.Duration{Duration: 500 * time.Millisecond}},
			{Key: "2", IntervalAfter: config.Duration{Duration: time.Second}},
		}

		if err := cfg.Save(flagConfig); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", flagConfig)
		return nil
	},
}
