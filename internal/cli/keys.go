package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulsekey/pulsekey/internal/keymap"
)

func init() {
	rootCmd.AddCommand(keysCmd)
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List supported key names",
	Long: `Keys prints every key name the config accepts. Any of them may be
combined with ctrl, alt, shift and cmd, e.g. "ctrl+alt+f5".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		supported := keymap.Supported()

		if flagJSON {
			return writeJSON(map[string]any{"keys": supported})
		}

		for _, name := range supported {
			fmt.Println(name)
		}
		return nil
	},
}
