package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pulsekey version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			return writeJSON(map[string]string{"version": Version})
		}
		fmt.Println(Version)
		return nil
	},
}
