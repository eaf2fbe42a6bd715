package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulsekey/pulsekey/internal/process"
)

func init() {
	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Look up a running process by name",
	Long: `Find performs a single case-insensitive substring match against the
names of running processes, the same lookup the run command uses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, found, err := process.NewLocator().Find(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no running process matches '%s'", args[0])
		}

		if flagJSON {
			return writeJSON(map[string]any{
				"pid":  handle.PID,
				"name": handle.Name,
			})
		}

		fmt.Printf("%s (pid %d)\n", handle.Name, handle.PID)
		return nil
	},
}
