package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulsekey/pulsekey/internal/db"
	"github.com/pulsekey/pulsekey/internal/models"
)

var (
	eventsDBPath string
	eventsType   string
	eventsSince  string
	eventsLimit  int
)

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventsDBPath, "db", "", "event database path")
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "filter by event type (e.g. key.sent)")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "events at or after this time (RFC3339 or duration like 30m)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "max events to show (0 = all)")
	_ = eventsCmd.MarkFlagRequired("db")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the run event log",
	Example: `  # Last 50 events
  pulsekey events --db events.db

  # Failed injections in the last hour
  pulsekey events --db events.db --type key.failed --since 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := db.Open(ctx, eventsDBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		query := db.EventQuery{Limit: eventsLimit}
		if eventsType != "" {
			eventType := models.EventType(eventsType)
			query.Type = &eventType
		}
		if eventsSince != "" {
			since, err := parseSince(eventsSince)
			if err != nil {
				return err
			}
			query.Since = &since
		}

		results, err := db.NewEventRepository(database).Query(ctx, query)
		if err != nil {
			return err
		}

		if flagJSON {
			return writeJSON(results)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tPID\tKEY\tDETAILS")
		for _, event := range results {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				event.Timestamp.Local().Format("2006-01-02 15:04:05"),
				event.Type,
				event.PID,
				event.Key,
				compactPayload(event.Payload),
			)
		}
		return w.Flush()
	},
}

// parseSince accepts either an RFC3339 timestamp or a duration back from
// now, e.g. "30m".
func parseSince(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return time.Now().Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value '%s': want RFC3339 time or duration", value)
}

func compactPayload(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	return string(payload)
}
