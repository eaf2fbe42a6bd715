package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pulsekey/pulsekey/internal/config"
	"github.com/pulsekey/pulsekey/internal/control"
	"github.com/pulsekey/pulsekey/internal/db"
	"github.com/pulsekey/pulsekey/internal/engine"
	"github.com/pulsekey/pulsekey/internal/events"
	"github.com/pulsekey/pulsekey/internal/hotkey"
	"github.com/pulsekey/pulsekey/internal/injector"
	"github.com/pulsekey/pulsekey/internal/logging"
	"github.com/pulsekey/pulsekey/internal/pause"
	"github.com/pulsekey/pulsekey/internal/process"
)

var (
	runDBPath    string
	runSocket    string
	runNoControl bool
	runNoHotkey  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDBPath, "db", "", "record run events to this SQLite database")
	runCmd.Flags().StringVar(&runSocket, "socket", control.DefaultSocketPath(), "control socket path")
	runCmd.Flags().BoolVar(&runNoControl, "no-control", false, "disable the control socket")
	runCmd.Flags().BoolVar(&runNoHotkey, "no-hotkey", false, "disable the global pause hotkey")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start delivering keys to the configured process",
	Long: `Run loads the config, finds the target process (retrying with backoff
until it appears), and starts the configured delivery drivers. Delivery
continues until the schedule completes or the run is interrupted.`,
	Example: `  # Run with ./config.json
  pulsekey run

  # Explicit config, with a persistent event log
  pulsekey run --config game.json --db events.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Component("cli")

		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if cfg.Verbose && !flagVerbose {
			logging.Setup(true, flagJSON)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var eventLog *events.Log
		if runDBPath != "" {
			database, err := db.Open(ctx, runDBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			eventLog = events.NewLog(db.NewEventRepository(database))
		}

		pauseState := pause.NewState()
		inj := injector.NewRobotgo(cfg.RestoreFocus)
		eng := engine.New(cfg, process.NewLocator(), inj, pauseState, eventLog, engine.Options{})

		// The run ends when the engine does; cancel the helpers with it.
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		group, gctx := errgroup.WithContext(runCtx)

		if !runNoHotkey {
			listener, err := hotkey.NewListener(cfg.PauseHotkey, pauseState)
			if err != nil {
				return err
			}
			group.Go(func() error {
				return listener.Run(gctx)
			})
		}

		if !runNoControl {
			ctl := control.NewServer(eng, pauseState, cfg.ProcessName, Version)
			group.Go(func() error {
				return ctl.Serve(gctx, runSocket)
			})
		}

		group.Go(func() error {
			defer cancel()
			return eng.Run(gctx)
		})

		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		stats := eng.Stats()
		logger.Info().
			Int64("injections", stats.TotalInjections).
			Int64("failed", stats.FailedInjections).
			Int64("reacquisitions", stats.Reacquisitions).
			Int64("sequence_passes", stats.SequencePasses).
			Msg("run finished")
		return nil
	},
}
