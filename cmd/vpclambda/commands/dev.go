package commands

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vpclambda/pkg/config"
)

func newDevCommand() *cobra.Command {
	var (
		opts        runOptions
		number      int
		reloadDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run locally and rerun on config changes",
		Long: `Run the workflow in-process and run it again every time the configuration
file changes. Invalid edits are reported and the last good configuration
stays in effect.

Stops on interrupt.`,
		Example: `  # Rerun with 3 reports on every edit
  vpclambda dev --config ./vpclambda.cue --number 3 --events`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("dev requires --config")
			}
			if number < 0 {
				return fmt.Errorf("--number must not be negative")
			}

			loader, err := config.NewLoader()
			if err != nil {
				return err
			}
			watcher, err := config.NewWatcher(loader, configPath, log.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()
			watcher.SetReloadDelay(reloadDelay)

			ctx := cmd.Context()
			out := newLockedWriter(cmd.OutOrStdout())
			errOut := newLockedWriter(cmd.ErrOrStderr())
			input := executionInput(number)

			// Reloads arrive on timer goroutines; runs must not overlap.
			var mu sync.Mutex
			rerun := func(cfg *config.Config) {
				mu.Lock()
				defer mu.Unlock()
				if ctx.Err() != nil {
					return
				}
				if _, err := runLocal(ctx, cfg, input, opts, out, errOut); err != nil {
					log.Error().Err(err).Msg("Execution failed")
				}
			}

			rerun(watcher.Current())

			if err := watcher.Watch(ctx, rerun); err != nil {
				return err
			}
			log.Info().Str("config", configPath).Msg("Watching for changes, press Ctrl+C to stop")

			<-ctx.Done()

			mu.Lock()
			defer mu.Unlock()
			return nil
		},
	}

	cmd.Flags().IntVarP(&number, "number", "n", 3, "number of reports per run")
	addEventFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.noDrain, "no-drain", false, "do not wait for dispatched reports")
	cmd.Flags().DurationVar(&reloadDelay, "reload-delay", config.DefaultReloadDelay, "debounce delay for file changes")

	return cmd
}
