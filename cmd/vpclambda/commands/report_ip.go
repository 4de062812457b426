package commands

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vpclambda/pkg/engine"
)

func newReportIPCommand() *cobra.Command {
	var (
		endpoint string
		timeout  int
	)

	cmd := &cobra.Command{
		Use:   "report-ip <id>",
		Short: "Run IpReporter once",
		Long: `Run the IpReporter work unit in-process: look up the public address once and
write a single {"id", "response_data"} record to stdout.

A failed lookup is reported as an error and nothing is written.`,
		Example: `  # Report with the configured lookup endpoint
  vpclambda report-ip 7

  # Use another endpoint
  vpclambda report-ip 7 --endpoint https://ifconfig.me/ip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return engine.NewValidationError(fmt.Sprintf("id must be an integer, got %q", args[0]), err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if endpoint != "" {
				cfg.Lookup.Endpoint = endpoint
			}
			if timeout > 0 {
				cfg.Lookup.TimeoutSeconds = timeout
			}

			tel, err := newTelemetry(cfg, newLockedWriter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			log.Debug().Int("id", id).Str("endpoint", cfg.Lookup.Endpoint).Msg("Reporting address")

			reporter := newReporter(cfg, cmd.OutOrStdout())
			_, err = reporter.Report(tel.WithContext(cmd.Context()), &engine.IPRequest{ID: id})
			return err
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "address lookup endpoint (overrides config)")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "lookup timeout in seconds (overrides config)")

	return cmd
}
