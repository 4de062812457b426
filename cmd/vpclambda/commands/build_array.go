package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/handlers"
)

func newBuildArrayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-array <number>",
		Short: "Run ArrayBuilder once",
		Long: `Run the ArrayBuilder work unit in-process and print the sequence [1..number].

The number must be a non-negative integer no larger than the configured
maximum array length.`,
		Example: `  # Print {"array":[1,2,3]}
  vpclambda build-array 3

  # Negative values must follow -- so they are not parsed as flags
  vpclambda build-array -- -1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return engine.NewValidationError(fmt.Sprintf("number must be an integer, got %q", args[0]), err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			tel, err := newTelemetry(cfg, newLockedWriter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			log.Debug().Int("number", n).Int("max_length", cfg.MaxArrayLength).Msg("Building array")

			builder := handlers.NewArrayBuilder(cfg.MaxArrayLength)
			seq, err := builder.Build(tel.WithContext(cmd.Context()), &engine.NumberRequest{Number: n})
			if err != nil {
				return err
			}

			return json.NewEncoder(cmd.OutOrStdout()).Encode(seq)
		},
	}

	return cmd
}
