package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/vpclambda/pkg/engine"
)

func newDefinitionCommand() *cobra.Command {
	var (
		arrayFunction  string
		reportFunction string
		invocation     string
		maxConcurrency int
	)

	cmd := &cobra.Command{
		Use:   "definition",
		Short: "Print the workflow as Amazon States Language",
		Long: `Render the workflow wiring as an Amazon States Language document.

The output is the same chain the stack deploys, so it can be diffed against a
deployed state machine or passed to create-state-machine directly.`,
		Example: `  # Render with configured function names
  vpclambda definition

  # Render with function ARNs
  vpclambda definition --array-function arn:aws:lambda:eu-west-1:123456789012:function:CreateArray`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			def := cfg.Definition()
			if arrayFunction != "" {
				def.ArrayFunction = arrayFunction
			}
			if reportFunction != "" {
				def.ReportFunction = reportFunction
			}
			if invocation != "" {
				def.ReportInvocation = engine.InvocationType(invocation)
			}
			if cmd.Flags().Changed("max-concurrency") {
				def.MaxConcurrency = maxConcurrency
			}

			asl, err := def.MarshalASL()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(asl))
			return err
		},
	}

	cmd.Flags().StringVar(&arrayFunction, "array-function", "", "ArrayBuilder function name or ARN")
	cmd.Flags().StringVar(&reportFunction, "report-function", "", "IpReporter function name or ARN")
	cmd.Flags().StringVar(&invocation, "invocation", "", "fan-out invocation type (Event, RequestResponse)")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "fan-out concurrency bound, 0 for unbounded")

	return cmd
}
