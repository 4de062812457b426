package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/invoke"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// Invoker backends for local executions.
const (
	invokerLocal  = "local"
	invokerLambda = "lambda"
)

// runOptions holds the flags of run and dev.
type runOptions struct {
	invoker      string
	events       bool
	eventsLevel  string
	eventTypes   []string
	noDrain      bool
	serveMetrics bool
}

// addEventFlags registers the timeline flags shared by run and dev.
func addEventFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVar(&opts.events, "events", false, "print the execution timeline to stderr")
	cmd.Flags().StringVar(&opts.eventsLevel, "events-level", telemetry.EventLevelInfo, "lowest timeline level to print (info, warning, error)")
	cmd.Flags().StringSliceVar(&opts.eventTypes, "events-type", nil, "only print these timeline event types")
}

// timelineFilter combines the level and type filters of opts.
func timelineFilter(opts runOptions) (telemetry.EventFilter, error) {
	switch opts.eventsLevel {
	case "", telemetry.EventLevelInfo, telemetry.EventLevelWarning, telemetry.EventLevelError:
	default:
		return nil, fmt.Errorf("unknown events level %q (must be info, warning or error)", opts.eventsLevel)
	}

	byLevel := telemetry.FilterByLevel(opts.eventsLevel)
	if len(opts.eventTypes) == 0 {
		return byLevel, nil
	}
	byType := telemetry.FilterByType(opts.eventTypes...)
	return func(e telemetry.Event) bool {
		return byLevel(e) && byType(e)
	}, nil
}

func newRunCommand() *cobra.Command {
	var (
		opts         runOptions
		input        string
		remote       bool
		stateMachine string
		name         string
		wait         bool
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [number]",
		Short: "Run the workflow once",
		Long: `Run the workflow BuildArray -> FanOutReport -> Succeed.

By default the sequencer runs in-process. With --invoker lambda it still runs
in-process but invokes the deployed functions. With --remote the execution is
started on the deployed state machine instead.

Report records are written to stdout as each fire-and-forget invocation
finishes. Unless --no-drain is given, local runs wait for those invocations
before printing the execution summary.`,
		Example: `  # Run locally with 3 reports
  vpclambda run 3

  # Pass the raw execution input
  vpclambda run --input '{"numberForInputMap": 3}'

  # Print the execution timeline to stderr
  vpclambda run 3 --events

  # Print only dispatches and failures
  vpclambda run 3 --events --events-type branch.dispatched,execution.failed

  # Start the deployed state machine and wait for it
  vpclambda run 3 --remote --wait`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseExecutionInput(args, input)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if remote {
				return runRemote(cmd, cfg, payload, remoteOptions{
					stateMachine: stateMachine,
					name:         name,
					wait:         wait,
					pollInterval: pollInterval,
				})
			}

			_, err = runLocal(cmd.Context(), cfg, payload, opts,
				newLockedWriter(cmd.OutOrStdout()), newLockedWriter(cmd.ErrOrStderr()))
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "raw JSON execution input")
	cmd.Flags().StringVar(&opts.invoker, "invoker", invokerLocal, "function backend for local runs (local, lambda)")
	addEventFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.noDrain, "no-drain", false, "do not wait for dispatched reports")
	cmd.Flags().BoolVar(&opts.serveMetrics, "serve-metrics", false, "expose Prometheus metrics while running")
	cmd.Flags().BoolVar(&remote, "remote", false, "start an execution of the deployed state machine")
	cmd.Flags().StringVar(&stateMachine, "state-machine", "", "state machine ARN (overrides config)")
	cmd.Flags().StringVar(&name, "name", "", "remote execution name")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the remote execution to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", invoke.DefaultPollInterval, "status poll interval for --wait")

	return cmd
}

// parseExecutionInput builds the execution input from a number argument or
// raw JSON. Exactly one must be given.
func parseExecutionInput(args []string, input string) (json.RawMessage, error) {
	switch {
	case len(args) == 1 && input != "":
		return nil, fmt.Errorf("give either a number or --input, not both")
	case len(args) == 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, engine.NewValidationError(fmt.Sprintf("number must be an integer, got %q", args[0]), err)
		}
		return executionInput(n), nil
	case input != "":
		if !json.Valid([]byte(input)) {
			return nil, engine.NewValidationError("--input is not valid JSON", nil)
		}
		return json.RawMessage(input), nil
	default:
		return nil, fmt.Errorf("a number or --input is required")
	}
}

// runLocal runs one execution in-process and prints its summary to out.
func runLocal(ctx context.Context, cfg *config.Config, input json.RawMessage, opts runOptions, out, errOut io.Writer) (*engine.Execution, error) {
	var filter telemetry.EventFilter
	if opts.events {
		f, err := timelineFilter(opts)
		if err != nil {
			return nil, err
		}
		filter = f
	}

	tel, err := newTelemetry(cfg, errOut)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownTelemetry(tel)
		if n := tel.Events.Dropped(); n > 0 {
			log.Warn().Uint64("dropped", n).Msg("Timeline events were dropped")
		}
	}()

	if opts.events {
		tel.Events.Subscribe(timelinePrinter(errOut), filter)
	}
	if opts.serveMetrics {
		if err := tel.StartMetricsServer(); err != nil {
			return nil, err
		}
	}

	ctx = tel.WithContext(ctx)

	var (
		inv   engine.Invoker
		local *invoke.LocalInvoker
	)
	switch opts.invoker {
	case "", invokerLocal:
		local = newLocalInvoker(cfg, out)
		inv = local
	case invokerLambda:
		awsCfg, err := invoke.LoadAWSConfig(ctx, awsOptions(cfg))
		if err != nil {
			return nil, err
		}
		inv = invoke.NewLambdaInvoker(awsCfg)
	default:
		return nil, fmt.Errorf("unknown invoker %q (must be %s or %s)", opts.invoker, invokerLocal, invokerLambda)
	}

	seq, err := engine.NewSequencer(cfg.Definition(), inv)
	if err != nil {
		return nil, err
	}

	exec, runErr := seq.Start(ctx, input)

	if local != nil && !opts.noDrain {
		if err := local.Drain(ctx); err != nil {
			log.Warn().Err(err).Msg("Stopped waiting for dispatched reports")
		}
		for _, f := range local.Failures() {
			log.Warn().
				Str("function", f.Function).
				RawJSON("payload", f.Payload).
				Err(f.Err).
				Msg("Report failed after dispatch")
		}
	}

	if err := printExecution(out, exec); err != nil {
		return exec, err
	}
	return exec, runErr
}

// remoteOptions holds the flags of run --remote.
type remoteOptions struct {
	stateMachine string
	name         string
	wait         bool
	pollInterval time.Duration
}

// runRemote starts an execution of the deployed state machine.
func runRemote(cmd *cobra.Command, cfg *config.Config, input json.RawMessage, opts remoteOptions) error {
	ctx := cmd.Context()

	arn := opts.stateMachine
	if arn == "" {
		arn = cfg.StateMachineARN
	}
	if arn == "" {
		return fmt.Errorf("state machine ARN is required (--state-machine or stateMachineArn in config)")
	}

	awsCfg, err := invoke.LoadAWSConfig(ctx, awsOptions(cfg))
	if err != nil {
		return err
	}
	client := invoke.NewStateMachineClient(awsCfg, arn)
	client.SetPollInterval(opts.pollInterval)

	execARN, err := client.Start(ctx, input, opts.name)
	if err != nil {
		return err
	}
	log.Info().Str("execution_arn", execARN).Msg("Started remote execution")

	if !opts.wait {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), execARN)
		return err
	}

	remoteExec, err := client.Wait(ctx, execARN)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(remoteExec); err != nil {
		return err
	}

	if remoteExec.Status == engine.ExecutionStatusFailed {
		return fmt.Errorf("execution %s ended %s: %s %s", remoteExec.Name, remoteExec.RawStatus, remoteExec.Error, remoteExec.Cause)
	}
	return nil
}
