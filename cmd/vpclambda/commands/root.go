package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vpclambda",
		Short: "vpclambda - fan-out address reporting workflow",
		Long: `vpclambda builds the sequence [1..n] and reports the public egress address
once per element, either in-process or against the deployed state machine.

Features:
  - ArrayBuilder and IpReporter work units runnable from the shell
  - Local sequencer with fire-and-forget fan-out
  - Remote executions through Step Functions
  - Amazon States Language rendering of the workflow
  - Typed configs via CUE or YAML with live reload`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (.cue, .yaml, .yml, .json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newBuildArrayCommand())
	rootCmd.AddCommand(newReportIPCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newDefinitionCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newDevCommand())

	return rootCmd
}
