package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/policy"
)

// validateReport is the --json output of validate.
type validateReport struct {
	Config *config.Config `json:"config"`
	Policy *policy.Result `json:"policy,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var (
		policyPaths  []string
		environment  string
		skipPolicies bool
		enable       []string
		disable      []string
		listPolicies bool
		describe     string
		printSchema  bool
	)

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a configuration file",
		Long: `Validate a CUE, YAML or JSON configuration file.

This command checks:
  - Syntax validity
  - Conformance with the embedded CUE schema
  - Field constraints (URLs, ranges, ARNs)
  - Policy compliance (built-in and custom Rego guardrails)

VPCLAMBDA_* environment overrides are applied before checking. Without a path
the defaults plus environment overrides are validated.`,
		Example: `  # Validate a file
  vpclambda validate ./vpclambda.cue

  # Check against production guardrails and custom policies
  vpclambda validate ./vpclambda.cue --environment production --policy ./policies

  # Print the resolved configuration and policy result
  vpclambda validate ./vpclambda.yaml --json

  # List the policies that would run, then check without one of them
  vpclambda validate --list-policies --policy ./policies
  vpclambda validate ./vpclambda.cue --disable lookup-timeout

  # Show the Rego source of a policy
  vpclambda validate --describe fanout-invocation`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) > 0 {
				path = args[0]
			}

			log.Debug().
				Str("path", path).
				Strs("policies", policyPaths).
				Str("environment", environment).
				Msg("Validating configuration")

			if printSchema {
				_, err := fmt.Fprint(cmd.OutOrStdout(), config.Schema())
				return err
			}

			if listPolicies || describe != "" {
				eng, err := newPolicyEngine(cmd.Context(), policyPaths, enable, disable)
				if err != nil {
					return err
				}
				if describe != "" {
					p, err := eng.GetPolicy(describe)
					if err != nil {
						return err
					}
					return printPolicySource(cmd.OutOrStdout(), p)
				}
				return printPolicyList(cmd.OutOrStdout(), eng.ListPolicies())
			}

			cfg, err := loadConfigFrom(path)
			if err != nil {
				var loadErr *config.LoadError
				if errors.As(err, &loadErr) {
					for _, ve := range loadErr.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", ve.Error())
					}
				}
				return err
			}

			report := &validateReport{Config: cfg}
			if !skipPolicies {
				eng, err := newPolicyEngine(cmd.Context(), policyPaths, enable, disable)
				if err != nil {
					return err
				}
				report.Policy, err = eng.Evaluate(cmd.Context(), policy.NewInput(cfg, environment, "validate"))
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printPolicyFindings(cmd.OutOrStdout(), report.Policy)
			}

			if report.Policy != nil && !report.Policy.Allowed {
				return fmt.Errorf("configuration violates %d policy rule(s)", len(report.Policy.Violations))
			}

			if !jsonOutput {
				source := path
				if source == "" {
					source = "defaults"
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", source)
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")
	cmd.Flags().StringVar(&environment, "environment", "", "target environment passed to policies (e.g. production)")
	cmd.Flags().BoolVar(&skipPolicies, "skip-policies", false, "check schema and constraints only")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "enable policies that are disabled by default")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "skip the named policies")
	cmd.Flags().BoolVar(&listPolicies, "list-policies", false, "list loaded policies and exit")
	cmd.Flags().StringVar(&describe, "describe", "", "print the Rego source of a policy and exit")
	cmd.Flags().BoolVar(&printSchema, "schema", false, "print the CUE schema config files are checked against and exit")

	return cmd
}

// loadConfigFrom loads path, or the defaults plus environment when empty.
func loadConfigFrom(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	loader, err := config.NewLoader()
	if err != nil {
		return nil, err
	}
	return loader.Load(path)
}

func printPolicyFindings(w io.Writer, result *policy.Result) {
	if result == nil {
		return
	}
	for _, v := range result.Violations {
		fmt.Fprintf(w, "ERROR   %-22s %s\n", v.Policy, v.Message)
	}
	for _, v := range result.Warnings {
		fmt.Fprintf(w, "WARNING %-22s %s\n", v.Policy, v.Message)
	}
}

// newPolicyEngine loads the built-in and custom policies and applies the
// enable and disable lists, in that order.
func newPolicyEngine(ctx context.Context, paths, enable, disable []string) (*policy.Engine, error) {
	eng, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		if err := eng.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}
	for _, name := range enable {
		if err := eng.EnablePolicy(name); err != nil {
			return nil, err
		}
	}
	for _, name := range disable {
		if err := eng.DisablePolicy(name); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

func printPolicyList(w io.Writer, policies []policy.Policy) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(policies)
	}
	for _, p := range policies {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		if _, err := fmt.Fprintf(w, "%-22s %-8s %-8s %s\n", p.Name, p.Severity, state, p.Description); err != nil {
			return err
		}
	}
	return nil
}

func printPolicySource(w io.Writer, p *policy.Policy) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	_, err := fmt.Fprintf(w, "# %s (%s)\n# %s\n%s\n", p.Name, p.Severity, p.Description, p.Rego)
	return err
}
