package policy

import (
	"time"

	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block a deployment.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity fail the evaluation.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations are read from the
	// package's deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation represents a single policy finding.
type Violation struct {
	// Policy is the name of the policy that produced the finding.
	Policy string `json:"policy"`

	// Field is the configuration path the finding refers to.
	Field string `json:"field,omitempty"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// Severity is the finding's severity level.
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating all enabled policies.
type Result struct {
	// Allowed is false when any blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists blocking findings.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists findings that do not block.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document policies are evaluated against.
type Input struct {
	Config     *config.Config     `json:"config"`
	Definition *engine.Definition `json:"definition"`
	Context    Context            `json:"context"`
}

// Context describes where the evaluated configuration is headed.
type Context struct {
	// Environment is the target environment, e.g. "production".
	Environment string `json:"environment,omitempty"`

	// Operation is what the configuration is checked for, e.g. "validate".
	Operation string `json:"operation,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}

// NewInput builds the evaluation input for cfg and its workflow definition.
func NewInput(cfg *config.Config, environment, operation string) *Input {
	return &Input{
		Config:     cfg,
		Definition: cfg.Definition(),
		Context: Context{
			Environment: environment,
			Operation:   operation,
			Timestamp:   time.Now(),
		},
	}
}
