package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the deployment and runtime configuration shared by the CLI and
// the function entry points.
type Config struct {
	// Region is the AWS region of the deployed functions and state machine.
	Region string `json:"region,omitempty" yaml:"region,omitempty" validate:"omitempty,min=4"`

	// Profile selects a shared AWS config profile.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// Functions names the two work units.
	Functions FunctionsConfig `json:"functions" yaml:"functions"`

	// StateMachineARN identifies the deployed workflow for remote runs.
	StateMachineARN string `json:"stateMachineArn,omitempty" yaml:"stateMachineArn,omitempty" validate:"omitempty,startswith=arn:"`

	// Lookup configures the public address service.
	Lookup LookupConfig `json:"lookup" yaml:"lookup"`

	// MaxArrayLength is the largest number ArrayBuilder accepts. Zero means no ceiling.
	MaxArrayLength int `json:"maxArrayLength" yaml:"maxArrayLength" validate:"gte=0"`

	// MaxConcurrency bounds fan-out dispatches. Zero means unbounded.
	MaxConcurrency int `json:"maxConcurrency" yaml:"maxConcurrency" validate:"gte=0"`

	// Telemetry overrides the telemetry defaults.
	Telemetry TelemetrySettings `json:"telemetry" yaml:"telemetry"`
}

// FunctionsConfig holds function names or ARNs.
type FunctionsConfig struct {
	CreateArray   string `json:"createArray" yaml:"createArray" validate:"required"`
	GetMyGlobalIP string `json:"getMyGlobalIP" yaml:"getMyGlobalIP" validate:"required"`
}

// LookupConfig configures the address lookup.
type LookupConfig struct {
	Endpoint       string `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds" validate:"gt=0,lte=900"`
}

// Timeout returns the lookup timeout as a duration.
func (l LookupConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// TelemetrySettings is the user-facing subset of telemetry.Config.
type TelemetrySettings struct {
	LogLevel        string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFormat       string `json:"logFormat,omitempty" yaml:"logFormat,omitempty" validate:"omitempty,oneof=console json"`
	TracingExporter string `json:"tracingExporter,omitempty" yaml:"tracingExporter,omitempty" validate:"omitempty,oneof=otlp stdout none"`
	TracingEndpoint string `json:"tracingEndpoint,omitempty" yaml:"tracingEndpoint,omitempty"`
	MetricsEnabled  *bool  `json:"metricsEnabled,omitempty" yaml:"metricsEnabled,omitempty"`
	MetricsAddress  string `json:"metricsAddress,omitempty" yaml:"metricsAddress,omitempty"`
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the field path of the error (e.g., "lookup.timeoutSeconds").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// LoadError collects every problem found while loading a configuration.
type LoadError struct {
	Source string
	Errors []ValidationError
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Error())
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Source, strings.Join(msgs, "; "))
}
