package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/handlers"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// Default function names match the construct ids of the deployed stack.
const (
	DefaultCreateArrayFunction   = "CreateArrayFunction"
	DefaultGetMyGlobalIPFunction = "GetMyGlobalIPFunction"
)

// Environment variables read by ApplyEnv.
const (
	EnvRegion               = "VPCLAMBDA_REGION"
	EnvProfile              = "VPCLAMBDA_PROFILE"
	EnvCreateArrayFunction  = "VPCLAMBDA_CREATE_ARRAY_FUNCTION"
	EnvGetMyGlobalIPFunc    = "VPCLAMBDA_GET_MY_GLOBAL_IP_FUNCTION"
	EnvStateMachineARN      = "VPCLAMBDA_STATE_MACHINE_ARN"
	EnvLookupEndpoint       = "VPCLAMBDA_LOOKUP_ENDPOINT"
	EnvLookupTimeoutSeconds = "VPCLAMBDA_LOOKUP_TIMEOUT_SECONDS"
	EnvMaxArrayLength       = "VPCLAMBDA_MAX_ARRAY_LENGTH"
	EnvMaxConcurrency       = "VPCLAMBDA_MAX_CONCURRENCY"
	EnvLogLevel             = "VPCLAMBDA_LOG_LEVEL"
	EnvLogFormat            = "VPCLAMBDA_LOG_FORMAT"
	EnvTracingExporter      = "VPCLAMBDA_TRACING_EXPORTER"
	EnvTracingEndpoint      = "VPCLAMBDA_TRACING_ENDPOINT"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Functions: FunctionsConfig{
			CreateArray:   DefaultCreateArrayFunction,
			GetMyGlobalIP: DefaultGetMyGlobalIPFunction,
		},
		Lookup: LookupConfig{
			Endpoint:       handlers.DefaultLookupEndpoint,
			TimeoutSeconds: int(handlers.DefaultLookupTimeout.Seconds()),
		},
		MaxArrayLength: handlers.DefaultMaxArrayLength,
		MaxConcurrency: 0,
	}
}

// FromEnv returns the defaults with environment overrides applied and
// validated. Function entry points use it since they ship without a file.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	if err := l.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from environment variables looked up with lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvRegion:              &cfg.Region,
		EnvProfile:             &cfg.Profile,
		EnvCreateArrayFunction: &cfg.Functions.CreateArray,
		EnvGetMyGlobalIPFunc:   &cfg.Functions.GetMyGlobalIP,
		EnvStateMachineARN:     &cfg.StateMachineARN,
		EnvLookupEndpoint:      &cfg.Lookup.Endpoint,
		EnvLogLevel:            &cfg.Telemetry.LogLevel,
		EnvLogFormat:           &cfg.Telemetry.LogFormat,
		EnvTracingExporter:     &cfg.Telemetry.TracingExporter,
		EnvTracingEndpoint:     &cfg.Telemetry.TracingEndpoint,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		EnvLookupTimeoutSeconds: &cfg.Lookup.TimeoutSeconds,
		EnvMaxArrayLength:       &cfg.MaxArrayLength,
		EnvMaxConcurrency:       &cfg.MaxConcurrency,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = n
	}
	return nil
}

// Definition returns the workflow wiring for the configured functions.
func (c *Config) Definition() *engine.Definition {
	def := engine.DefaultDefinition(c.Functions.CreateArray, c.Functions.GetMyGlobalIP)
	def.MaxConcurrency = c.MaxConcurrency
	return def
}

// ApplyTelemetry overlays the configured telemetry settings on base.
func (c *Config) ApplyTelemetry(base *telemetry.Config) *telemetry.Config {
	t := c.Telemetry
	if t.LogLevel != "" {
		base.Logging.Level = t.LogLevel
	}
	if t.LogFormat != "" {
		base.Logging.Format = t.LogFormat
	}
	if t.TracingExporter != "" {
		base.Tracing.Exporter = t.TracingExporter
		base.Tracing.Enabled = t.TracingExporter != "none"
	}
	if t.TracingEndpoint != "" {
		base.Tracing.Endpoint = t.TracingEndpoint
	}
	if t.MetricsEnabled != nil {
		base.Metrics.Enabled = *t.MetricsEnabled
	}
	if t.MetricsAddress != "" {
		base.Metrics.ListenAddress = t.MetricsAddress
	}
	return base
}
