package config

import (
	"fmt"

	"cuelang.org/go/cue"
)

// configSchema constrains configuration files before they are decoded. The
// definition is closed, so unknown fields are rejected.
const configSchema = `
#Config: {
	// AWS region, e.g. eu-west-1
	region?: string & =~"^[a-z]{2}(-[a-z]+)+-[0-9]+$"

	profile?: string & !=""

	functions?: {
		createArray?:   string & !=""
		getMyGlobalIP?: string & !=""
	}

	stateMachineArn?: string & =~"^arn:aws[a-z-]*:states:"

	lookup?: {
		endpoint?:       string & =~"^https?://"
		timeoutSeconds?: int & >0 & <=900
	}

	maxArrayLength?: int & >=0
	maxConcurrency?: int & >=0

	telemetry?: {
		logLevel?:        "debug" | "info" | "warn" | "error"
		logFormat?:       "console" | "json"
		tracingExporter?: "otlp" | "stdout" | "none"
		tracingEndpoint?: string
		metricsEnabled?:  bool
		metricsAddress?:  string
	}
}
`

// compileSchema builds the #Config definition in ctx.
func compileSchema(ctx *cue.Context) (cue.Value, error) {
	val := ctx.CompileString(configSchema, cue.Filename("schema.cue"))
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to compile config schema: %w", err)
	}
	def := val.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to look up #Config: %w", err)
	}
	return def, nil
}

// Schema returns the CUE source of the configuration schema.
func Schema() string {
	return configSchema
}
