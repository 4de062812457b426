package policy

// BuiltinPolicies returns the deployment guardrails evaluated by default.
func BuiltinPolicies() []Policy {
	return []Policy{
		fanOutInvocationPolicy(),
		lookupEndpointPolicy(),
		arrayLengthPolicy(),
		lookupTimeoutPolicy(),
		productionTracingPolicy(),
	}
}

// fanOutInvocationPolicy keeps fan-out branches fire-and-forget.
func fanOutInvocationPolicy() Policy {
	return Policy{
		Name:        "fanout-invocation",
		Description: "Fan-out branches must be dispatched as Event invocations",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"workflow"},
		Rego: `package vpclambda.policies.fanout

import rego.v1

deny contains violation if {
	input.definition.reportInvocation != "Event"
	violation := {
		"message": sprintf("fan-out branches must use Event invocations, got %s", [input.definition.reportInvocation]),
		"field": "definition.reportInvocation",
	}
}`,
	}
}

// lookupEndpointPolicy flags plain-text lookups.
func lookupEndpointPolicy() Policy {
	return Policy{
		Name:        "lookup-endpoint-https",
		Description: "The address lookup endpoint should use HTTPS",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"network"},
		Rego: `package vpclambda.policies.lookup_endpoint

import rego.v1

deny contains violation if {
	endpoint := input.config.lookup.endpoint
	not startswith(endpoint, "https://")
	violation := {
		"message": sprintf("lookup endpoint %s is not HTTPS", [endpoint]),
		"field": "lookup.endpoint",
	}
}`,
	}
}

// arrayLengthPolicy bounds how many invocations one execution may fan out.
func arrayLengthPolicy() Policy {
	return Policy{
		Name:        "array-length-bound",
		Description: "maxArrayLength must stay within the fan-out budget of one execution",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"workflow", "cost"},
		Rego: `package vpclambda.policies.array_length

import rego.v1

max_length := 10000

deny contains violation if {
	input.config.maxArrayLength > max_length
	violation := {
		"message": sprintf("maxArrayLength %d exceeds %d invocations per execution", [input.config.maxArrayLength, max_length]),
		"field": "maxArrayLength",
	}
}`,
	}
}

// lookupTimeoutPolicy keeps the lookup within a short function timeout.
func lookupTimeoutPolicy() Policy {
	return Policy{
		Name:        "lookup-timeout",
		Description: "Lookup timeouts above 30 seconds keep reporter instances alive for long",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"network", "cost"},
		Rego: `package vpclambda.policies.lookup_timeout

import rego.v1

deny contains violation if {
	input.config.lookup.timeoutSeconds > 30
	violation := {
		"message": sprintf("lookup timeout of %ds is above 30s", [input.config.lookup.timeoutSeconds]),
		"field": "lookup.timeoutSeconds",
	}
}`,
	}
}

// productionTracingPolicy asks for a trace exporter in production.
func productionTracingPolicy() Policy {
	return Policy{
		Name:        "production-tracing",
		Description: "Production deployments should export traces",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"observability"},
		Rego: `package vpclambda.policies.tracing

import rego.v1

tracing_enabled if {
	exporter := input.config.telemetry.tracingExporter
	exporter != "none"
}

deny contains violation if {
	input.context.environment == "production"
	not tracing_enabled
	violation := {
		"message": "production deployments should set telemetry.tracingExporter",
		"field": "telemetry.tracingExporter",
	}
}`,
	}
}
