// Package policy evaluates Rego guardrails against a vpclambda configuration
// and the workflow definition derived from it.
//
// Each policy is a Rego module whose package defines a deny set. Entries are
// either strings or objects:
//
//	package vpclambda.policies.example
//
//	import rego.v1
//
//	deny contains violation if {
//		input.config.maxConcurrency == 1
//		violation := {
//			"message": "serial fan-out",
//			"severity": "warning",
//			"field": "maxConcurrency",
//		}
//	}
//
// The input document has three members: config (the resolved configuration),
// definition (its workflow wiring) and context (target environment and
// operation). Violations with error or critical severity make the result
// disallowed; the rest are reported as warnings.
//
// Built-in policies keep the fan-out fire-and-forget, bound maxArrayLength,
// and flag plain-HTTP lookups, long lookup timeouts and untraced production
// deployments. Additional policies load from .rego or .json files; a .rego
// file's leading comments become its description and a "# severity: error"
// line sets its default severity.
package policy
