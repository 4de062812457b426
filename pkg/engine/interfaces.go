package engine

import (
	"context"
	"encoding/json"
)

// InvokeRequest describes one function invocation.
type InvokeRequest struct {
	// Function is the function name or ARN.
	Function string

	// Type selects blocking or fire-and-forget dispatch. It is always set
	// explicitly by the caller.
	Type InvocationType

	// Payload is the JSON document passed to the function.
	Payload json.RawMessage
}

// InvokeResult is what the invoker reports back to the caller.
type InvokeResult struct {
	// StatusCode is 200 for completed request/response calls and 202 for
	// accepted events.
	StatusCode int

	// Accepted is true once the invocation has been handed to the function.
	// For event invocations this is all the caller ever learns.
	Accepted bool

	// Payload is the function's response. Always empty for event invocations.
	Payload json.RawMessage
}

// Invoker dispatches function invocations.
//
// Implementations must return from Invoke with InvocationEvent as soon as the
// invocation is accepted and must not propagate failures of the function
// itself for that mode. An error from Invoke means the dispatch was rejected.
type Invoker interface {
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error)
}

// HandlerFunc is a work unit entry point operating on raw JSON payloads.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
