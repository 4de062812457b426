// Package engine provides the core types and the sequencer for the vpclambda
// reporting workflow.
//
// # Overview
//
// The workflow is a fixed three-state machine:
//
//  1. BuildArray - invoke ArrayBuilder with the execution input's number and
//     wait for the sequence [1..n]
//  2. FanOutReport - dispatch one IpReporter invocation per element as a
//     fire-and-forget event, with unbounded concurrency by default
//  3. Succeed - terminal state; the output is the list of dispatch status codes
//
// A failure in either task state moves the execution to Failed. Reporting
// failures that happen after an event was accepted never reach the sequencer.
//
// # Core Domain Types
//
//   - Definition: the workflow wiring (function names, reference paths,
//     concurrency and branch invocation type)
//   - Execution: one run with its status, transitions and output
//   - NumberRequest / NumberSequence: the ArrayBuilder contract
//   - IPRequest / IPReport: the IpReporter contract
//   - Error: a classified failure (validation, network or unhandled)
//
// # Invokers
//
// The sequencer never calls work units directly. It hands every invocation to
// an Invoker:
//
//	type Invoker interface {
//	    Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error)
//	}
//
// For InvocationEvent an invoker returns as soon as the invocation is accepted.
// Package invoke provides an in-process implementation and one backed by the
// managed function service.
//
// # Example
//
//	def := engine.DefaultDefinition("CreateArray", "GetMyGlobalIP")
//	seq, err := engine.NewSequencer(def, invoker)
//	if err != nil {
//	    return err
//	}
//	exec, err := seq.Start(ctx, json.RawMessage(`{"numberForInputMap": 3}`))
//	// exec.Output == [202,202,202]
//
// The same Definition renders as Amazon States Language through MarshalASL,
// so local runs and deployed state machines share one source of wiring.
package engine
