// Package handlers implements the two work units of the workflow.
//
// ArrayBuilder turns a number n into the sequence [1..n]. IPReporter looks up
// the public address of the network it runs in and writes one record for the
// id it was given. Both expose a typed entry point for in-process callers and
// a HandleJSON entry point matching engine.HandlerFunc for invokers and the
// Lambda runtime.
package handlers
