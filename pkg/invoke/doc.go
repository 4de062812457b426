// Package invoke provides engine.Invoker implementations.
//
// LocalInvoker runs registered handlers in-process and emulates the managed
// service's dispatch semantics: request/response calls block, event calls run
// on a detached goroutine and return 202 at once. LambdaInvoker calls deployed
// functions through the AWS SDK, and StateMachineClient starts and watches
// executions of the deployed state machine.
package invoke
