// Package workers implements the worker pool for asynchronous runs.
//
// The worker pool manages a fixed number of goroutines that:
//   - Take submitted runs from a bounded queue
//   - Execute them through the orchestrator manager
//   - Store the running and final run records in the run store
//
// The health monitor tracks worker status, exports pool metrics and
// notifies listeners (the gRPC health service) when health changes.
package workers
