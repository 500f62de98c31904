// Package orchestrator implements the core orchestration logic for graph execution.
//
// A run proceeds as follows:
//   - The graph is validated and split into topological layers
//   - Layers execute strictly in order; nodes inside a layer run concurrently,
//     bounded by the run's concurrency limit
//   - Each node resolves its inputs from the outputs of completed nodes, invokes its
//     agent with a per-attempt timeout and retries failed attempts with exponential backoff
//   - Nodes depending on a failed node are skipped without execution
//   - Outcomes are aggregated into a RunResult
//
// A timed-out attempt is abandoned, not stopped: the agent's context is cancelled but
// the executor does not wait for the agent to return. Agents are expected to honor
// their context.
package orchestrator
