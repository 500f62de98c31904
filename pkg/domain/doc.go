// Package domain holds the data model shared by the orchestrator, the adapters and the APIs.
//
// It defines:
//   - Graph specifications (nodes, edges, agent and tool configuration)
//   - Input expressions (literal values, references to other nodes' outputs, templates)
//   - Run results, run records and per-node outcomes
//   - The error taxonomy used to report validation, resolution and node failures
//   - Run and node lifecycle events
package domain
