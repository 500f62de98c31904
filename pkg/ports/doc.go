// Package ports defines the interfaces between the orchestrator and its collaborators:
// agents, tools and the registry that names them, run storage, the event bus and metrics.
package ports
