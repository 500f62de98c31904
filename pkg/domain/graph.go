package domain

import (
	"math"
	"time"
)

const (
	// DefaultNodeTimeout applies when a node does not declare timeout_seconds
	DefaultNodeTimeout = 20 * time.Second
	// DefaultMaxRetries applies when a node does not declare max_retries
	DefaultMaxRetries = 2
)

// ToolStage controls when a tool runs relative to its agent
type ToolStage string

const (
	// ToolStageOnDemand binds the tool for the agent to call while it executes
	ToolStageOnDemand ToolStage = "on_demand"
	// ToolStageBefore runs the tool before the agent and threads its output into the inputs
	ToolStageBefore ToolStage = "before"
)

// ToolConfig references a tool by name with its configuration
type ToolConfig struct {
	Name   string                 `json:"name" yaml:"name" validate:"required"`
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
	Stage  ToolStage              `json:"stage,omitempty" yaml:"stage,omitempty" validate:"omitempty,oneof=on_demand before"`
}

// AgentConfig references the agent a node invokes
type AgentConfig struct {
	Name   string                 `json:"name" yaml:"name" validate:"required"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	Tools  []ToolConfig           `json:"tools,omitempty" yaml:"tools,omitempty" validate:"dive"`
}

// NodeSpec declares one unit of work in a graph
type NodeSpec struct {
	ID             string                `json:"id" yaml:"id" validate:"required,nodeid"`
	Agent          AgentConfig           `json:"agent" yaml:"agent"`
	Inputs         map[string]InputValue `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	TimeoutSeconds float64               `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	MaxRetries     *int                  `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"omitempty,gte=0"`
}

// Timeout returns the per-attempt timeout, or def when the node declares none
func (n *NodeSpec) Timeout(def time.Duration) time.Duration {
	if n.TimeoutSeconds <= 0 {
		return def
	}
	// Saturate instead of overflowing into a negative duration
	if n.TimeoutSeconds >= float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(n.TimeoutSeconds * float64(time.Second))
}

// Retries returns the number of retries after the first attempt
func (n *NodeSpec) Retries(def int) int {
	if n.MaxRetries == nil {
		return def
	}
	return *n.MaxRetries
}

// EdgeSpec declares that Target depends on Source
type EdgeSpec struct {
	Source string `json:"source" yaml:"source" validate:"required"`
	Target string `json:"target" yaml:"target" validate:"required"`
}

// GraphSpec is a user-submitted graph of nodes and dependency edges
type GraphSpec struct {
	Nodes []NodeSpec `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges []EdgeSpec `json:"edges,omitempty" yaml:"edges,omitempty" validate:"dive"`
}
