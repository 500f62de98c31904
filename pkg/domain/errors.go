package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure reported by the orchestrator
type ErrorKind string

const (
	// Validation kinds
	KindEmptyGraph          ErrorKind = "EmptyGraph"
	KindInvalidSpec         ErrorKind = "InvalidSpec"
	KindDuplicateID         ErrorKind = "DuplicateId"
	KindUnknownEdgeEndpoint ErrorKind = "UnknownEdgeEndpoint"
	KindCycleDetected       ErrorKind = "CycleDetected"

	// Resolution kinds
	KindMissingPath           ErrorKind = "MissingPath"
	KindUnsatisfiedDependency ErrorKind = "UnsatisfiedDependency"

	// Node kinds
	KindUnknownAgent ErrorKind = "UnknownAgent"
	KindUnknownTool  ErrorKind = "UnknownTool"
	KindAgentFailure ErrorKind = "AgentFailure"
	KindToolFailure  ErrorKind = "ToolFailure"
	KindTimeout      ErrorKind = "Timeout"
	KindSkipped      ErrorKind = "SkippedDueToDependencyFailure"

	// Run kinds
	KindAborted ErrorKind = "Aborted"
)

// Retryable reports whether a failed attempt of this kind may be retried
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindAgentFailure, KindToolFailure, KindTimeout:
		return true
	default:
		return false
	}
}

// ErrRunNotFound is returned by run stores when no record exists for an id
var ErrRunNotFound = errors.New("run not found")

// ValidationError rejects a graph before any node executes
type ValidationError struct {
	Kind    ErrorKind
	NodeID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("invalid graph (%s) at node %s: %s", e.Kind, e.NodeID, e.Message)
	}
	return fmt.Sprintf("invalid graph (%s): %s", e.Kind, e.Message)
}

// ResolutionError reports an input of a node that could not be resolved
type ResolutionError struct {
	Kind    ErrorKind
	NodeID  string
	Input   string
	Message string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("node %s: cannot resolve input %q (%s): %s", e.NodeID, e.Input, e.Kind, e.Message)
}

// NodeError is the terminal or per-attempt failure of a node
type NodeError struct {
	Kind     ErrorKind
	NodeID   string
	Message  string
	Attempts int
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s): %s", e.NodeID, e.Kind, e.Message)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind carried by err, or "" if err is not a domain error
func KindOf(err error) ErrorKind {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.Kind
	}
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr.Kind
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Kind
	}
	return ""
}

// ErrorSummary is the user-visible description of a failure
type ErrorSummary struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	NodeID  string    `json:"node_id,omitempty"`
}

func (s *ErrorSummary) String() string {
	if s.NodeID == "" {
		return fmt.Sprintf("%s: %s", s.Kind, s.Message)
	}
	return fmt.Sprintf("%s: %s (node %s)", s.Kind, s.Message, s.NodeID)
}

// Summarize converts err into an ErrorSummary, falling back to nodeID when
// the error does not name a node
func Summarize(nodeID string, err error) *ErrorSummary {
	if err == nil {
		return nil
	}

	summary := &ErrorSummary{Kind: KindAgentFailure, Message: err.Error(), NodeID: nodeID}

	var nodeErr *NodeError
	var resErr *ResolutionError
	var valErr *ValidationError
	switch {
	case errors.As(err, &nodeErr):
		summary.Kind, summary.Message = nodeErr.Kind, nodeErr.Message
		if nodeErr.NodeID != "" {
			summary.NodeID = nodeErr.NodeID
		}
	case errors.As(err, &resErr):
		summary.Kind = resErr.Kind
		summary.Message = fmt.Sprintf("input %q: %s", resErr.Input, resErr.Message)
		if resErr.NodeID != "" {
			summary.NodeID = resErr.NodeID
		}
	case errors.As(err, &valErr):
		summary.Kind, summary.Message = valErr.Kind, valErr.Message
		if valErr.NodeID != "" {
			summary.NodeID = valErr.NodeID
		}
	}

	return summary
}
