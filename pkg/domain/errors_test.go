package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindRetryable(t *testing.T) {
	assert.True(t, KindAgentFailure.Retryable())
	assert.True(t, KindToolFailure.Retryable())
	assert.True(t, KindTimeout.Retryable())
	assert.False(t, KindUnknownAgent.Retryable())
	assert.False(t, KindUnknownTool.Retryable())
	assert.False(t, KindMissingPath.Retryable())
	assert.False(t, KindSkipped.Retryable())
}

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	nodeErr := &NodeError{Kind: KindTimeout, NodeID: "a", Message: "timed out", Err: cause}

	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("wrapped: %w", nodeErr)))
	assert.Equal(t, KindMissingPath, KindOf(&ResolutionError{Kind: KindMissingPath}))
	assert.Equal(t, KindCycleDetected, KindOf(&ValidationError{Kind: KindCycleDetected}))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
	assert.ErrorIs(t, nodeErr, cause)
}

func TestSummarize(t *testing.T) {
	assert.Nil(t, Summarize("a", nil))

	s := Summarize("a", errors.New("plain"))
	assert.Equal(t, &ErrorSummary{Kind: KindAgentFailure, Message: "plain", NodeID: "a"}, s)

	s = Summarize("", &ResolutionError{Kind: KindUnsatisfiedDependency, NodeID: "c", Input: "x", Message: "referenced node a is failed"})
	assert.Equal(t, KindUnsatisfiedDependency, s.Kind)
	assert.Equal(t, "c", s.NodeID)
	assert.Equal(t, `input "x": referenced node a is failed`, s.Message)

	s = Summarize("", &ValidationError{Kind: KindEmptyGraph, Message: "graph has no nodes"})
	assert.Equal(t, "EmptyGraph: graph has no nodes", s.String())
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.True(t, RunStatusSucceeded.IsTerminal())
	assert.True(t, RunStatusPartial.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
}
