package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
)

// ErrOutcomeRecorded is returned when a node's outcome is written twice
var ErrOutcomeRecorded = errors.New("node outcome already recorded")

// RunContext stores the terminal outcome of each node of one run.
// Writers for distinct nodes may run concurrently; each node is written once.
type RunContext struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// entry keeps the encoded output next to the outcome for path lookups
type entry struct {
	outcome domain.NodeOutcome
	encoded []byte
}

// NewRunContext creates an empty run context
func NewRunContext() *RunContext {
	return &RunContext{
		entries: make(map[string]*entry),
	}
}

// Succeed records a successful outcome. The output must be JSON-encodable.
func (rc *RunContext) Succeed(nodeID string, output interface{}, attempts int, duration time.Duration) error {
	encoded, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode output of node %s: %w", nodeID, err)
	}

	return rc.store(nodeID, &entry{
		outcome: domain.NodeOutcome{
			State:    domain.NodeStateSucceeded,
			Output:   output,
			Attempts: attempts,
			Duration: duration,
		},
		encoded: encoded,
	})
}

// Fail records a failed outcome
func (rc *RunContext) Fail(nodeID string, cause error, attempts int, duration time.Duration) error {
	return rc.store(nodeID, &entry{
		outcome: domain.NodeOutcome{
			State:    domain.NodeStateFailed,
			Error:    domain.Summarize(nodeID, cause),
			Attempts: attempts,
			Duration: duration,
		},
	})
}

func (rc *RunContext) store(nodeID string, e *entry) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if _, exists := rc.entries[nodeID]; exists {
		return fmt.Errorf("%w: %s", ErrOutcomeRecorded, nodeID)
	}
	rc.entries[nodeID] = e
	return nil
}

// Outcome returns the outcome of a node; nodes without an outcome are pending
func (rc *RunContext) Outcome(nodeID string) domain.NodeOutcome {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	if e, ok := rc.entries[nodeID]; ok {
		return e.outcome
	}
	return domain.NodeOutcome{State: domain.NodeStatePending}
}

func (rc *RunContext) lookup(nodeID string) (*entry, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	e, ok := rc.entries[nodeID]
	return e, ok
}

// Snapshot copies all recorded outcomes
func (rc *RunContext) Snapshot() map[string]domain.NodeOutcome {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	outcomes := make(map[string]domain.NodeOutcome, len(rc.entries))
	for id, e := range rc.entries {
		outcomes[id] = e.outcome
	}
	return outcomes
}

// Result aggregates the outcomes of a finished run
func (rc *RunContext) Result(runID string, g *Graph, startedAt time.Time) *domain.RunResult {
	outcomes := rc.Snapshot()

	result := &domain.RunResult{
		RunID:       runID,
		Result:      make(map[string]interface{}),
		Nodes:       outcomes,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}

	var firstFailure, firstSkip *domain.ErrorSummary
	succeeded := 0
	for _, layer := range g.Layers() {
		for _, id := range layer {
			outcome := outcomes[id]
			switch outcome.State {
			case domain.NodeStateSucceeded:
				result.Result[id] = outcome.Output
				succeeded++
			case domain.NodeStateFailed:
				if outcome.Error == nil {
					continue
				}
				if outcome.Error.Kind == domain.KindSkipped {
					if firstSkip == nil {
						firstSkip = outcome.Error
					}
				} else if firstFailure == nil {
					firstFailure = outcome.Error
				}
			}
		}
	}

	switch {
	case succeeded == g.Len():
		result.Status = domain.RunStatusSucceeded
	case succeeded == 0:
		result.Status = domain.RunStatusFailed
	default:
		result.Status = domain.RunStatusPartial
	}

	if firstFailure != nil {
		result.Error = firstFailure
	} else if result.Status != domain.RunStatusSucceeded {
		result.Error = firstSkip
	}

	return result
}
