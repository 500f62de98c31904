package domain

import "time"

// RunStatus is the overall status of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the run has finished
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusPartial || s == RunStatusFailed
}

// NodeState is the state of a node within a run
type NodeState string

const (
	NodeStatePending   NodeState = "pending"
	NodeStateSucceeded NodeState = "succeeded"
	NodeStateFailed    NodeState = "failed"
)

// NodeOutcome is the terminal outcome recorded for a node
type NodeOutcome struct {
	State    NodeState     `json:"state"`
	Output   interface{}   `json:"output,omitempty"`
	Error    *ErrorSummary `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration_ns"`
}

// RunResult is produced once per run and never modified afterwards
type RunResult struct {
	RunID       string                 `json:"run_id"`
	Status      RunStatus              `json:"status"`
	Result      map[string]interface{} `json:"result"`
	Error       *ErrorSummary          `json:"error"`
	Nodes       map[string]NodeOutcome `json:"nodes,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
}

// RunRecord is the persisted view of a run, including runs still in progress
type RunRecord struct {
	RunResult
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewRunningRecord creates the record of a run that has been accepted but not finished
func NewRunningRecord(runID string) *RunRecord {
	return &RunRecord{
		RunResult: RunResult{
			RunID:  runID,
			Status: RunStatusRunning,
		},
		SubmittedAt: time.Now(),
	}
}
