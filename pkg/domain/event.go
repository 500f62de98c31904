package domain

import "time"

// TopicRunEvents is the event bus topic for run and node lifecycle events
const TopicRunEvents = "run.events"

// EventType identifies a lifecycle event
type EventType string

const (
	EventTypeRunStarted    EventType = "run.started"
	EventTypeRunCompleted  EventType = "run.completed"
	EventTypeNodeStarted   EventType = "node.started"
	EventTypeNodeRetrying  EventType = "node.retrying"
	EventTypeNodeSucceeded EventType = "node.succeeded"
	EventTypeNodeFailed    EventType = "node.failed"
	EventTypeNodeSkipped   EventType = "node.skipped"
)

// Event describes a change in a run
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	NodeID    string                 `json:"node_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
