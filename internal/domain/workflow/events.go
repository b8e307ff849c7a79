package workflow

import "time"

// EventType identifies a domain event emitted by a successful transition
type EventType string

const (
	EventWorkflowSubmitted    EventType = "workflow.submitted"
	EventStepApproved         EventType = "step.approved"
	EventStepRejected         EventType = "step.rejected"
	EventStepChangesRequested EventType = "step.changes_requested"
	EventWorkflowResubmitted  EventType = "workflow.resubmitted"
	EventWorkflowCompleted    EventType = "workflow.completed"
	EventWorkflowRejected     EventType = "workflow.rejected"
	EventWorkflowCancelled    EventType = "workflow.cancelled"
)

// String returns the string representation of the event type
func (t EventType) String() string {
	return string(t)
}

// Event is an immutable fact produced by the state machine. Events are only
// emitted for accepted actions; a rejected action produces none.
type Event struct {
	Type       EventType      `json:"type"`
	InstanceID string         `json:"instance_id"`
	StepID     string         `json:"step_id,omitempty"`
	Actor      string         `json:"actor"`
	FromStatus InstanceStatus `json:"from_status"`
	ToStatus   InstanceStatus `json:"to_status"`
	Timestamp  time.Time      `json:"timestamp"`
}
