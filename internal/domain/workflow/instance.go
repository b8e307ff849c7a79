package workflow

import (
	"time"

	"github.com/google/uuid"
)

// InstanceStatus is the lifecycle status of a workflow instance
type InstanceStatus string

const (
	InstanceStatusDraft            InstanceStatus = "draft"
	InstanceStatusPending          InstanceStatus = "pending"
	InstanceStatusInProgress       InstanceStatus = "in_progress"
	InstanceStatusApproved         InstanceStatus = "approved"
	InstanceStatusRejected         InstanceStatus = "rejected"
	InstanceStatusCancelled        InstanceStatus = "cancelled"
	InstanceStatusChangesRequested InstanceStatus = "changes_requested"
)

// String returns the string representation of the status
func (s InstanceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further mutation is permitted
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case InstanceStatusApproved, InstanceStatusRejected, InstanceStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid returns true if the status is one of the defined constants
func (s InstanceStatus) IsValid() bool {
	switch s {
	case InstanceStatusDraft, InstanceStatusPending, InstanceStatusInProgress,
		InstanceStatusApproved, InstanceStatusRejected, InstanceStatusCancelled,
		InstanceStatusChangesRequested:
		return true
	default:
		return false
	}
}

// StepStatus is the runtime status of a step instance
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
)

// String returns the string representation of the status
func (s StepStatus) String() string {
	return string(s)
}

// StepDecision records how an active step was resolved
type StepDecision string

const (
	StepDecisionNone             StepDecision = ""
	StepDecisionApproved         StepDecision = "approved"
	StepDecisionRejected         StepDecision = "rejected"
	StepDecisionChangesRequested StepDecision = "changes_requested"
)

// StepInstance is the runtime realization of an approval StepSpec within one
// instance. Step instances are owned exclusively by the instance and mutated
// only through Apply.
type StepInstance struct {
	ID          string       `json:"id"`
	SpecID      string       `json:"spec_id"`
	Name        string       `json:"name"`
	Version     int64        `json:"version"`
	Status      StepStatus   `json:"status"`
	Assignee    string       `json:"assignee,omitempty"`
	Decision    StepDecision `json:"decision,omitempty"`
	Comment     string       `json:"comment,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Instance is one concrete execution of a published definition
type Instance struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	DefinitionID  string         `json:"definition_id"`
	DisplayNumber int64          `json:"display_number"`
	Title         string         `json:"title"`
	Version       int64          `json:"version"`
	Status        InstanceStatus `json:"status"`
	FormData      map[string]any `json:"form_data,omitempty"`
	InitiatedBy   string         `json:"initiated_by"`
	CurrentStepID string         `json:"current_step_id,omitempty"`
	Steps         []StepInstance `json:"steps"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewInstance creates a draft instance for a published definition. The
// display number is allocated per tenant by the persistence layer.
func NewInstance(tenantID, definitionID string, displayNumber int64, title string, formData map[string]any, initiatedBy string, now time.Time) *Instance {
	return &Instance{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		DefinitionID:  definitionID,
		DisplayNumber: displayNumber,
		Title:         title,
		Version:       1,
		Status:        InstanceStatusDraft,
		FormData:      formData,
		InitiatedBy:   initiatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy of the instance. Apply mutates a clone so a
// rejected action leaves the caller's snapshot untouched.
func (in *Instance) Clone() *Instance {
	out := *in
	out.Steps = make([]StepInstance, len(in.Steps))
	copy(out.Steps, in.Steps)
	if in.FormData != nil {
		out.FormData = make(map[string]any, len(in.FormData))
		for k, v := range in.FormData {
			out.FormData[k] = v
		}
	}
	return &out
}

// stepBySpecID returns a pointer to the step instance realized from the given
// spec id. When the spec was realized more than once (changes-requested
// loops), the latest realization wins.
func (in *Instance) stepBySpecID(specID string) *StepInstance {
	for i := len(in.Steps) - 1; i >= 0; i-- {
		if in.Steps[i].SpecID == specID {
			return &in.Steps[i]
		}
	}
	return nil
}

// ActiveStep returns the currently active step instance, if any
func (in *Instance) ActiveStep() *StepInstance {
	for i := range in.Steps {
		if in.Steps[i].Status == StepStatusActive {
			return &in.Steps[i]
		}
	}
	return nil
}
