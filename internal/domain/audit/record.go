// Package audit maps workflow events onto append-only audit records. The
// mapping is pure; persistence belongs to the infrastructure layer.
package audit

import (
	"strings"
	"time"

	"github.com/approvalflow/engine/internal/domain/workflow"
)

// Resource types referenced by audit records
const (
	ResourceWorkflow = "workflow"
	ResourceStep     = "step"
)

// ResultSuccess marks a record produced by an accepted action. Denied actions
// produce no events and therefore no records.
const ResultSuccess = "success"

// Record is one append-only audit entry. Records are never updated or deleted
// once written.
type Record struct {
	ID           int64     `json:"id,omitempty"`
	TenantID     string    `json:"tenant_id"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Result       string    `json:"result"`
	Seq          int       `json:"seq"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// FromEvents converts the events of one applied action into audit records,
// preserving order through Seq. The event type doubles as the audit action
// code; step events point at the step, workflow events at the instance.
func FromEvents(events []workflow.Event, tenantID string) []Record {
	records := make([]Record, 0, len(events))
	for i, e := range events {
		resourceType := ResourceWorkflow
		resourceID := e.InstanceID
		if strings.HasPrefix(string(e.Type), "step.") {
			resourceType = ResourceStep
			resourceID = e.StepID
		}
		records = append(records, Record{
			TenantID:     tenantID,
			Actor:        e.Actor,
			Action:       string(e.Type),
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Result:       ResultSuccess,
			Seq:          i,
			OccurredAt:   e.Timestamp,
		})
	}
	return records
}
