package workflow

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefinitionStatus is the lifecycle status of a workflow definition
type DefinitionStatus string

const (
	DefinitionStatusDraft     DefinitionStatus = "draft"
	DefinitionStatusPublished DefinitionStatus = "published"
	DefinitionStatusArchived  DefinitionStatus = "archived"
)

// String returns the string representation of the status
func (s DefinitionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the defined constants
func (s DefinitionStatus) IsValid() bool {
	switch s {
	case DefinitionStatusDraft, DefinitionStatusPublished, DefinitionStatusArchived:
		return true
	default:
		return false
	}
}

var (
	// ErrDefinitionNotDraft is returned when editing anything but a draft
	ErrDefinitionNotDraft = errors.New("only draft definitions can be edited")

	// ErrDefinitionNotPublishable is returned when publishing a non-draft definition
	ErrDefinitionNotPublishable = errors.New("only draft definitions can be published")
)

// Definition is a reusable workflow template: a named, versioned graph of
// steps and transitions. Only drafts may be edited; published definitions are
// immutable and are what instances execute against.
type Definition struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Version     int64            `json:"version"`
	Status      DefinitionStatus `json:"status"`
	Graph       *Graph           `json:"graph"`
	CreatedBy   string           `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewDefinition creates a draft definition with version 1
func NewDefinition(tenantID, name, description, createdBy string, graph *Graph, now time.Time) *Definition {
	return &Definition{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		Version:     1,
		Status:      DefinitionStatusDraft,
		Graph:       graph,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Update replaces the draft's name, description, and graph, bumping the
// definition version. Fails unless the definition is a draft.
func (d *Definition) Update(name, description string, graph *Graph, now time.Time) error {
	if d.Status != DefinitionStatusDraft {
		return ErrDefinitionNotDraft
	}
	d.Name = name
	d.Description = description
	d.Graph = graph
	d.Version++
	d.UpdatedAt = now
	return nil
}

// Publish validates the graph and moves the definition to published. The
// returned validation errors are non-nil exactly when the graph is rejected;
// publish and editor-time validation reject the same graphs.
func (d *Definition) Publish(now time.Time) ([]ValidationError, error) {
	if d.Status != DefinitionStatusDraft {
		return nil, ErrDefinitionNotPublishable
	}
	if errs := Validate(d.Graph); len(errs) > 0 {
		return errs, nil
	}
	d.Status = DefinitionStatusPublished
	d.UpdatedAt = now
	return nil, nil
}

// Archive hides the definition from new instance creation. Archiving is
// always allowed; running instances keep executing against the stored graph.
func (d *Definition) Archive(now time.Time) {
	d.Status = DefinitionStatusArchived
	d.UpdatedAt = now
}
