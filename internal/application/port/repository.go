package port

import (
	"context"

	"github.com/approvalflow/engine/internal/domain/audit"
	"github.com/approvalflow/engine/internal/domain/identity"
	"github.com/approvalflow/engine/internal/domain/workflow"
)

// DefinitionRepository defines persistence operations for workflow definitions
type DefinitionRepository interface {
	Create(ctx context.Context, def *workflow.Definition) error

	// GetByID retrieves a definition scoped to a tenant
	GetByID(ctx context.Context, tenantID, id string) (*workflow.Definition, error)

	// Update persists the full definition row, including graph and status
	Update(ctx context.Context, def *workflow.Definition) error

	// List retrieves a tenant's definitions, optionally filtered by status.
	// An empty status means all statuses.
	List(ctx context.Context, tenantID string, status workflow.DefinitionStatus, limit, offset int) ([]*workflow.Definition, error)
}

// InstanceRepository defines persistence operations for workflow instances.
// Instances are written optimistically: every mutation goes through
// SaveIfVersion so concurrent writers cannot silently overwrite each other.
type InstanceRepository interface {
	Create(ctx context.Context, instance *workflow.Instance) error

	// GetByID retrieves an instance with its step rows, scoped to a tenant
	GetByID(ctx context.Context, tenantID, id string) (*workflow.Instance, error)

	// SaveIfVersion persists the instance only if the stored row still holds
	// expectedVersion. It returns false, without error, when another writer
	// got there first.
	SaveIfVersion(ctx context.Context, instance *workflow.Instance, expectedVersion int64) (bool, error)

	// List retrieves a tenant's instances, optionally filtered by status
	List(ctx context.Context, tenantID string, status workflow.InstanceStatus, limit, offset int) ([]*workflow.Instance, error)

	// NextDisplayNumber allocates the next human-facing instance number for a
	// tenant
	NextDisplayNumber(ctx context.Context, tenantID string) (int64, error)
}

// AuditRepository appends and reads the append-only audit log
type AuditRepository interface {
	Append(ctx context.Context, records []audit.Record) error
	ListByResource(ctx context.Context, tenantID, resourceType, resourceID string, limit, offset int) ([]audit.Record, error)
}

// UserRepository resolves collaborators
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
	Create(ctx context.Context, user *identity.User) error
}

// DefinitionCache is a read-through cache for published definitions. Published
// definitions are immutable, so cached copies never go stale; archive
// invalidates.
type DefinitionCache interface {
	Get(ctx context.Context, tenantID, id string) (*workflow.Definition, error)
	Set(ctx context.Context, def *workflow.Definition) error
	Invalidate(ctx context.Context, tenantID, id string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
