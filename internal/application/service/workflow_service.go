package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/domain/audit"
	"github.com/approvalflow/engine/internal/domain/workflow"
)

// Recorder counts engine outcomes for monitoring. Implemented by the metrics
// package; tests use NopRecorder.
type Recorder interface {
	ActionApplied(kind string)
	ConflictDetected(kind string)
}

// NopRecorder discards all observations
type NopRecorder struct{}

func (NopRecorder) ActionApplied(string)    {}
func (NopRecorder) ConflictDetected(string) {}

// WorkflowService drives workflow instances: creation, reads, and the
// optimistic-concurrency action path
type WorkflowService interface {
	CreateInstance(ctx context.Context, tenantID, actor, definitionID, title string, formData map[string]interface{}) (*workflow.Instance, error)
	GetInstance(ctx context.Context, tenantID, id string) (*workflow.Instance, error)
	ListInstances(ctx context.Context, tenantID string, status workflow.InstanceStatus, limit, offset int) ([]*workflow.Instance, error)
	ExecuteAction(ctx context.Context, tenantID, instanceID, actor string, act workflow.Action, expectedVersion int64) (*workflow.Instance, error)
	InstanceHistory(ctx context.Context, tenantID, instanceID string, limit, offset int) ([]audit.Record, error)
}

type workflowServiceImpl struct {
	instanceRepo port.InstanceRepository
	defRepo      port.DefinitionRepository
	auditRepo    port.AuditRepository
	cache        port.DefinitionCache
	txManager    port.TransactionManager
	recorder     Recorder
	logger       Logger
	now          func() time.Time
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	instanceRepo port.InstanceRepository,
	defRepo port.DefinitionRepository,
	auditRepo port.AuditRepository,
	cache port.DefinitionCache,
	txManager port.TransactionManager,
	recorder Recorder,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		instanceRepo: instanceRepo,
		defRepo:      defRepo,
		auditRepo:    auditRepo,
		cache:        cache,
		txManager:    txManager,
		recorder:     recorder,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateInstance creates a draft instance of a published definition and
// allocates its tenant-scoped display number.
func (s *workflowServiceImpl) CreateInstance(ctx context.Context, tenantID, actor, definitionID, title string, formData map[string]interface{}) (*workflow.Instance, error) {
	def, err := s.loadPublishedDefinition(ctx, tenantID, definitionID)
	if err != nil {
		return nil, err
	}

	var instance *workflow.Instance
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		number, err := s.instanceRepo.NextDisplayNumber(txCtx, tenantID)
		if err != nil {
			return fmt.Errorf("allocate display number: %w", err)
		}
		instance = workflow.NewInstance(tenantID, def.ID, number, title, formData, actor, s.now())
		if err := s.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create instance", "error", err, "tenant_id", tenantID, "definition_id", definitionID)
		return nil, err
	}

	s.logger.Info("Instance created", "id", instance.ID, "number", instance.DisplayNumber, "definition_id", def.ID)
	return instance, nil
}

// GetInstance retrieves an instance by id
func (s *workflowServiceImpl) GetInstance(ctx context.Context, tenantID, id string) (*workflow.Instance, error) {
	instance, err := s.instanceRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, ErrNotFound
	}
	return instance, nil
}

// ListInstances retrieves a tenant's instances
func (s *workflowServiceImpl) ListInstances(ctx context.Context, tenantID string, status workflow.InstanceStatus, limit, offset int) ([]*workflow.Instance, error) {
	instances, err := s.instanceRepo.List(ctx, tenantID, status, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list instances", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	return instances, nil
}

// ExecuteAction runs one action against an instance under optimistic
// concurrency control: load, check the caller's expected version, apply the
// pure transition, then persist with a single conditional write. A version
// mismatch at either point returns ErrConflict; the caller reloads and
// decides again, the engine never retries.
func (s *workflowServiceImpl) ExecuteAction(ctx context.Context, tenantID, instanceID, actor string, act workflow.Action, expectedVersion int64) (*workflow.Instance, error) {
	instance, err := s.GetInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	if instance.Version != expectedVersion {
		s.recorder.ConflictDetected(act.Kind())
		s.logger.Info("Stale expected version", "instance_id", instanceID, "expected", expectedVersion, "actual", instance.Version)
		return nil, ErrConflict
	}

	def, err := s.loadDefinition(ctx, tenantID, instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	next, events, err := workflow.Apply(instance, def.Graph, act, actor, s.now())
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		saved, err := s.instanceRepo.SaveIfVersion(txCtx, next, expectedVersion)
		if err != nil {
			return fmt.Errorf("save instance: %w", err)
		}
		if !saved {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.recorder.ConflictDetected(act.Kind())
			s.logger.Info("Lost write race", "instance_id", instanceID, "expected", expectedVersion)
		} else {
			s.logger.Error("Failed to persist action", "error", err, "instance_id", instanceID, "action", act.Kind())
		}
		return nil, err
	}

	s.emitAudit(ctx, tenantID, events)
	s.recorder.ActionApplied(act.Kind())
	s.logger.Info("Action applied",
		"instance_id", instanceID,
		"action", act.Kind(),
		"actor", actor,
		"status", next.Status,
		"version", next.Version)
	return next, nil
}

// InstanceHistory returns the audit trail of an instance
func (s *workflowServiceImpl) InstanceHistory(ctx context.Context, tenantID, instanceID string, limit, offset int) ([]audit.Record, error) {
	return s.auditRepo.ListByResource(ctx, tenantID, audit.ResourceWorkflow, instanceID, limit, offset)
}

// emitAudit appends audit records for applied events. The state change is
// already committed; a failing audit write is logged, never surfaced.
func (s *workflowServiceImpl) emitAudit(ctx context.Context, tenantID string, events []workflow.Event) {
	records := audit.FromEvents(events, tenantID)
	if len(records) == 0 {
		return
	}
	if err := s.auditRepo.Append(ctx, records); err != nil {
		s.logger.Error("Failed to append audit records", "error", err, "count", len(records))
	}
}

// loadPublishedDefinition resolves a definition and requires it to be
// published
func (s *workflowServiceImpl) loadPublishedDefinition(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
	def, err := s.loadDefinition(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if def.Status != workflow.DefinitionStatusPublished {
		return nil, ErrDefinitionNotPublished
	}
	return def, nil
}

// loadDefinition reads through the cache. Published definitions are immutable
// so a cache hit never serves stale content; on miss or cache failure the
// repository is authoritative.
func (s *workflowServiceImpl) loadDefinition(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
	cached, err := s.cache.Get(ctx, tenantID, id)
	if err != nil {
		s.logger.Warn("Definition cache read failed", "error", err, "id", id)
	} else if cached != nil {
		return cached, nil
	}

	def, err := s.defRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, ErrNotFound
	}
	if def.Status == workflow.DefinitionStatusPublished {
		if err := s.cache.Set(ctx, def); err != nil {
			s.logger.Warn("Definition cache write failed", "error", err, "id", id)
		}
	}
	return def, nil
}
