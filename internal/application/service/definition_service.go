package service

import (
	"context"
	"fmt"
	"time"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefinitionService manages workflow definitions through their lifecycle
type DefinitionService interface {
	Create(ctx context.Context, tenantID, actor, name, description string, graph *workflow.Graph) (*workflow.Definition, error)
	Get(ctx context.Context, tenantID, id string) (*workflow.Definition, error)
	Update(ctx context.Context, tenantID, id, name, description string, graph *workflow.Graph) (*workflow.Definition, error)
	Validate(ctx context.Context, tenantID, id string) ([]workflow.ValidationError, error)
	Publish(ctx context.Context, tenantID, id string) (*workflow.Definition, []workflow.ValidationError, error)
	Archive(ctx context.Context, tenantID, id string) (*workflow.Definition, error)
	List(ctx context.Context, tenantID string, status workflow.DefinitionStatus, limit, offset int) ([]*workflow.Definition, error)
}

type definitionServiceImpl struct {
	defRepo port.DefinitionRepository
	cache   port.DefinitionCache
	logger  Logger
	now     func() time.Time
}

// NewDefinitionService creates a new DefinitionService
func NewDefinitionService(defRepo port.DefinitionRepository, cache port.DefinitionCache, logger Logger) DefinitionService {
	return &definitionServiceImpl{
		defRepo: defRepo,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// Create stores a new draft definition. Drafts may hold invalid graphs; only
// publish enforces validity.
func (s *definitionServiceImpl) Create(ctx context.Context, tenantID, actor, name, description string, graph *workflow.Graph) (*workflow.Definition, error) {
	def := workflow.NewDefinition(tenantID, name, description, actor, graph, s.now())
	if err := s.defRepo.Create(ctx, def); err != nil {
		s.logger.Error("Failed to create definition", "error", err, "tenant_id", tenantID, "name", name)
		return nil, fmt.Errorf("create definition: %w", err)
	}
	s.logger.Info("Definition created", "id", def.ID, "tenant_id", tenantID, "name", name)
	return def, nil
}

// Get retrieves a definition by id
func (s *definitionServiceImpl) Get(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
	return s.getDefinition(ctx, tenantID, id)
}

// Update replaces a draft definition's content
func (s *definitionServiceImpl) Update(ctx context.Context, tenantID, id, name, description string, graph *workflow.Graph) (*workflow.Definition, error) {
	def, err := s.getDefinition(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := def.Update(name, description, graph, s.now()); err != nil {
		return nil, err
	}
	if err := s.defRepo.Update(ctx, def); err != nil {
		s.logger.Error("Failed to update definition", "error", err, "id", id)
		return nil, fmt.Errorf("update definition: %w", err)
	}
	s.logger.Info("Definition updated", "id", id, "version", def.Version)
	return def, nil
}

// Validate runs the graph validator without changing the definition. It
// reports exactly what publish would reject.
func (s *definitionServiceImpl) Validate(ctx context.Context, tenantID, id string) ([]workflow.ValidationError, error) {
	def, err := s.getDefinition(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return workflow.Validate(def.Graph), nil
}

// Publish validates and publishes a draft. When the graph is invalid the
// validation errors come back and the definition stays a draft.
func (s *definitionServiceImpl) Publish(ctx context.Context, tenantID, id string) (*workflow.Definition, []workflow.ValidationError, error) {
	def, err := s.getDefinition(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}

	verrs, err := def.Publish(s.now())
	if err != nil {
		return nil, nil, err
	}
	if len(verrs) > 0 {
		s.logger.Info("Publish rejected by validation", "id", id, "errors", len(verrs))
		return nil, verrs, nil
	}

	if err := s.defRepo.Update(ctx, def); err != nil {
		s.logger.Error("Failed to publish definition", "error", err, "id", id)
		return nil, nil, fmt.Errorf("publish definition: %w", err)
	}
	if err := s.cache.Set(ctx, def); err != nil {
		// Cache is an optimization; instance creation falls back to the repo.
		s.logger.Warn("Failed to cache published definition", "error", err, "id", id)
	}
	s.logger.Info("Definition published", "id", id, "tenant_id", tenantID)
	return def, nil, nil
}

// Archive hides a definition from new instance creation
func (s *definitionServiceImpl) Archive(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
	def, err := s.getDefinition(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	def.Archive(s.now())
	if err := s.defRepo.Update(ctx, def); err != nil {
		s.logger.Error("Failed to archive definition", "error", err, "id", id)
		return nil, fmt.Errorf("archive definition: %w", err)
	}
	if err := s.cache.Invalidate(ctx, tenantID, id); err != nil {
		s.logger.Warn("Failed to invalidate cached definition", "error", err, "id", id)
	}
	s.logger.Info("Definition archived", "id", id, "tenant_id", tenantID)
	return def, nil
}

// getDefinition loads a definition and maps a missing row to ErrNotFound
func (s *definitionServiceImpl) getDefinition(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
	def, err := s.defRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, ErrNotFound
	}
	return def, nil
}

// List retrieves a tenant's definitions
func (s *definitionServiceImpl) List(ctx context.Context, tenantID string, status workflow.DefinitionStatus, limit, offset int) ([]*workflow.Definition, error) {
	defs, err := s.defRepo.List(ctx, tenantID, status, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list definitions", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	return defs, nil
}
