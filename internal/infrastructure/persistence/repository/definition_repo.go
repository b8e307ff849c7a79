package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/domain/workflow"
	"go.uber.org/zap"
)

// DefinitionRepository implements port.DefinitionRepository on sqlite. The
// graph is stored as a JSON column; the definition row is the unit of
// consistency.
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

// Create inserts a new definition
func (r *DefinitionRepository) Create(ctx context.Context, def *workflow.Definition) error {
	graphJSON, err := json.Marshal(def.Graph)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (
			id, tenant_id, name, description, version, status, graph,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		def.ID,
		def.TenantID,
		def.Name,
		def.Description,
		def.Version,
		string(def.Status),
		string(graphJSON),
		def.CreatedBy,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create definition", zap.String("id", def.ID), zap.Error(err))
		return fmt.Errorf("failed to create definition: %w", err)
	}
	return nil
}

// GetByID retrieves a definition scoped to a tenant
func (r *DefinitionRepository) GetByID(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
	query := `
		SELECT id, tenant_id, name, description, version, status, graph,
			created_by, created_at, updated_at
		FROM workflow_definitions
		WHERE tenant_id = ? AND id = ?
	`
	def, err := scanDefinition(getExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get definition", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return def, nil
}

// Update persists the full definition row
func (r *DefinitionRepository) Update(ctx context.Context, def *workflow.Definition) error {
	graphJSON, err := json.Marshal(def.Graph)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	query := `
		UPDATE workflow_definitions
		SET name = ?, description = ?, version = ?, status = ?, graph = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`
	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		def.Name,
		def.Description,
		def.Version,
		string(def.Status),
		string(graphJSON),
		def.UpdatedAt,
		def.TenantID,
		def.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update definition", zap.String("id", def.ID), zap.Error(err))
		return fmt.Errorf("failed to update definition: %w", err)
	}
	return nil
}

// List retrieves a tenant's definitions, newest first
func (r *DefinitionRepository) List(ctx context.Context, tenantID string, status workflow.DefinitionStatus, limit, offset int) ([]*workflow.Definition, error) {
	query := `
		SELECT id, tenant_id, name, description, version, status, graph,
			created_by, created_at, updated_at
		FROM workflow_definitions
		WHERE tenant_id = ? AND (? = '' OR status = ?)
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, string(status), string(status), limit, offset)
	if err != nil {
		r.logger.Error("Failed to list definitions", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*workflow.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row rowScanner) (*workflow.Definition, error) {
	var def workflow.Definition
	var status, graphJSON string

	err := row.Scan(
		&def.ID,
		&def.TenantID,
		&def.Name,
		&def.Description,
		&def.Version,
		&status,
		&graphJSON,
		&def.CreatedBy,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.Status = workflow.DefinitionStatus(status)
	var graph workflow.Graph
	if err := json.Unmarshal([]byte(graphJSON), &graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	def.Graph = workflow.NewGraph(graph.Steps, graph.Transitions)
	return &def, nil
}

var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
