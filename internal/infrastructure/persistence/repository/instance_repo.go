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

// InstanceRepository implements port.InstanceRepository on sqlite. Writes are
// guarded by the instance version column: SaveIfVersion is the only mutation
// path and refuses to overwrite a row another writer advanced first.
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

// Create inserts a new draft instance
func (r *InstanceRepository) Create(ctx context.Context, instance *workflow.Instance) error {
	formJSON, err := marshalFormData(instance.FormData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_instances (
			id, tenant_id, definition_id, display_number, title, version,
			status, form_data, initiated_by, current_step_id,
			submitted_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		instance.ID,
		instance.TenantID,
		instance.DefinitionID,
		instance.DisplayNumber,
		instance.Title,
		instance.Version,
		string(instance.Status),
		formJSON,
		instance.InitiatedBy,
		instance.CurrentStepID,
		instance.SubmittedAt,
		instance.CompletedAt,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}
	return nil
}

// GetByID retrieves an instance with its step rows
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*workflow.Instance, error) {
	query := `
		SELECT id, tenant_id, definition_id, display_number, title, version,
			status, form_data, initiated_by, current_step_id,
			submitted_at, completed_at, created_at, updated_at
		FROM workflow_instances
		WHERE tenant_id = ? AND id = ?
	`
	instance, err := scanInstance(getExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	steps, err := r.loadSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	instance.Steps = steps
	return instance, nil
}

// SaveIfVersion persists the instance only when the stored row still holds
// expectedVersion. The instance row is the compare-and-swap; the step rows
// are rewritten under the same transaction once the swap succeeds.
func (r *InstanceRepository) SaveIfVersion(ctx context.Context, instance *workflow.Instance, expectedVersion int64) (bool, error) {
	formJSON, err := marshalFormData(instance.FormData)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE workflow_instances
		SET title = ?, version = ?, status = ?, form_data = ?, current_step_id = ?,
			submitted_at = ?, completed_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND version = ?
	`
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		instance.Title,
		instance.Version,
		string(instance.Status),
		formJSON,
		instance.CurrentStepID,
		instance.SubmittedAt,
		instance.CompletedAt,
		instance.UpdatedAt,
		instance.TenantID,
		instance.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to save instance", zap.String("id", instance.ID), zap.Error(err))
		return false, fmt.Errorf("failed to save instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := r.rewriteSteps(ctx, instance); err != nil {
		return false, err
	}
	return true, nil
}

// List retrieves a tenant's instances, newest first
func (r *InstanceRepository) List(ctx context.Context, tenantID string, status workflow.InstanceStatus, limit, offset int) ([]*workflow.Instance, error) {
	query := `
		SELECT id, tenant_id, definition_id, display_number, title, version,
			status, form_data, initiated_by, current_step_id,
			submitted_at, completed_at, created_at, updated_at
		FROM workflow_instances
		WHERE tenant_id = ? AND (? = '' OR status = ?)
		ORDER BY display_number DESC
		LIMIT ? OFFSET ?
	`
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, string(status), string(status), limit, offset)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*workflow.Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Listing keeps the step rows out; GetByID hydrates them.
	return instances, nil
}

// NextDisplayNumber allocates the next per-tenant instance number
func (r *InstanceRepository) NextDisplayNumber(ctx context.Context, tenantID string) (int64, error) {
	query := `
		INSERT INTO display_counters (tenant_id, next_number) VALUES (?, 1)
		ON CONFLICT(tenant_id) DO UPDATE SET next_number = next_number + 1
		RETURNING next_number
	`
	var number int64
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID).Scan(&number); err != nil {
		r.logger.Error("Failed to allocate display number", zap.String("tenant_id", tenantID), zap.Error(err))
		return 0, fmt.Errorf("failed to allocate display number: %w", err)
	}
	return number, nil
}

func (r *InstanceRepository) loadSteps(ctx context.Context, instanceID string) ([]workflow.StepInstance, error) {
	query := `
		SELECT id, spec_id, name, version, status, assignee, decision, comment,
			started_at, completed_at
		FROM workflow_steps
		WHERE instance_id = ?
		ORDER BY position
	`
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to load steps", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	defer rows.Close()

	var steps []workflow.StepInstance
	for rows.Next() {
		var step workflow.StepInstance
		var status, decision string
		var startedAt, completedAt sql.NullTime

		err := rows.Scan(
			&step.ID,
			&step.SpecID,
			&step.Name,
			&step.Version,
			&status,
			&step.Assignee,
			&decision,
			&step.Comment,
			&startedAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Status = workflow.StepStatus(status)
		step.Decision = workflow.StepDecision(decision)
		if startedAt.Valid {
			step.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			step.CompletedAt = &completedAt.Time
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (r *InstanceRepository) rewriteSteps(ctx context.Context, instance *workflow.Instance) error {
	exec := getExecutor(ctx, r.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM workflow_steps WHERE instance_id = ?`, instance.ID); err != nil {
		return fmt.Errorf("failed to clear steps: %w", err)
	}

	query := `
		INSERT INTO workflow_steps (
			id, instance_id, spec_id, name, version, status, assignee,
			decision, comment, started_at, completed_at, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, step := range instance.Steps {
		_, err := exec.ExecContext(ctx, query,
			step.ID,
			instance.ID,
			step.SpecID,
			step.Name,
			step.Version,
			string(step.Status),
			step.Assignee,
			string(step.Decision),
			step.Comment,
			step.StartedAt,
			step.CompletedAt,
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step: %w", err)
		}
	}
	return nil
}

func scanInstance(row rowScanner) (*workflow.Instance, error) {
	var instance workflow.Instance
	var status, formJSON string
	var submittedAt, completedAt sql.NullTime

	err := row.Scan(
		&instance.ID,
		&instance.TenantID,
		&instance.DefinitionID,
		&instance.DisplayNumber,
		&instance.Title,
		&instance.Version,
		&status,
		&formJSON,
		&instance.InitiatedBy,
		&instance.CurrentStepID,
		&submittedAt,
		&completedAt,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.Status = workflow.InstanceStatus(status)
	if submittedAt.Valid {
		instance.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}
	if formJSON != "" {
		if err := json.Unmarshal([]byte(formJSON), &instance.FormData); err != nil {
			return nil, fmt.Errorf("unmarshal form data: %w", err)
		}
	}
	return &instance, nil
}

func marshalFormData(data map[string]interface{}) (string, error) {
	if data == nil {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal form data: %w", err)
	}
	return string(b), nil
}

var _ port.InstanceRepository = (*InstanceRepository)(nil)
