package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/domain/audit"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository on sqlite. The table is
// append-only: no update or delete statements exist here.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append writes a batch of audit records
func (r *AuditRepository) Append(ctx context.Context, records []audit.Record) error {
	query := `
		INSERT INTO audit_logs (
			tenant_id, actor, action, resource_type, resource_id, result, seq, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	exec := getExecutor(ctx, r.db)
	for _, rec := range records {
		_, err := exec.ExecContext(ctx, query,
			rec.TenantID,
			rec.Actor,
			rec.Action,
			rec.ResourceType,
			rec.ResourceID,
			rec.Result,
			rec.Seq,
			rec.OccurredAt,
		)
		if err != nil {
			r.logger.Error("Failed to append audit record", zap.String("action", rec.Action), zap.Error(err))
			return fmt.Errorf("failed to append audit record: %w", err)
		}
	}
	return nil
}

// ListByResource retrieves the audit trail of one resource in emission order
func (r *AuditRepository) ListByResource(ctx context.Context, tenantID, resourceType, resourceID string, limit, offset int) ([]audit.Record, error) {
	query := `
		SELECT id, tenant_id, actor, action, resource_type, resource_id, result, seq, occurred_at
		FROM audit_logs
		WHERE tenant_id = ? AND resource_type = ? AND resource_id = ?
		ORDER BY id
		LIMIT ? OFFSET ?
	`
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, resourceType, resourceID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list audit records", zap.String("resource_id", resourceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var rec audit.Record
		err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.Actor,
			&rec.Action,
			&rec.ResourceType,
			&rec.ResourceID,
			&rec.Result,
			&rec.Seq,
			&rec.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ port.AuditRepository = (*AuditRepository)(nil)
