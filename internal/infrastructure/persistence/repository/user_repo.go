package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/domain/identity"
	"go.uber.org/zap"
)

// UserRepository implements port.UserRepository on sqlite
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	query := `
		SELECT id, tenant_id, name, email, role, created_at
		FROM users
		WHERE id = ?
	`
	var user identity.User
	var role string
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.TenantID,
		&user.Name,
		&user.Email,
		&role,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Role = identity.Role(role)
	return &user, nil
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	query := `
		INSERT INTO users (id, tenant_id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		user.ID,
		user.TenantID,
		user.Name,
		user.Email,
		string(user.Role),
		user.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
