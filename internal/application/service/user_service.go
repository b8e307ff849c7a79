package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/domain/identity"
	"github.com/approvalflow/engine/pkg/utils"
)

// UserService manages the collaborators known to the engine. Actions are
// attributed to user ids carried in the request context; this service is
// how those ids come to exist.
type UserService interface {
	Register(ctx context.Context, tenantID, name, email string, role identity.Role) (*identity.User, error)
	Get(ctx context.Context, tenantID, id string) (*identity.User, error)
}

type userServiceImpl struct {
	userRepo port.UserRepository
	logger   Logger
	now      func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(userRepo port.UserRepository, logger Logger) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates a new collaborator within a tenant
func (s *userServiceImpl) Register(ctx context.Context, tenantID, name, email string, role identity.Role) (*identity.User, error) {
	if role == "" {
		role = identity.RoleMember
	}
	if email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	user := &identity.User{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "tenant_id", tenantID)
	return user, nil
}

// Get resolves a collaborator by id. Users from other tenants are reported
// as not found.
func (s *userServiceImpl) Get(ctx context.Context, tenantID, id string) (*identity.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil || user.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return user, nil
}
