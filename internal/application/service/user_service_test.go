package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/approvalflow/engine/internal/domain/identity"
)

type mockUserRepo struct {
	getByIDFunc func(ctx context.Context, id string) (*identity.User, error)
	createFunc  func(ctx context.Context, user *identity.User) error
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*identity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *identity.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func TestUserService_Register(t *testing.T) {
	var created *identity.User
	repo := &mockUserRepo{
		createFunc: func(ctx context.Context, user *identity.User) error {
			created = user
			return nil
		},
	}
	svc := NewUserService(repo, nopLogger{})

	user, err := svc.Register(context.Background(), "tenant-1", "Dana", "dana@example.com", identity.RoleAdmin)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == "" {
		t.Error("expected generated user id")
	}
	if user.TenantID != "tenant-1" {
		t.Errorf("expected tenant-1, got %s", user.TenantID)
	}
	if user.Role != identity.RoleAdmin {
		t.Errorf("expected admin role, got %s", user.Role)
	}
	if created == nil || created.ID != user.ID {
		t.Error("expected user to be persisted")
	}
}

func TestUserService_RegisterDefaultsRole(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nopLogger{})

	user, err := svc.Register(context.Background(), "tenant-1", "Dana", "", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Role != identity.RoleMember {
		t.Errorf("expected member role, got %s", user.Role)
	}
}

func TestUserService_RegisterRejectsBadEmail(t *testing.T) {
	svc := NewUserService(&mockUserRepo{
		createFunc: func(ctx context.Context, user *identity.User) error {
			t.Error("repo must not be called for invalid input")
			return nil
		},
	}, nopLogger{})

	_, err := svc.Register(context.Background(), "tenant-1", "Dana", "not-an-email", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUserService_Get(t *testing.T) {
	stored := &identity.User{
		ID:        "user-1",
		TenantID:  "tenant-1",
		Name:      "Dana",
		Role:      identity.RoleMember,
		CreatedAt: time.Now().UTC(),
	}
	repo := &mockUserRepo{
		getByIDFunc: func(ctx context.Context, id string) (*identity.User, error) {
			if id == stored.ID {
				return stored, nil
			}
			return nil, nil
		},
	}
	svc := NewUserService(repo, nopLogger{})

	t.Run("found", func(t *testing.T) {
		user, err := svc.Get(context.Background(), "tenant-1", "user-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if user.Name != "Dana" {
			t.Errorf("unexpected user: %+v", user)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Get(context.Background(), "tenant-1", "user-2")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("wrong tenant", func(t *testing.T) {
		_, err := svc.Get(context.Background(), "tenant-2", "user-1")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
