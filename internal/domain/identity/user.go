// Package identity holds the minimal collaborator model the engine needs to
// attribute actions and scope data by tenant.
package identity

import "time"

// Role of a user within a tenant
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is a collaborator known to the engine
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
