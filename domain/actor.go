package domain

import "time"

// Role classifies an actor and determines its task visibility scope.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVendor   Role = "vendor"
	RoleCustomer Role = "customer"
)

// ValidRole reports whether the value is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleVendor, RoleCustomer:
		return true
	}
	return false
}

// Actor represents an authenticated participant. Identity is immutable for
// the lifetime of a session; the role alone never implies ownership.
type Actor struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Active bool   `json:"is_active"`
}

// User is the persisted identity record behind an Actor.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor projects the session-facing view of the user.
func (u *User) Actor() Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{ID: u.ID, Role: u.Role, Active: u.Active}
}

func (u *User) IsActive() bool {
	return u != nil && u.Active
}
