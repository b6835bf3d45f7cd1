package domain

import (
	"errors"
	"time"
)

// User is an authenticated identity shared with the rest of the application.
// Staff are provisioned out of band; supervisors are created on their first SMS verification.
type User struct {
	ID        string
	Email     string // empty when not set (stored as NULL)
	Phone     string // E.164; provisioning key for supervisors
	Name      string
	Role      Role
	Verified  bool // true after the first successful OTP verification
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role binds a user to exactly one authentication flow.
type Role string

const (
	RoleStaff      Role = "staff"
	RoleSupervisor Role = "supervisor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleSupervisor
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" && u.Phone == "" {
		return errors.New("email or phone is required")
	}
	if !u.Role.Valid() {
		return errors.New("role must be staff or supervisor")
	}
	return nil
}
