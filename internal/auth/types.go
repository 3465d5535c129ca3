package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleUser can read state and run setup flows.
	RoleUser Role = "user"

	// RoleAdmin can additionally remove configured entries.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleUser, RoleAdmin}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if v == r {
			return true
		}
	}
	return false
}

// Sentinel errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrEmptySecret  = errors.New("auth: empty signing secret")
	ErrForbidden    = errors.New("auth: insufficient permissions")
)
