package model

import "strings"

// Role is the privilege level of the caller as supplied by the identity provider.
type Role string

const (
	RoleResident Role = "RESIDENT"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalizes a role claim. Unknown values are reported as not ok.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleResident, RoleStaff, RoleAdmin:
		return r, true
	}
	return "", false
}

// Actor identifies the user performing an operation.
type Actor struct {
	UserID uint64 `json:"user_id"`
	Role   Role   `json:"role"`
}

// IsStaff reports whether the actor may perform staff operations (approval, key handling).
func (a Actor) IsStaff() bool { return a.Role == RoleStaff || a.Role == RoleAdmin }

// IsAdmin reports whether the actor may perform administrative overrides.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether userID refers to the actor itself.
func (a Actor) Owns(userID uint64) bool { return a.UserID != 0 && a.UserID == userID }
