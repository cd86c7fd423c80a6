package types

import "github.com/google/uuid"

// Role names the actor classes the API distinguishes.
type Role string

const (
	RoleGuest    Role = "GUEST"
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// CallerContext identifies the actor behind a request. Authenticated
// customers carry a UserID, guests carry a SessionID, and admin callers
// carry both a UserID and the ADMIN role.
type CallerContext struct {
	UserID    *uuid.UUID
	SessionID *string
	Role      Role
}

// Authenticated reports whether the caller is a signed-in user.
func (c CallerContext) Authenticated() bool {
	return c.UserID != nil
}

// IsAdmin reports whether the caller holds the admin role.
func (c CallerContext) IsAdmin() bool {
	return c.Authenticated() && c.Role == RoleAdmin
}

// HasCartIdentity reports whether the caller can own a cart, either as
// a signed-in user or as a guest session.
func (c CallerContext) HasCartIdentity() bool {
	if c.UserID != nil {
		return true
	}
	return c.SessionID != nil && *c.SessionID != ""
}
