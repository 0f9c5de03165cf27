package domain

import "time"

// Identity is the authenticated caller resolved for a single request.
type Identity struct {
	UserID   string
	Username string
	Role     Role
}

// HasRole reports whether the identity holds one of roles.
func (i *Identity) HasRole(roles ...Role) bool {
	if i == nil {
		return false
	}
	for _, role := range roles {
		if i.Role == role {
			return true
		}
	}
	return false
}

// Token describes an issued access token.
type Token struct {
	Raw       string
	KeyID     string
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
