// Package identity holds the authorization identity a session resolves to.
package identity

import (
	"encoding/json"
	"strings"

	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
)

// Role is the coarse authorization role carried by a session token.
type Role string

const (
	RoleNone    Role = "none"
	RoleCashier Role = "cashier"
	RoleClerk   Role = "clerk"
	RoleManager Role = "manager"
)

// rolePrecedence is the order keywords are matched in RoleFromIdentifier.
var rolePrecedence = []Role{RoleCashier, RoleClerk, RoleManager}

// ParseRole maps a claim value onto a Role. Unknown values are RoleNone.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCashier, RoleClerk, RoleManager:
		return r
	default:
		return RoleNone
	}
}

// RoleFromIdentifier derives a role from the first keyword found in the
// identifier. "cashier" wins over "clerk" which wins over "manager".
func RoleFromIdentifier(identifier string) Role {
	lower := strings.ToLower(identifier)
	for _, r := range rolePrecedence {
		if strings.Contains(lower, string(r)) {
			return r
		}
	}
	return RoleNone
}

// Identity is the canonical "who is logged in" record.
type Identity struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Role            Role   `json:"userRole"`
	UserID          string `json:"userId"`
}

// Default is the anonymous identity.
var Default = Identity{IsAuthenticated: false, Role: RoleNone, UserID: ""}

// Normalize enforces that an anonymous identity carries no role or user id,
// and that the role is one we know about.
func (i Identity) Normalize() Identity {
	if !i.IsAuthenticated {
		return Default
	}
	i.Role = ParseRole(string(i.Role))
	return i
}

// IsDefault reports whether i is the anonymous identity.
func (i Identity) IsDefault() bool { return i.Normalize() == Default }

// FromClaims converts decoded token claims into an identity.
func FromClaims(c *jwtx.Claims) Identity {
	if c == nil {
		return Default
	}
	return Identity{
		IsAuthenticated: c.IsAuthenticated,
		Role:            ParseRole(c.UserRole),
		UserID:          c.UserID,
	}.Normalize()
}

// MarshalJSON writes an empty user id as null.
func (i Identity) MarshalJSON() ([]byte, error) {
	var userID *string
	if i.UserID != "" {
		userID = &i.UserID
	}

	role := i.Role
	if role == "" {
		role = RoleNone
	}

	return json.Marshal(struct {
		IsAuthenticated bool    `json:"isAuthenticated"`
		Role            Role    `json:"userRole"`
		UserID          *string `json:"userId"`
	}{i.IsAuthenticated, role, userID})
}

// UnmarshalJSON accepts a null user id.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw struct {
		IsAuthenticated bool    `json:"isAuthenticated"`
		Role            string  `json:"userRole"`
		UserID          *string `json:"userId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = Identity{IsAuthenticated: raw.IsAuthenticated, Role: ParseRole(raw.Role)}
	if raw.UserID != nil {
		i.UserID = *raw.UserID
	}
	return nil
}
