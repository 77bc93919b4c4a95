package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTokenTTL is the nominal lifetime of a session token minted
// by the fake provider. Expiry is advisory, nothing refreshes tokens.
const DefaultSessionTokenTTL = 1 * time.Hour

// Claims are the session-token claims. The custom field names match what
// the login server puts in the access token so existing tokens decode as-is.
type Claims struct {
	jwt.RegisteredClaims

	// IsAuthenticated is false only for anonymous identities.
	IsAuthenticated bool `json:"isAuthenticated"`

	// UserRole is one of "none", "cashier", "clerk", "manager".
	UserRole string `json:"userRole"`

	// UserID is empty for anonymous identities.
	UserID string `json:"userId,omitempty"`
}

// NewIdentityClaims builds claims for an authenticated user. IssuedAt is set
// from now, expiry is left to the encoder.
func NewIdentityClaims(role, userID string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       NewJTI(),
		},
		IsAuthenticated: true,
		UserRole:        role,
		UserID:          userID,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiry ensures the token hasn’t expired (exp) and isn’t before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway adds a small grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}

// Expiry returns the exp claim, or the zero time when the token carries none.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
