package jwtx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms for Encode.
const (
	AlgNone  = "none"
	AlgHS256 = "HS256"
)

// EncodeOptions mirrors the knobs a token issuer exposes.
type EncodeOptions struct {
	// ExpiresIn sets exp relative to Now. Zero leaves exp unset.
	ExpiresIn time.Duration

	// Algorithm is AlgNone or AlgHS256 (default).
	Algorithm string

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Decode parses a token without verifying its signature. It is the client
// side view of a token: the server already vouched for it, we only need the
// claims back out.
func Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return claims, nil
}

// Encode signs claims with the configured algorithm. The secret is ignored
// for AlgNone.
func Encode(claims Claims, secret []byte, opts EncodeOptions) (string, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	if opts.ExpiresIn > 0 {
		issued := now()
		if claims.IssuedAt == nil {
			claims.IssuedAt = jwt.NewNumericDate(issued)
		}
		claims.ExpiresAt = jwt.NewNumericDate(issued.Add(opts.ExpiresIn))
	}

	signer, err := NewSigner(opts.Algorithm, secret)
	if err != nil {
		return "", err
	}

	return signer.Sign(claims)
}

// mapParseError folds golang-jwt errors into the package sentinels.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
}
