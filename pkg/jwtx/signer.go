package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// NewSigner returns a signer for alg. An empty alg means HS256.
func NewSigner(alg string, secret []byte) (Signer, error) {
	switch alg {
	case AlgNone:
		return noneSigner{}, nil
	case "", AlgHS256:
		if len(secret) == 0 {
			return nil, errors.New("jwtx: HS256 requires a non-empty secret")
		}
		return &HS256Signer{key: secret}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, alg)
	}
}

// noneSigner produces unsigned tokens. Only the simulated provider uses it,
// nothing should ever trust these.
type noneSigner struct{}

func (noneSigner) Alg() string { return AlgNone }

func (noneSigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	return t.SignedString(jwt.UnsafeAllowNoneSignatureType)
}

// HS256Signer signs with a shared secret.
type HS256Signer struct {
	key []byte
}

func (s *HS256Signer) Alg() string { return AlgHS256 }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.key)
}
