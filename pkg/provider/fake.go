package provider

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/tillsession/pkg/identity"
	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
)

// Defaults for the fake provider.
const (
	FakeDomainSuffix = "@test.com"
	FakeUserID       = "e4d1bc2ab25c"
	FakeSecret       = "secret"
)

// Fake simulates a login server. The secret part of the credential is ignored.
type Fake struct {
	// DomainSuffix identifiers must end with, compared case-insensitively.
	DomainSuffix string

	// UserID is stamped on every identity.
	UserID string

	// SigningSecret and Algorithm are handed to the token encoder. An empty
	// Algorithm means unsigned tokens.
	SigningSecret []byte
	Algorithm     string

	// TTL is the nominal token lifetime.
	TTL time.Duration

	// Now overrides the clock.
	Now func() time.Time
}

var _ Provider = (*Fake)(nil)

// NewFake returns a Fake with the stock domain, user id and a one hour TTL.
func NewFake() *Fake {
	return &Fake{
		DomainSuffix:  FakeDomainSuffix,
		UserID:        FakeUserID,
		SigningSecret: []byte(FakeSecret),
		Algorithm:     jwtx.AlgNone,
		TTL:           jwtx.DefaultSessionTokenTTL,
	}
}

// Authenticate accepts identifiers under DomainSuffix and mints a token whose
// role is taken from the identifier.
func (f *Fake) Authenticate(ctx context.Context, cred Credential) (*TokenResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	suffix := f.DomainSuffix
	if suffix == "" {
		suffix = FakeDomainSuffix
	}
	if !strings.HasSuffix(strings.ToLower(cred.Identifier), strings.ToLower(suffix)) {
		return nil, &CredentialFormatError{Suffix: suffix}
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}

	userID := f.UserID
	if userID == "" {
		userID = FakeUserID
	}
	alg := f.Algorithm
	if alg == "" {
		alg = jwtx.AlgNone
	}

	role := identity.RoleFromIdentifier(cred.Identifier)
	claims := jwtx.NewIdentityClaims(string(role), userID, now())

	token, err := jwtx.Encode(claims, f.SigningSecret, jwtx.EncodeOptions{
		ExpiresIn: f.TTL,
		Algorithm: alg,
		Now:       now,
	})
	if err != nil {
		return nil, &ProviderError{Code: CodeServerError, Description: "failed to mint token", Err: err}
	}

	return &TokenResponse{AccessToken: token}, nil
}
