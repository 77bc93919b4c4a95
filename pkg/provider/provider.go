// Package provider verifies credentials and returns a session token.
//
// A Provider is the pluggable half of a login: the session manager picks one
// at construction time and never looks at which one it got. Two ship here:
//
//   - Fake: deterministic, no I/O. Accepts any identifier under a fixed
//     domain and mints an unsigned token whose role is taken from the
//     identifier. Good for demos and tests, useless as a security boundary.
//   - Network: POSTs the credentials to {baseURL}/v1/login and hands back the
//     server's token untouched.
//
// Every failure a Provider returns either errors.Is ErrInvalidCredentialFormat
// (the identifier was rejected before anything was checked) or
// ErrProviderFailure (transport or server-side rejection).
package provider

import (
	"context"
	"errors"
)

// Credential is what the user typed. Never persisted, never logged.
type Credential struct {
	Identifier string
	Secret     string
}

// TokenResponse is the body a login server answers with.
type TokenResponse struct {
	// AccessToken is the bearer token for the session.
	AccessToken string `json:"accessToken"`
}

// Provider turns a credential into a token. Authenticate blocks until the
// provider answers or ctx is done.
type Provider interface {
	Authenticate(ctx context.Context, cred Credential) (*TokenResponse, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, cred Credential) (*TokenResponse, error)

func (f ProviderFunc) Authenticate(ctx context.Context, cred Credential) (*TokenResponse, error) {
	return f(ctx, cred)
}

var (
	ErrInvalidCredentialFormat = errors.New("provider: invalid credential format")
	ErrProviderFailure         = errors.New("provider: login failed")
)
