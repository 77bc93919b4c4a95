package session

import (
	"errors"

	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
	"github.com/aussiebroadwan/tillsession/pkg/provider"
)

var (
	// ErrSuperseded is reported by a Login that was overtaken by a later
	// Login or Logout before its provider call returned.
	ErrSuperseded = errors.New("session: login superseded")

	ErrNilCache    = errors.New("session: nil cache")
	ErrNilProvider = errors.New("session: nil provider")

	errNoToken = errors.New("session: no cached token")
)

// Kind classifies a login failure.
type Kind string

const (
	KindInvalidCredentialFormat Kind = "invalid_credential_format"
	KindProviderFailure         Kind = "provider_failure"
	KindDecodeFailure           Kind = "decode_failure"
	KindSuperseded              Kind = "superseded"
)

// LoginError is the normalized failure returned by Login. Its message is the
// cause's message, unchanged.
type LoginError struct {
	Kind Kind
	Err  error
}

func (e *LoginError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *LoginError) Unwrap() error { return e.Err }

// classify wraps a provider or decode error into a *LoginError.
func classify(err error) *LoginError {
	var le *LoginError
	if errors.As(err, &le) {
		return le
	}

	switch {
	case errors.Is(err, provider.ErrInvalidCredentialFormat):
		return &LoginError{Kind: KindInvalidCredentialFormat, Err: err}
	case errors.Is(err, jwtx.ErrMalformed),
		errors.Is(err, jwtx.ErrInvalidSig),
		errors.Is(err, jwtx.ErrUnsupportedAlg),
		errors.Is(err, jwtx.ErrIssuer),
		errors.Is(err, jwtx.ErrExpired),
		errors.Is(err, jwtx.ErrNotYetValid),
		errors.Is(err, jwtx.ErrInvalidClaim):
		return &LoginError{Kind: KindDecodeFailure, Err: err}
	case errors.Is(err, ErrSuperseded):
		return &LoginError{Kind: KindSuperseded, Err: err}
	default:
		return &LoginError{Kind: KindProviderFailure, Err: err}
	}
}
