package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// CredentialFormatError is returned when an identifier is outside the
// accepted domain.
type CredentialFormatError struct {
	// Suffix is the domain the identifier has to end with, e.g. "@test.com".
	Suffix string
}

// Error keeps the wording the login screen shows the user.
func (e *CredentialFormatError) Error() string {
	return fmt.Sprintf("Failed to login! Email needs to end with %s.", e.Suffix)
}

func (e *CredentialFormatError) Is(target error) bool {
	return target == ErrInvalidCredentialFormat
}

// Error codes carried by ProviderError.Code.
const (
	CodeTransport       = "transport_error"
	CodeInvalidResponse = "invalid_response"
	CodeRateLimited     = "rate_limit_exceeded"
	CodeServerError     = "server_error"

	// CodeInvalidCredentialFormat is what a login server answers when the
	// identifier is outside its accepted domain.
	CodeInvalidCredentialFormat = "invalid_credential_format"
)

// ProviderError is the uniform failure shape for anything that went wrong
// talking to a login server.
type ProviderError struct {
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	// Code is a short machine-readable reason.
	Code string

	// Description is a human-readable description of the error.
	Description string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ProviderError) Error() string {
	// The server's rejection text is meant for the user as is.
	if e.Code == CodeInvalidCredentialFormat && e.Description != "" {
		return e.Description
	}
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches ErrProviderFailure, and ErrInvalidCredentialFormat when the
// server rejected the identifier's format.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProviderFailure:
		return true
	case ErrInvalidCredentialFormat:
		return e.Code == CodeInvalidCredentialFormat
	default:
		return false
	}
}

// errorResponse is the error body shape the login server writes.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

// parseErrorResponse turns a non-2xx response into a *ProviderError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Error != "":
			return &ProviderError{
				StatusCode:  resp.StatusCode,
				Code:        errResp.Error,
				Description: errResp.ErrorDescription,
			}
		case errResp.Message != "":
			return &ProviderError{
				StatusCode:  resp.StatusCode,
				Code:        CodeServerError,
				Description: errResp.Message,
			}
		}
	}

	// Fallback: create generic error from status code
	return &ProviderError{
		StatusCode:  resp.StatusCode,
		Code:        CodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
