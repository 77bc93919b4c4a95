package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// LoginPath is where Network posts credentials, relative to BaseURL.
const LoginPath = "/v1/login"

// Network authenticates against a remote login server.
type Network struct {
	BaseURL    string
	HTTPClient *http.Client

	// Limiter throttles login attempts client-side. Nil means unlimited.
	// Attempts wait for a token rather than failing fast.
	Limiter *rate.Limiter
}

var _ Provider = (*Network)(nil)

// NewNetwork creates a provider for the login server at baseURL.
func NewNetwork(baseURL string) *Network {
	return &Network{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// loginRequest is the body posted to the login server.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticate posts the credential and returns the server's token response.
// Every failure comes back as a *ProviderError.
func (n *Network) Authenticate(ctx context.Context, cred Credential) (*TokenResponse, error) {
	if n.Limiter != nil {
		if err := n.Limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{
				Code:        CodeRateLimited,
				Description: "login attempt throttled",
				Err:         err,
			}
		}
	}

	body, err := json.Marshal(loginRequest{Email: cred.Identifier, Password: cred.Secret})
	if err != nil {
		return nil, &ProviderError{Code: CodeTransport, Description: "failed to encode request", Err: err}
	}

	resp, err := n.doRequest(ctx, http.MethodPost, LoginPath, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	})
	if err != nil {
		return nil, &ProviderError{Code: CodeTransport, Description: err.Error(), Err: err}
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	if tokenResp.AccessToken == "" {
		return nil, &ProviderError{
			StatusCode:  resp.StatusCode,
			Code:        CodeInvalidResponse,
			Description: "response carried no access token",
		}
	}

	return &tokenResp, nil
}

// doRequest performs an HTTP request with the provider's HTTP client.
func (n *Network) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, n.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// decodeJSON decodes a JSON response into target, or returns a
// *ProviderError when the status is not the expected one.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	// Read body once for both error parsing and success decoding
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{
			StatusCode:  resp.StatusCode,
			Code:        CodeTransport,
			Description: "failed to read response body",
			Err:         err,
		}
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return &ProviderError{
			StatusCode:  resp.StatusCode,
			Code:        CodeInvalidResponse,
			Description: "failed to decode response",
			Err:         err,
		}
	}

	return nil
}
