package loginserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tillsession/pkg/cryptox"
	"github.com/aussiebroadwan/tillsession/pkg/httpx"
	"github.com/aussiebroadwan/tillsession/pkg/provider"
	"github.com/aussiebroadwan/tillsession/pkg/slogx"
)

// LoginRequest is the body of POST /v1/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler serves POST /v1/login.
type LoginHandler struct {
	Provider provider.Provider
}

// ServeHTTP godoc
//
//	@Summary		Login
//	@Description	Exchanges an email and password for a bearer token carrying the caller's identity claims.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest			true	"credentials"
//	@Success		200		{object}	provider.TokenResponse	"accessToken"
//	@Failure		400		{object}	httpx.ErrorResponse		"error, error_description"
//	@Failure		401		{object}	httpx.ErrorResponse		"error, error_description"
//	@Failure		429		{object}	httpx.ErrorResponse		"error, error_description"
//	@Failure		500		{object}	httpx.ErrorResponse		"error, error_description"
//	@Router			/v1/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		httpx.WriteError(w, http.StatusUnsupportedMediaType, "invalid_request", "content type must be application/json")
		return
	}

	var req LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "body must be {\"email\",\"password\"}")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	resp, err := h.Provider.Authenticate(r.Context(), provider.Credential{
		Identifier: req.Email,
		Secret:     req.Password,
	})
	if err != nil {
		var perr *provider.ProviderError
		switch {
		case errors.Is(err, provider.ErrInvalidCredentialFormat):
			log.Info("login rejected", "reason", provider.CodeInvalidCredentialFormat)
			httpx.WriteError(w, http.StatusUnauthorized, provider.CodeInvalidCredentialFormat, err.Error())
		case errors.As(err, &perr) && perr.StatusCode != 0:
			httpx.WriteError(w, perr.StatusCode, perr.Code, perr.Description)
		default:
			log.Error("login failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, provider.CodeServerError, "unable to issue token")
		}
		return
	}

	log.Info("login issued token", "token_fp", cryptox.LogFingerprint(resp.AccessToken))
	httpx.WriteJSON(w, http.StatusOK, resp)
}
