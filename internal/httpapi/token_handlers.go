package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"camstack.org/internal/auth"
)

type createTokenRequest struct {
	Name        string     `json:"name"`
	Remark      string     `json:"remark"`
	Permissions []string   `json:"permissions"`
	RateLimit   int        `json:"rateLimit"`
	AllowedIPs  []string   `json:"allowedIps"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type createTokenResponse struct {
	Token      *auth.APIToken `json:"token"`
	PlainToken string         `json:"plainToken"`
	Warning    string         `json:"warning"`
}

type updateTokenRequest struct {
	Name        *string    `json:"name"`
	Remark      *string    `json:"remark"`
	Permissions []string   `json:"permissions"`
	RateLimit   *int       `json:"rateLimit"`
	AllowedIPs  []string   `json:"allowedIps"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

const plainTokenWarning = "Store this token securely. It will not be shown again."

func (a *API) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := a.deps.Tokens.ListForActor(r.Context(), principal(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (a *API) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.Kind != auth.ActorUser {
		writeError(w, r, http.StatusForbidden, "API tokens cannot create tokens")
		return
	}
	var req createTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := a.deps.Users.Find(r.Context(), p.UserID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	token, plain, err := a.deps.Tokens.Create(r.Context(), owner, auth.CreateTokenInput{
		Name:        req.Name,
		Remark:      req.Remark,
		Permissions: req.Permissions,
		RateLimit:   req.RateLimit,
		AllowedIPs:  req.AllowedIPs,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "token.create", "token", token.ID, map[string]string{
		"name": token.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/tokens/%s", token.ID))
	writeJSON(w, http.StatusCreated, createTokenResponse{
		Token:      token,
		PlainToken: plain,
		Warning:    plainTokenWarning,
	})
}

func (a *API) handleGetToken(w http.ResponseWriter, r *http.Request) {
	token, err := a.deps.Tokens.Get(r.Context(), r.PathValue("id"), principal(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (a *API) handleUpdateToken(w http.ResponseWriter, r *http.Request) {
	var req updateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token, err := a.deps.Tokens.Update(r.Context(), r.PathValue("id"), principal(r), auth.TokenUpdate{
		Name:        req.Name,
		Remark:      req.Remark,
		Permissions: req.Permissions,
		RateLimit:   req.RateLimit,
		AllowedIPs:  req.AllowedIPs,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "token.update", "token", token.ID, nil)
	writeJSON(w, http.StatusOK, token)
}

func (a *API) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.deps.Tokens.Revoke(r.Context(), id, principal(r)); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "token.revoke", "token", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.deps.Tokens.Delete(r.Context(), id, principal(r)); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "token.delete", "token", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
