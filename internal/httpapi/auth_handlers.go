package httpapi

import (
	"net/http"

	"camstack.org/internal/auth"
	"camstack.org/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresIn    int64     `json:"expiresIn"`
	User         loginUser `json:"user"`
}

type loginUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, user, err := a.deps.Sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		obs.CountLogin("rejected")
		a.deps.Audit.Record(r.Context(), "auth.login.rejected", "user", "", map[string]string{
			"username": req.Username,
		})
		handleDomainError(w, r, err)
		return
	}
	obs.CountLogin("success")
	a.deps.Audit.Record(r.Context(), "auth.login", "user", user.ID, nil)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         loginUser{ID: user.ID, Username: user.Username, Role: string(user.Role)},
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, user, err := a.deps.Sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         loginUser{ID: user.ID, Username: user.Username, Role: string(user.Role)},
	})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.Kind != auth.ActorUser {
		writeError(w, r, http.StatusForbidden, "API tokens cannot change passwords")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.deps.Sessions.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "auth.password.change", "user", p.UserID, nil)
	w.WriteHeader(http.StatusNoContent)
}
