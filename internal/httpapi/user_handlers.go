package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"camstack.org/internal/auth"
)

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

const minNewUserPassword = 8

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.deps.Users.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < minNewUserPassword {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minNewUserPassword))
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	hash, err := a.deps.Hasher.Hash(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "operation failed")
		return
	}
	user := &auth.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := a.deps.Users.Create(r.Context(), user); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "user.create", "user", user.ID, map[string]string{
		"username": user.Username,
		"role":     string(user.Role),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.deps.Users.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.deps.Users.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Role != nil {
		role, err := auth.ParseRole(*req.Role)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		user.Role = role
	}
	if req.Active != nil {
		// Self-deactivation locks an admin out mid-session; refuse it.
		if !*req.Active && user.ID == principal(r).UserID {
			writeError(w, r, http.StatusBadRequest, "cannot deactivate your own account")
			return
		}
		user.Active = *req.Active
	}
	if err := a.deps.Users.Update(r.Context(), user); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "user.update", "user", user.ID, nil)
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == principal(r).UserID {
		writeError(w, r, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := a.deps.Users.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.deps.Audit.Record(r.Context(), "user.delete", "user", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
