package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/primisapp/primis-backend/internal/auth"
	"github.com/primisapp/primis-backend/internal/user"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// handleLogin verifies credentials and issues an access token.
//
// Unknown email and wrong password produce the same 401 so the endpoint
// does not confirm which addresses have accounts.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	u, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			writeUnauthorized(w)
			return
		}
		writeInternalError(w, s.logger, err)
		return
	}

	if err := auth.VerifyPassword(req.Password, u.PasswordHash); err != nil {
		writeUnauthorized(w)
		return
	}

	token, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// minPasswordLength rejects trivially weak passwords at creation time.
const minPasswordLength = 8

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeInternalError(w, s.logger, err)
		return
	}

	u, err := s.users.Create(r.Context(), req.Name, req.Email, hash)
	switch {
	case errors.Is(err, user.ErrEmailExists):
		writeConflict(w, "email already in use")
		return
	case err != nil:
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := s.users.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		writeNotFound(w, "user not found")
		return
	case err != nil:
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

type updateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" && req.Email == "" {
		writeBadRequest(w, "nothing to update")
		return
	}

	u, err := s.users.Update(r.Context(), id, req.Name, req.Email)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		writeNotFound(w, "user not found")
		return
	case errors.Is(err, user.ErrEmailExists):
		writeConflict(w, "email already in use")
		return
	case err != nil:
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Deleting the account behind the current token would strand the caller.
	if claims, ok := claimsFromContext(r.Context()); ok && claims.Subject == id {
		writeBadRequest(w, "cannot delete your own account")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		writeInternalError(w, s.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
