package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/voyagen/m3ueditor/internal/auth"
	"github.com/voyagen/m3ueditor/internal/store"
)

func currentUser(r *http.Request) int64 {
	id, _ := auth.UserID(r.Context())
	return id
}

// owned loads the record named by the {id} path parameter and checks that the
// caller owns it. It writes 400, 404 or 403 itself and reports false on failure.
func owned[T any](s *Server, w http.ResponseWriter, r *http.Request, what string,
	get func(context.Context, int64) (*T, error), owner func(*T) int64) (*T, bool) {
	id, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	rec, err := get(r.Context(), id)
	if err != nil {
		s.writeStoreErr(w, r, what, err)
		return nil, false
	}
	if owner(rec) != currentUser(r) {
		writeForbidden(w)
		return nil, false
	}
	return rec, true
}

type tokenRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	invalid := fieldErrors{"email": {"These credentials do not match our records."}}

	u, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeValidation(w, invalid)
			return
		}
		s.writeStoreErr(w, r, "user", err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeValidation(w, invalid)
		return
	}
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		s.writeStoreErr(w, r, "token", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUserByID(r.Context(), currentUser(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		s.writeStoreErr(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": u.Name})
}
