package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/permission"
)

type createUserRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Role     permission.Role `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Username == "" || body.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}
	if body.Role == "" {
		body.Role = permission.RoleUser
	}

	u, err := s.engine.CreateUser(r.Context(), request(r), body.Username, body.Password, body.Role)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := sessionauth.ListUsersQuery{}
	var err error
	if v := r.URL.Query().Get("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if q.Offset, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
	}
	switch r.URL.Query().Get("order") {
	case "", "asc":
	case "desc":
		q.Descending = true
	default:
		writeBadRequest(w, "order must be asc or desc")
		return
	}

	users, err := s.engine.ListUsers(r.Context(), request(r), q)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

func (s *Server) handleInactivateUser(w http.ResponseWriter, r *http.Request) {
	s.userAction(w, r, s.engine.InactivateUser)
}

func (s *Server) handleReactivateUser(w http.ResponseWriter, r *http.Request) {
	s.userAction(w, r, s.engine.ReactivateUser)
}

func (s *Server) handleGrantAdmin(w http.ResponseWriter, r *http.Request) {
	s.userAction(w, r, s.engine.GrantAdmin)
}

func (s *Server) handleRevokeAdmin(w http.ResponseWriter, r *http.Request) {
	s.userAction(w, r, s.engine.RevokeAdmin)
}

type userActionFunc func(ctx context.Context, req *sessionauth.Request, username string) error

func (s *Server) userAction(w http.ResponseWriter, r *http.Request, action userActionFunc) {
	if err := action(r.Context(), request(r), chi.URLParam(r, "username")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
