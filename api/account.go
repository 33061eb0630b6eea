package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"new_password"`
}

type loginResponse struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return body, false
	}
	if body.Username == "" || body.Password == "" {
		writeBadRequest(w, "username and password are required")
		return body, false
	}
	return body, true
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	u, err := s.engine.SignUp(r.Context(), request(r), body.Username, body.Password)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	res, err := s.engine.Login(r.Context(), request(r), body.Username, body.Password)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{UserID: res.UserID, ExpiresAt: res.Expiration})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.Logout(r.Context(), request(r)); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := request(r).Authorization().CurrentUser(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleChangePassword changes the caller's own password unless a username
// is given in the body.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req := request(r)
	if body.Username == "" {
		u, err := req.Authorization().CurrentUser(r.Context())
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		body.Username = u.Username
	}
	s.changePassword(w, r, body.Username, body.NewPassword)
}

func (s *Server) handleChangeUserPassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.changePassword(w, r, chi.URLParam(r, "username"), body.NewPassword)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, username, newPassword string) {
	if newPassword == "" {
		writeBadRequest(w, "new_password is required")
		return
	}
	if err := s.engine.ChangePassword(r.Context(), request(r), username, newPassword); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
