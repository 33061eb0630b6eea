package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/sessionauth"
)

// Error is the JSON body of every failed request.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeUnauthorized         = "unauthorized"
	ErrCodeForbidden            = "forbidden"
	ErrCodeNotFound             = "not_found"
	ErrCodeConflict             = "conflict"
	ErrCodeUnavailable          = "unavailable"
	ErrCodeInternal             = "internal_error"
	ErrCodeAlreadyAuthenticated = "already_authenticated"
	ErrCodeTooManyRequests      = "too_many_requests"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeEngineError maps engine sentinels to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionauth.ErrAlreadyAuthenticated):
		writeError(w, http.StatusConflict, ErrCodeAlreadyAuthenticated, "already authenticated")
	case errors.Is(err, sessionauth.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many login attempts")
	case errors.Is(err, sessionauth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid username or password")
	case errors.Is(err, sessionauth.ErrAccountInactive):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "account inactive")
	case errors.Is(err, sessionauth.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
	case errors.Is(err, sessionauth.ErrAuthorization):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "not authorized")
	case errors.Is(err, sessionauth.ErrRoleChangeNotPermitted):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "role change not permitted")
	case errors.Is(err, sessionauth.ErrUsernameTaken):
		writeError(w, http.StatusConflict, ErrCodeConflict, "username already exists")
	case errors.Is(err, sessionauth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, sessionauth.ErrInvalidRequest):
		writeBadRequest(w, err.Error())
	case errors.Is(err, sessionauth.ErrPersistence):
		s.logger.WithError(err).Error("backend unavailable")
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "service unavailable")
	default:
		s.logger.WithError(err).Error("unhandled error")
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
