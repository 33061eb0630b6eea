package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/permission"
)

// Authenticate opens a [sessionauth.Request] for every HTTP request and
// stores it in the request context. It does not reject anonymous requests;
// chain [RequireAuthenticated] for that.
//
// A token issued during the request (renewal or login) is written as a cookie
// before the response header, and a logout clears the cookie.
func Authenticate(engine *sessionauth.Engine, transport *CookieTransport) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}

			req := engine.NewRequest(transport.Token(r))
			defer req.Close(r.Context())

			tw := &tokenWriter{ResponseWriter: w, req: req, transport: transport}
			ctx := sessionauth.WithRequest(r.Context(), req)
			next.ServeHTTP(tw, r.WithContext(ctx))
			tw.flushToken()
		})
	}
}

// RequireAuthenticated rejects requests whose token does not resolve to a
// live session. Must be chained after [Authenticate].
func RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := sessionauth.RequestFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, err := req.Identity().Current(r.Context()); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects requests whose user lacks perm.
func RequirePermission(perm permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := sessionauth.RequestFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err := req.Authorization().AuthorizeAction(r.Context(), perm); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionauth.ErrAuthentication):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, sessionauth.ErrAuthorization):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}
}

// tokenWriter applies the request's token instruction once, right before
// the response header is sent.
type tokenWriter struct {
	http.ResponseWriter
	req       *sessionauth.Request
	transport *CookieTransport
	done      bool
}

func (w *tokenWriter) flushToken() {
	if w.done {
		return
	}
	w.done = true
	if token, ok := w.req.IssuedToken(); ok {
		w.transport.Deliver(w.ResponseWriter, token)
	} else if w.req.TokenCleared() {
		w.transport.Clear(w.ResponseWriter)
	}
}

func (w *tokenWriter) WriteHeader(status int) {
	w.flushToken()
	w.ResponseWriter.WriteHeader(status)
}

func (w *tokenWriter) Write(b []byte) (int, error) {
	w.flushToken()
	return w.ResponseWriter.Write(b)
}

func (w *tokenWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
