package middleware

import (
	"net/http"

	"github.com/MrEthical07/sessionauth"
)

// CookieTransport carries the access token in an HttpOnly cookie. The cookie
// has no expiry of its own; the token's exp claim bounds its validity.
type CookieTransport struct {
	name     string
	path     string
	domain   string
	secure   bool
	sameSite http.SameSite
}

func NewCookieTransport(cfg sessionauth.CookieConfig) (*CookieTransport, error) {
	mode, err := cfg.SameSiteMode()
	if err != nil {
		return nil, err
	}
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return &CookieTransport{
		name:     cfg.Name,
		path:     path,
		domain:   cfg.Domain,
		secure:   cfg.Secure,
		sameSite: mode,
	}, nil
}

// Token returns the presented access token, or "" when the cookie is absent.
// An Authorization bearer header is accepted when no cookie is sent.
func (t *CookieTransport) Token(r *http.Request) string {
	if c, err := r.Cookie(t.name); err == nil && c.Value != "" {
		return c.Value
	}
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return ""
}

// Deliver sets the token cookie on w.
func (t *CookieTransport) Deliver(w http.ResponseWriter, token string) {
	http.SetCookie(w, t.cookie(token))
}

// Clear expires the token cookie on w.
func (t *CookieTransport) Clear(w http.ResponseWriter) {
	c := t.cookie("")
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (t *CookieTransport) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     t.name,
		Value:    value,
		Path:     t.path,
		Domain:   t.domain,
		Secure:   t.secure,
		HttpOnly: true,
		SameSite: t.sameSite,
	}
}
