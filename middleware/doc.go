// Package middleware binds sessionauth to net/http.
//
//   - [Authenticate] opens a per-request scope and delivers renewed tokens.
//   - [RequireAuthenticated] rejects requests without a live session.
//   - [RequirePermission] rejects requests whose user lacks a permission.
//
// Tokens travel in an HttpOnly cookie managed by [CookieTransport].
package middleware
