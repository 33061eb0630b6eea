// Package api serves sessionauth over HTTP/JSON with a chi router.
//
// Routes live under /api/v1: account endpoints (signup, login, logout,
// password, me), user administration under /users, and /healthz.
package api
