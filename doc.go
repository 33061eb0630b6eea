// Package sessionauth is a session-based authentication and role-hierarchy
// authorization core.
//
// A client holds a signed token whose only claim besides exp is an opaque
// session id. The session record lives in a [session.Backend] (Redis or
// Postgres) and carries the user id and expiration. Each request resolves the
// token to a session under a row lock, renews the session when less than
// TTL*RefreshThreshold remains, and hands the renewed token back to the
// transport. Revoking a user deletes all of its sessions.
//
// Authorization walks a role graph: every role has subordinate roles and
// directly granted permissions, and a role holds the permissions of its
// whole transitive closure.
//
// # Request scope
//
// [Engine] is built once through [Builder.Build] and is safe for concurrent
// use. [Engine.NewRequest] opens a [Request] that owns one unit of work and
// memoizes the resolved identity and the current user:
//
//	req := engine.NewRequest(token)
//	defer req.Close(ctx)
//
//	if err := req.Authorization().AuthorizeAction(ctx, permission.PermissionManageUsers); err != nil {
//		return err
//	}
//	if tok, ok := req.IssuedToken(); ok {
//		// deliver tok to the client
//	}
//
// # Errors
//
// Failures are reported with the sentinels in errors.go and are matched with
// errors.Is: [ErrAuthentication], [ErrAuthorization],
// [ErrAlreadyAuthenticated] and [ErrPersistence]. A failed renewal is not an
// error: the request proceeds with the current session and no new token.
package sessionauth
