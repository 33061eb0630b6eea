// Package jwt wraps an opaque session id in a signed, expiring token.
//
// The token carries exactly two claims, session_id and exp. The signing
// algorithm is chosen by server configuration and never by the token header;
// any token that fails verification for any reason is reported as
// [ErrInvalidToken] so callers cannot distinguish failure modes.
package jwt
