// Package internal contains helpers that are private to sessionauth,
// chiefly secure random generation for session identifiers.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: dependency-injected orchestration of account and admin operations
//   - rate: Redis fixed-window counter behind the login throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionauth API.
//   - Be imported by any package outside the sessionauth module.
package internal
