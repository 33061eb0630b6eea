// Package session owns server-side session records: their model, the storage
// port with its Redis and PostgreSQL adapters, and the [Manager] that applies
// expiry and sliding-renewal rules.
//
// # Storage port
//
// Work happens inside a [Tx] obtained from a [Backend]. A [Tx] is the unit of
// work for one request: reads with forUpdate=true hold a pessimistic lock on the
// session until Commit or Rollback, so concurrent renewals of the same session
// serialize instead of losing updates.
//
//   - PostgresBackend uses SELECT ... FOR UPDATE inside a database/sql transaction.
//   - RedisBackend uses a per-session lock key (SET NX PX) released by a
//     compare-and-delete script. Redis writes apply immediately; Rollback only
//     releases locks.
//
// # What this package must NOT do
//
//   - Import sessionauth or jwt (no upward imports).
//   - Interpret tokens, roles or permissions.
package session
