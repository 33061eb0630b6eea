// Package user provides [sessionauth.UserStore] implementations: a Postgres
// store over database/sql with lib/pq, and an in-memory store for tests and
// single-process development.
package user
