// Package flows holds the orchestration behind each engine operation.
//
// Each flow (RunResolve, RunLogin, RunLogout, RunRevokeAll) takes a typed
// dependency struct and the request's [Unit] of work and returns a result
// without side effects beyond those dependencies. Ownership of the session
// manager, token codec and stores stays with the engine.
//
// Flows never import the root package and never roll back on their own; the
// caller ends the unit of work on every failure path.
package flows
