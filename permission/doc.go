// Package permission holds the role hierarchy, the permission grants attached to each
// role, and the closure algorithm that turns a single role into the full set of roles
// and permissions it carries.
//
// # Role graph
//
// A [Graph] is a plain data table: role → directly subordinate roles and role →
// directly granted permissions. Adding a role is a data change, never a code change.
// [NewGraph] rejects unknown roles and subordination cycles; the graph is immutable
// once built.
//
// # Resolution
//
// [Resolver] computes transitive roles (the role itself plus everything reachable
// through subordination edges) and the union of their grants. Resolution is pure and
// safe for concurrent use.
//
// # Policies
//
// Composite access rules ([AnyOf], [AllOf], [IsSelf], [IsSuperior], ...) are values of a
// single [Policy] type evaluated by [Evaluate].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import sessionauth, jwt, or session.
//   - Cache per-request state.
package permission
