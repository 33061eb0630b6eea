package permission

// Resolver computes role and permission closures over a [Graph].
//
// Resolver holds no mutable state; one instance is shared process-wide.
type Resolver struct {
	graph *Graph
}

// NewResolver returns a resolver over g.
func NewResolver(g *Graph) *Resolver {
	return &Resolver{graph: g}
}

// Graph returns the underlying role table.
func (r *Resolver) Graph() *Graph {
	return r.graph
}

// TransitiveRoles returns role together with every role reachable from it through
// subordination edges. The visited set keeps diamonds from being expanded twice and
// guarantees termination on graphs that were not validated by [NewGraph].
func (r *Resolver) TransitiveRoles(role Role) RoleSet {
	visited := NewRoleSet(role)
	pending := []Role{role}

	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		for sub := range r.graph.directSubordinates(current) {
			if visited.Has(sub) {
				continue
			}
			visited[sub] = struct{}{}
			pending = append(pending, sub)
		}
	}

	return visited
}

// TransitivePermissions returns the union of the direct grants of every role in roles.
func (r *Resolver) TransitivePermissions(roles RoleSet) PermissionSet {
	perms := PermissionSet{}
	for role := range roles {
		for p := range r.graph.directGrants(role) {
			perms[p] = struct{}{}
		}
	}
	return perms
}

// SubordinateRoles returns the transitive closure of role with role itself removed.
func (r *Resolver) SubordinateRoles(role Role) RoleSet {
	return r.TransitiveRoles(role).Without(role)
}

// PermissionsOf is shorthand for TransitivePermissions(TransitiveRoles(role)).
func (r *Resolver) PermissionsOf(role Role) PermissionSet {
	return r.TransitivePermissions(r.TransitiveRoles(role))
}
