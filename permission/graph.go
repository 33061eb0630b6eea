package permission

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	// ErrUnknownRole is returned when a subordination edge references an undeclared role.
	ErrUnknownRole = errors.New("unknown role")
	// ErrRoleCycle is returned when a role is transitively subordinate to itself.
	ErrRoleCycle = errors.New("role hierarchy contains a cycle")
	// ErrEmptyName is returned for blank role or permission names.
	ErrEmptyName = errors.New("role or permission name empty")
)

// Graph is the immutable role table: role → directly subordinate roles and
// role → directly granted permissions.
type Graph struct {
	subordinates map[Role]RoleSet
	grants       map[Role]PermissionSet
}

// NewGraph validates and freezes a role table. A role is declared by appearing as a key
// in either map; every subordinate must itself be declared. Cycles, including a role
// listed as its own subordinate, are rejected.
func NewGraph(subordinates map[Role][]Role, grants map[Role][]Permission) (*Graph, error) {
	g := &Graph{
		subordinates: make(map[Role]RoleSet, len(subordinates)),
		grants:       make(map[Role]PermissionSet, len(grants)),
	}

	for role := range subordinates {
		if role == "" {
			return nil, ErrEmptyName
		}
		g.subordinates[role] = RoleSet{}
	}
	for role, perms := range grants {
		if role == "" {
			return nil, ErrEmptyName
		}
		if _, ok := g.subordinates[role]; !ok {
			g.subordinates[role] = RoleSet{}
		}
		set := make(PermissionSet, len(perms))
		for _, p := range perms {
			if p == "" {
				return nil, ErrEmptyName
			}
			set[p] = struct{}{}
		}
		g.grants[role] = set
	}

	for role, subs := range subordinates {
		for _, sub := range subs {
			if _, ok := g.subordinates[sub]; !ok {
				return nil, fmt.Errorf("%w: %q (subordinate of %q)", ErrUnknownRole, sub, role)
			}
			if sub == role {
				return nil, fmt.Errorf("%w: %q is its own subordinate", ErrRoleCycle, role)
			}
			g.subordinates[role][sub] = struct{}{}
		}
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}

	return g, nil
}

// DefaultGraph returns the built-in hierarchy super_admin → admin → user.
func DefaultGraph() *Graph {
	g, err := NewGraph(DefaultSubordinates(), DefaultGrants())
	if err != nil {
		panic(err)
	}
	return g
}

// DefaultSubordinates returns the built-in subordination table.
func DefaultSubordinates() map[Role][]Role {
	return map[Role][]Role{
		RoleSuperAdmin: {RoleAdmin},
		RoleAdmin:      {RoleUser},
		RoleUser:       {},
	}
}

// DefaultGrants returns the built-in direct grants.
func DefaultGrants() map[Role][]Permission {
	return map[Role][]Permission{
		RoleSuperAdmin: {PermissionAll},
		RoleAdmin:      {PermissionManageUsers},
		RoleUser:       {PermissionEditSelf},
	}
}

// Has reports whether role is declared in the graph.
func (g *Graph) Has(role Role) bool {
	if g == nil {
		return false
	}
	_, ok := g.subordinates[role]
	return ok
}

// Roles returns every declared role in lexical order.
func (g *Graph) Roles() []Role {
	all := make(RoleSet, len(g.subordinates))
	for r := range g.subordinates {
		all[r] = struct{}{}
	}
	return all.Sorted()
}

func (g *Graph) directSubordinates(role Role) RoleSet {
	return g.subordinates[role]
}

func (g *Graph) directGrants(role Role) PermissionSet {
	return g.grants[role]
}

func (g *Graph) checkAcyclic() error {
	roles := g.Roles()
	ids := make(map[Role]int64, len(roles))
	dg := simple.NewDirectedGraph()
	for i, r := range roles {
		ids[r] = int64(i)
		dg.AddNode(simple.Node(int64(i)))
	}
	for role, subs := range g.subordinates {
		for sub := range subs {
			dg.SetEdge(dg.NewEdge(simple.Node(ids[role]), simple.Node(ids[sub])))
		}
	}
	if _, err := topo.Sort(dg); err != nil {
		return fmt.Errorf("%w: %v", ErrRoleCycle, err)
	}
	return nil
}
