package permission

import "sort"

// Role names a node of the role hierarchy.
type Role string

// Permission names a capability granted to a role.
type Permission string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

const (
	// PermissionAll is the wildcard grant; it satisfies every permission check.
	PermissionAll         Permission = "all"
	PermissionManageUsers Permission = "manage_users"
	PermissionEditSelf    Permission = "edit_self"
)

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether role is a member of the set.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// Without returns a copy of the set with role removed. The receiver is not modified.
func (s RoleSet) Without(role Role) RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		if r != role {
			out[r] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s RoleSet) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

// Has reports whether perm is a member of the set.
func (s PermissionSet) Has(perm Permission) bool {
	_, ok := s[perm]
	return ok
}

// Allows reports whether the set satisfies perm, either directly or through
// [PermissionAll].
func (s PermissionSet) Allows(perm Permission) bool {
	return s.Has(PermissionAll) || s.Has(perm)
}

// Sorted returns the members in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
