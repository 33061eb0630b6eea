package permission

// PolicyKind tags the variant held by a [Policy].
type PolicyKind uint8

const (
	// KindHasPermission is satisfied when the actor's transitive permissions allow Permission.
	KindHasPermission PolicyKind = iota + 1
	// KindIsSelf is satisfied when the target is the actor.
	KindIsSelf
	// KindIsSuperior is satisfied when the target's role is strictly subordinate to the actor's.
	KindIsSuperior
	// KindCanManageRole is satisfied when Role is strictly subordinate to the actor's role.
	KindCanManageRole
	// KindAnyOf is satisfied when at least one child is satisfied.
	KindAnyOf
	// KindAllOf is satisfied when every child is satisfied.
	KindAllOf
)

func (k PolicyKind) String() string {
	switch k {
	case KindHasPermission:
		return "has_permission"
	case KindIsSelf:
		return "is_self"
	case KindIsSuperior:
		return "is_superior"
	case KindCanManageRole:
		return "can_manage_role"
	case KindAnyOf:
		return "any_of"
	case KindAllOf:
		return "all_of"
	default:
		return "unknown"
	}
}

// Policy is a declarative authorization rule. Only the fields relevant to Kind are read.
type Policy struct {
	Kind       PolicyKind
	Permission Permission
	Role       Role
	Children   []Policy
}

// HasPermission requires perm (or the wildcard) in the actor's permission closure.
func HasPermission(perm Permission) Policy {
	return Policy{Kind: KindHasPermission, Permission: perm}
}

// IsSelf requires the target to be the actor.
func IsSelf() Policy {
	return Policy{Kind: KindIsSelf}
}

// IsSuperior requires the target's role to be strictly below the actor's.
func IsSuperior() Policy {
	return Policy{Kind: KindIsSuperior}
}

// CanManageRole requires role to be strictly below the actor's role.
func CanManageRole(role Role) Policy {
	return Policy{Kind: KindCanManageRole, Role: role}
}

// AnyOf combines policies with OR. An empty AnyOf denies.
func AnyOf(children ...Policy) Policy {
	return Policy{Kind: KindAnyOf, Children: children}
}

// AllOf combines policies with AND. An empty AllOf denies.
func AllOf(children ...Policy) Policy {
	return Policy{Kind: KindAllOf, Children: children}
}

// Subject identifies a user by id and role for policy evaluation.
type Subject struct {
	UserID string
	Role   Role
}

// Input is the evaluation context. Target is nil for policies that do not act on a user.
type Input struct {
	Actor  Subject
	Target *Subject
}

// Evaluate interprets p against in. Unknown kinds and target-dependent policies
// without a target evaluate to false.
func Evaluate(r *Resolver, p Policy, in Input) bool {
	switch p.Kind {
	case KindHasPermission:
		return r.PermissionsOf(in.Actor.Role).Allows(p.Permission)

	case KindIsSelf:
		return in.Target != nil && in.Target.UserID == in.Actor.UserID

	case KindIsSuperior:
		if in.Target == nil {
			return false
		}
		return r.SubordinateRoles(in.Actor.Role).Has(in.Target.Role)

	case KindCanManageRole:
		return r.SubordinateRoles(in.Actor.Role).Has(p.Role)

	case KindAnyOf:
		for _, child := range p.Children {
			if Evaluate(r, child, in) {
				return true
			}
		}
		return false

	case KindAllOf:
		if len(p.Children) == 0 {
			return false
		}
		for _, child := range p.Children {
			if !Evaluate(r, child, in) {
				return false
			}
		}
		return true

	default:
		return false
	}
}
