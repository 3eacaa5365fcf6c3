// Package authz implements the authorization engine: pure predicates
// over an actor's role set and relationship facts. The package performs
// no I/O; callers materialize the facts and map verdicts onto HTTP
// statuses.
package authz

// System role names. These are stored as-is in the roles table and in
// sessions; the engine compares them as named constants.
const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RolePrincipal  = "principal"
	RoleCenseur    = "censeur"
	RoleEnseignant = "enseignant"
	RoleParent     = "parent"
	RoleApprenant  = "apprenant"
)

// adminLikeRoles is the elevated tier granted baseline access in most
// decisions.
var adminLikeRoles = map[string]struct{}{
	RoleAdmin:      {},
	RoleSuperadmin: {},
	RolePrincipal:  {},
	RoleCenseur:    {},
}

// protectedRoles may never be deleted, whatever their assignment state.
var protectedRoles = map[string]struct{}{
	RoleSuperadmin: {},
	RoleAdmin:      {},
	RoleEnseignant: {},
	RoleParent:     {},
	RoleApprenant:  {},
}

// IsProtectedRole reports whether name is one of the five system roles.
func IsProtectedRole(name string) bool {
	_, ok := protectedRoles[name]
	return ok
}

// RoleSet is an actor's set of role names.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from role names.
func NewRoleSet(names ...string) RoleSet {
	set := make(RoleSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether the set contains name.
func (s RoleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAny reports whether the set contains at least one of names.
func (s RoleSet) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// Fact is the tri-state result of a relationship lookup. A lookup that
// failed or was never performed stays Unknown, and Unknown never
// permits: the engine fails closed.
type Fact int

const (
	FactUnknown Fact = iota
	FactFalse
	FactTrue
)

// FactOf converts a known boolean into a Fact.
func FactOf(v bool) Fact {
	if v {
		return FactTrue
	}
	return FactFalse
}

// FactFromLookup converts a lookup result into a Fact, collapsing any
// lookup error to Unknown.
func FactFromLookup(v bool, err error) Fact {
	if err != nil {
		return FactUnknown
	}
	return FactOf(v)
}

// True reports whether the fact is known to hold.
func (f Fact) True() bool {
	return f == FactTrue
}

// StudentRef carries the two identifiers a student-data visibility
// check needs: the student row id and the linked account id.
type StudentRef struct {
	ID     int64
	UserID int64
}
