package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAdminLike(t *testing.T) {
	elevated := []string{RoleAdmin, RoleSuperadmin, RolePrincipal, RoleCenseur}
	for _, role := range elevated {
		assert.True(t, IsAdminLike(NewRoleSet(role)), "role %s should be admin-like", role)
	}

	others := []string{RoleEnseignant, RoleParent, RoleApprenant, "comptable", "surveillant", ""}
	for _, role := range others {
		assert.False(t, IsAdminLike(NewRoleSet(role)), "role %s should not be admin-like", role)
	}

	assert.False(t, IsAdminLike(nil))
	assert.True(t, IsAdminLike(NewRoleSet(RoleParent, RoleCenseur)))
}

func TestCanManageOwnResource(t *testing.T) {
	// Ownership permits regardless of roles.
	assert.True(t, CanManageOwnResource(42, 42, nil))
	assert.True(t, CanManageOwnResource(42, 42, NewRoleSet(RoleApprenant)))

	// Zero actor id never counts as an ownership match.
	assert.False(t, CanManageOwnResource(0, 0, NewRoleSet(RoleEnseignant)))

	assert.True(t, CanManageOwnResource(1, 2, NewRoleSet(RoleAdmin)))
	assert.False(t, CanManageOwnResource(1, 2, NewRoleSet(RoleEnseignant)))
}

func TestCanViewStudentData(t *testing.T) {
	student := StudentRef{ID: 7, UserID: 70}

	tests := []struct {
		name     string
		actorID  int64
		roles    RoleSet
		isParent Fact
		want     bool
	}{
		{"admin sees any student", 1, NewRoleSet(RoleAdmin), FactFalse, true},
		{"principal sees any student", 1, NewRoleSet(RolePrincipal), FactUnknown, true},
		{"teacher sees any student", 2, NewRoleSet(RoleEnseignant), FactFalse, true},
		{"student sees self", 70, NewRoleSet(RoleApprenant), FactFalse, true},
		{"other student denied", 71, NewRoleSet(RoleApprenant), FactFalse, false},
		{"linked parent permitted", 3, NewRoleSet(RoleParent), FactTrue, true},
		{"unlinked parent denied", 3, NewRoleSet(RoleParent), FactFalse, false},
		{"unknown parent fact fails closed", 3, NewRoleSet(RoleParent), FactUnknown, false},
		{"no roles no link denied", 4, nil, FactUnknown, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanViewStudentData(tc.actorID, student, tc.roles, tc.isParent))
		})
	}
}

func TestFactFromLookup(t *testing.T) {
	assert.Equal(t, FactTrue, FactFromLookup(true, nil))
	assert.Equal(t, FactFalse, FactFromLookup(false, nil))
	assert.Equal(t, FactUnknown, FactFromLookup(true, assert.AnError))
	assert.False(t, FactUnknown.True())
}

func TestCanModifyRole(t *testing.T) {
	assert.False(t, CanModifyRole("custom", NewRoleSet(RoleEnseignant)))
	assert.True(t, CanModifyRole("custom", NewRoleSet(RoleAdmin)))
	assert.True(t, CanModifyRole(RoleAdmin, NewRoleSet(RoleCenseur)))

	// Superadmin role is editable only by superadmins.
	assert.False(t, CanModifyRole(RoleSuperadmin, NewRoleSet(RoleAdmin)))
	assert.True(t, CanModifyRole(RoleSuperadmin, NewRoleSet(RoleSuperadmin)))
}

func TestCanDeleteRole(t *testing.T) {
	// Protected names are never deletable, whatever the assignment state.
	for _, name := range []string{RoleSuperadmin, RoleAdmin, RoleEnseignant, RoleParent, RoleApprenant} {
		assert.False(t, CanDeleteRole(name, false), "protected role %s", name)
		assert.False(t, CanDeleteRole(name, true), "protected role %s", name)
	}

	assert.False(t, CanDeleteRole("comptable", true))
	assert.True(t, CanDeleteRole("comptable", false))
}
