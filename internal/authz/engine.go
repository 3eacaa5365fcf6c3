package authz

// IsAdminLike reports whether roles intersects the elevated tier
// (admin, superadmin, principal, censeur).
func IsAdminLike(roles RoleSet) bool {
	for name := range roles {
		if _, ok := adminLikeRoles[name]; ok {
			return true
		}
	}
	return false
}

// CanManageOwnResource permits when the actor owns the resource or
// holds an admin-like role. Used for edit-by-creator rules on exams,
// activities and homework.
func CanManageOwnResource(actorID, ownerID int64, roles RoleSet) bool {
	if actorID != 0 && actorID == ownerID {
		return true
	}
	return IsAdminLike(roles)
}

// CanViewStudentData governs bulletins, grades, financial status and
// activities of one student. Permitted for admin-like actors, teachers,
// the student's own account, and a parent whose link to the student is
// a known fact. An unknown parent fact denies.
func CanViewStudentData(actorID int64, student StudentRef, roles RoleSet, isParent Fact) bool {
	if IsAdminLike(roles) {
		return true
	}
	if roles.Has(RoleEnseignant) {
		return true
	}
	if actorID != 0 && actorID == student.UserID {
		return true
	}
	return isParent.True()
}

// CanModifyRole permits admin-like actors to edit a role, except that
// the superadmin role is editable only by superadmins.
func CanModifyRole(roleName string, actorRoles RoleSet) bool {
	if !IsAdminLike(actorRoles) {
		return false
	}
	if roleName == RoleSuperadmin && !actorRoles.Has(RoleSuperadmin) {
		return false
	}
	return true
}

// CanDeleteRole permits deletion only of non-protected roles that are
// not assigned to any user.
func CanDeleteRole(roleName string, assignedToAnyUser bool) bool {
	if IsProtectedRole(roleName) {
		return false
	}
	return !assignedToAnyUser
}
