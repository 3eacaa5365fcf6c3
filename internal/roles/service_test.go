package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

type mockRepo struct {
	roles       map[int64]Role
	perms       map[int64]Permission
	assignments map[int64][]int64 // role -> user ids
	links       map[int64]map[int64]struct{}
	nextID      int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		roles:       make(map[int64]Role),
		perms:       make(map[int64]Permission),
		assignments: make(map[int64][]int64),
		links:       make(map[int64]map[int64]struct{}),
		nextID:      1,
	}
}

func (m *mockRepo) ListRoles(_ context.Context, establishmentID int64) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		if r.EstablishmentID == establishmentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) GetRole(_ context.Context, id int64) (*Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &r, nil
}

func (m *mockRepo) CreateRole(_ context.Context, role *Role) error {
	for _, r := range m.roles {
		if r.EstablishmentID == role.EstablishmentID && r.Name == role.Name {
			return ErrDuplicate
		}
	}
	role.ID = m.nextID
	m.nextID++
	m.roles[role.ID] = *role
	return nil
}

func (m *mockRepo) UpdateRole(_ context.Context, role *Role) error {
	current, ok := m.roles[role.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	for _, r := range m.roles {
		if r.ID != role.ID && r.EstablishmentID == current.EstablishmentID && r.Name == role.Name {
			return ErrDuplicate
		}
	}
	current.Name = role.Name
	current.Description = role.Description
	m.roles[role.ID] = current
	return nil
}

func (m *mockRepo) DeleteRole(_ context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *mockRepo) CountAssignments(_ context.Context, roleID int64) (int, error) {
	return len(m.assignments[roleID]), nil
}

func (m *mockRepo) ListRoleUsers(_ context.Context, roleID int64) ([]RoleUser, error) {
	var out []RoleUser
	for _, id := range m.assignments[roleID] {
		out = append(out, RoleUser{ID: id})
	}
	return out, nil
}

func (m *mockRepo) ListPermissions(_ context.Context, establishmentID int64) ([]Permission, error) {
	var out []Permission
	for _, p := range m.perms {
		if p.EstablishmentID == establishmentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) GetPermission(_ context.Context, id int64) (*Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &p, nil
}

func (m *mockRepo) CreatePermission(_ context.Context, p *Permission) error {
	for _, existing := range m.perms {
		if existing.EstablishmentID == p.EstablishmentID && existing.Functionality == p.Functionality {
			return ErrDuplicate
		}
	}
	p.ID = m.nextID
	m.nextID++
	m.perms[p.ID] = *p
	return nil
}

func (m *mockRepo) UpdatePermission(_ context.Context, p *Permission) error {
	current, ok := m.perms[p.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	current.CanView, current.CanAdd, current.CanEdit, current.CanDelete = p.CanView, p.CanAdd, p.CanEdit, p.CanDelete
	m.perms[p.ID] = current
	return nil
}

func (m *mockRepo) DeletePermission(_ context.Context, id int64) error {
	if _, ok := m.perms[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.perms, id)
	return nil
}

func (m *mockRepo) AssignPermission(_ context.Context, roleID, permissionID int64) error {
	if m.links[roleID] == nil {
		m.links[roleID] = make(map[int64]struct{})
	}
	m.links[roleID][permissionID] = struct{}{}
	return nil
}

func (m *mockRepo) RemovePermission(_ context.Context, roleID, permissionID int64) error {
	delete(m.links[roleID], permissionID)
	return nil
}

func (m *mockRepo) ListRolePermissions(_ context.Context, roleID int64) ([]Permission, error) {
	var out []Permission
	for id := range m.links[roleID] {
		out = append(out, m.perms[id])
	}
	return out, nil
}

func (m *mockRepo) ListPermissionRoles(_ context.Context, permissionID int64) ([]Role, error) {
	var out []Role
	for roleID, perms := range m.links {
		if _, ok := perms[permissionID]; ok {
			out = append(out, m.roles[roleID])
		}
	}
	return out, nil
}

var _ RepositoryPort = (*mockRepo)(nil)

func adminActor() shared.Actor {
	return shared.Actor{UserID: 1, EstablishmentID: 1, Roles: []string{authz.RoleAdmin}}
}

func newRolesService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	return NewService(repo, nil), repo
}

func TestCreateRoleDuplicateName(t *testing.T) {
	svc, _ := newRolesService(t)

	role := Role{EstablishmentID: 1, Name: "comptable"}
	require.NoError(t, svc.CreateRole(context.Background(), adminActor(), &role))

	dup := Role{EstablishmentID: 1, Name: "comptable"}
	assert.ErrorIs(t, svc.CreateRole(context.Background(), adminActor(), &dup), httpx.ErrConflict)

	// Same name in another establishment is a separate namespace.
	other := Role{EstablishmentID: 2, Name: "comptable"}
	assert.NoError(t, svc.CreateRole(context.Background(), adminActor(), &other))
}

func TestUpdateRoleSuperadminGuard(t *testing.T) {
	svc, repo := newRolesService(t)
	repo.roles[10] = Role{ID: 10, EstablishmentID: 1, Name: authz.RoleSuperadmin}

	err := svc.UpdateRole(context.Background(), adminActor(), &Role{ID: 10, Name: authz.RoleSuperadmin, Description: "x"})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	super := shared.Actor{UserID: 2, EstablishmentID: 1, Roles: []string{authz.RoleSuperadmin}}
	err = svc.UpdateRole(context.Background(), super, &Role{ID: 10, Name: authz.RoleSuperadmin, Description: "x"})
	assert.NoError(t, err)
}

func TestUpdateRoleProtectedRename(t *testing.T) {
	svc, repo := newRolesService(t)
	repo.roles[11] = Role{ID: 11, EstablishmentID: 1, Name: authz.RoleEnseignant}

	err := svc.UpdateRole(context.Background(), adminActor(), &Role{ID: 11, Name: "profs", Description: ""})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	// Editing the description while keeping the name is allowed.
	err = svc.UpdateRole(context.Background(), adminActor(), &Role{ID: 11, Name: authz.RoleEnseignant, Description: "teaching staff"})
	assert.NoError(t, err)
}

func TestDeleteRoleGuards(t *testing.T) {
	svc, repo := newRolesService(t)
	repo.roles[10] = Role{ID: 10, EstablishmentID: 1, Name: authz.RoleAdmin}
	repo.roles[11] = Role{ID: 11, EstablishmentID: 1, Name: "comptable"}
	repo.assignments[11] = []int64{7}

	// Protected role: forbidden even with zero assignments.
	assert.ErrorIs(t, svc.DeleteRole(context.Background(), adminActor(), 10), httpx.ErrForbidden)

	// Custom role still held by a user: conflict.
	assert.ErrorIs(t, svc.DeleteRole(context.Background(), adminActor(), 11), httpx.ErrConflict)

	// Unassigned custom role deletes fine.
	repo.assignments[11] = nil
	assert.NoError(t, svc.DeleteRole(context.Background(), adminActor(), 11))

	assert.ErrorIs(t, svc.DeleteRole(context.Background(), adminActor(), 99), httpx.ErrNotFound)
}

func TestAssignPermissionIdempotent(t *testing.T) {
	svc, repo := newRolesService(t)
	repo.roles[11] = Role{ID: 11, EstablishmentID: 1, Name: "comptable"}
	repo.perms[20] = Permission{ID: 20, EstablishmentID: 1, Functionality: shared.FuncFinances, CanView: true}

	require.NoError(t, svc.AssignPermission(context.Background(), adminActor(), 11, 20))
	// Assigning twice does not duplicate.
	require.NoError(t, svc.AssignPermission(context.Background(), adminActor(), 11, 20))

	perms, err := svc.RolePermissions(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, shared.FuncFinances, perms[0].Functionality)

	roles, err := svc.PermissionRoles(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, int64(11), roles[0].ID)
}

func TestAssignPermissionSuperadminImmutable(t *testing.T) {
	svc, repo := newRolesService(t)
	repo.roles[10] = Role{ID: 10, EstablishmentID: 1, Name: authz.RoleSuperadmin}
	repo.perms[20] = Permission{ID: 20, EstablishmentID: 1, Functionality: shared.FuncUsers}

	err := svc.AssignPermission(context.Background(), adminActor(), 10, 20)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	err = svc.RemovePermission(context.Background(), adminActor(), 10, 20)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestCreatePermissionDuplicateScope(t *testing.T) {
	svc, _ := newRolesService(t)

	p := Permission{EstablishmentID: 1, Functionality: shared.FuncTimetable, CanView: true}
	require.NoError(t, svc.CreatePermission(context.Background(), adminActor(), &p))

	dup := Permission{EstablishmentID: 1, Functionality: shared.FuncTimetable}
	assert.ErrorIs(t, svc.CreatePermission(context.Background(), adminActor(), &dup), httpx.ErrConflict)
}
