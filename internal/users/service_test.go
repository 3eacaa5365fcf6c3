package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

type mockUserRepo struct {
	users      map[int64]User
	hashes     map[int64]string
	userRoles  map[int64]map[int64]struct{}
	knownRoles map[int64]bool
	nextID     int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:      make(map[int64]User),
		hashes:     make(map[int64]string),
		userRoles:  make(map[int64]map[int64]struct{}),
		knownRoles: map[int64]bool{1: true, 2: true},
		nextID:     1,
	}
}

func (m *mockUserRepo) ListUsers(_ context.Context, filter ListFilter) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		if u.EstablishmentID == filter.EstablishmentID {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *mockUserRepo) GetUser(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &u, nil
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *User, passwordHash string) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = *user
	m.hashes[user.ID] = passwordHash
	return nil
}

func (m *mockUserRepo) UpdateUser(_ context.Context, user *User) error {
	current, ok := m.users[user.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	current.Email, current.Name, current.Phone = user.Email, user.Name, user.Phone
	m.users[user.ID] = current
	return nil
}

func (m *mockUserRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}

func (m *mockUserRepo) AttachRole(_ context.Context, userID, roleID int64) error {
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[int64]struct{})
	}
	m.userRoles[userID][roleID] = struct{}{}
	return nil
}

func (m *mockUserRepo) DetachRole(_ context.Context, userID, roleID int64) error {
	delete(m.userRoles[userID], roleID)
	return nil
}

func (m *mockUserRepo) RoleExists(_ context.Context, roleID int64) (bool, error) {
	return m.knownRoles[roleID], nil
}

var _ RepositoryPort = (*mockUserRepo)(nil)

func testActor() shared.Actor {
	return shared.Actor{UserID: 1, EstablishmentID: 1, Roles: []string{"admin"}}
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo, nil)

	user := User{EstablishmentID: 1, Email: "a@school.test", Name: "A"}
	require.NoError(t, svc.CreateUser(context.Background(), testActor(), &user, "s3cret-pass"))

	assert.True(t, user.IsActive)
	hash := repo.hashes[user.ID]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo, nil)

	first := User{EstablishmentID: 1, Email: "a@school.test", Name: "A"}
	require.NoError(t, svc.CreateUser(context.Background(), testActor(), &first, "s3cret-pass"))

	dup := User{EstablishmentID: 1, Email: "a@school.test", Name: "B"}
	assert.ErrorIs(t, svc.CreateUser(context.Background(), testActor(), &dup, "s3cret-pass"), httpx.ErrConflict)
}

func TestArchiveAndRestore(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo, nil)

	user := User{EstablishmentID: 1, Email: "a@school.test", Name: "A"}
	require.NoError(t, svc.CreateUser(context.Background(), testActor(), &user, "s3cret-pass"))

	require.NoError(t, svc.ArchiveUser(context.Background(), testActor(), user.ID))
	got, err := svc.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	// Archived, not deleted.
	assert.False(t, got.IsActive)

	require.NoError(t, svc.RestoreUser(context.Background(), testActor(), user.ID))
	got, err = svc.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestAttachRoleIdempotent(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo, nil)

	user := User{EstablishmentID: 1, Email: "a@school.test", Name: "A"}
	require.NoError(t, svc.CreateUser(context.Background(), testActor(), &user, "s3cret-pass"))

	require.NoError(t, svc.AttachRole(context.Background(), testActor(), user.ID, 1))
	require.NoError(t, svc.AttachRole(context.Background(), testActor(), user.ID, 1))
	assert.Len(t, repo.userRoles[user.ID], 1)

	assert.ErrorIs(t, svc.AttachRole(context.Background(), testActor(), user.ID, 99), httpx.ErrNotFound)

	require.NoError(t, svc.DetachRole(context.Background(), testActor(), user.ID, 1))
	assert.Empty(t, repo.userRoles[user.ID])
}
