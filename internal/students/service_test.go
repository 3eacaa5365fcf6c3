package students

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

type mockStudentRepo struct {
	students  map[int64]Student
	parents   map[[2]int64]bool
	classes   map[int64]bool
	parentErr error
	nextID    int64
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{
		students: make(map[int64]Student),
		parents:  make(map[[2]int64]bool),
		classes:  make(map[int64]bool),
		nextID:   1,
	}
}

func (m *mockStudentRepo) List(_ context.Context, filter SearchFilter) ([]Student, int, error) {
	var out []Student
	q := FoldName(filter.Query)
	for _, s := range m.students {
		if s.EstablishmentID != filter.EstablishmentID {
			continue
		}
		if q != "" && !containsFolded(s, q) {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func containsFolded(s Student, q string) bool {
	name := FoldName(s.FirstName + " " + s.LastName)
	return len(q) <= len(name) && index(name, q)
}

func index(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func (m *mockStudentRepo) Get(_ context.Context, id int64) (*Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &s, nil
}

func (m *mockStudentRepo) Create(_ context.Context, s *Student) error {
	for _, existing := range m.students {
		if existing.EstablishmentID == s.EstablishmentID && existing.Matricule == s.Matricule {
			return ErrDuplicate
		}
	}
	s.ID = m.nextID
	m.nextID++
	m.students[s.ID] = *s
	return nil
}

func (m *mockStudentRepo) Update(_ context.Context, s *Student) error {
	existing, ok := m.students[s.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	existing.FirstName, existing.LastName, existing.BirthDate = s.FirstName, s.LastName, s.BirthDate
	m.students[s.ID] = existing
	return nil
}

func (m *mockStudentRepo) Archive(_ context.Context, id int64) error {
	if _, ok := m.students[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) AssignClass(_ context.Context, studentID int64, classID *int64) error {
	s, ok := m.students[studentID]
	if !ok {
		return httpx.ErrNotFound
	}
	s.ClassID = classID
	m.students[studentID] = s
	return nil
}

func (m *mockStudentRepo) ClassExists(_ context.Context, classID int64) (bool, error) {
	return m.classes[classID], nil
}

func (m *mockStudentRepo) AddParentLink(_ context.Context, link ParentLink) error {
	m.parents[[2]int64{link.ParentUserID, link.StudentID}] = true
	return nil
}

func (m *mockStudentRepo) RemoveParentLink(_ context.Context, studentID, parentUserID int64) error {
	key := [2]int64{parentUserID, studentID}
	if !m.parents[key] {
		return httpx.ErrNotFound
	}
	delete(m.parents, key)
	return nil
}

func (m *mockStudentRepo) ListParents(_ context.Context, studentID int64) ([]ParentLink, error) {
	var out []ParentLink
	for key := range m.parents {
		if key[1] == studentID {
			out = append(out, ParentLink{StudentID: studentID, ParentUserID: key[0]})
		}
	}
	return out, nil
}

func (m *mockStudentRepo) IsParentOf(_ context.Context, parentUserID, studentID int64) (bool, error) {
	if m.parentErr != nil {
		return false, m.parentErr
	}
	return m.parents[[2]int64{parentUserID, studentID}], nil
}

func staffActor() shared.Actor {
	return shared.Actor{UserID: 1, EstablishmentID: 1, Roles: []string{"admin"}}
}

func seedStudent(t *testing.T, svc *Service, repo *mockStudentRepo, userID *int64) Student {
	t.Helper()
	st := Student{Matricule: "MAT-001", FirstName: "Aïcha", LastName: "Bénédicte", UserID: userID}
	require.NoError(t, svc.Create(context.Background(), staffActor(), &st))
	return st
}

func TestGetStudentVisibility(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewService(repo, nil)
	accountID := int64(42)
	st := seedStudent(t, svc, repo, &accountID)

	cases := []struct {
		name    string
		actor   shared.Actor
		allowed bool
	}{
		{"admin", shared.Actor{UserID: 1, EstablishmentID: 1, Roles: []string{"admin"}}, true},
		{"censeur", shared.Actor{UserID: 2, EstablishmentID: 1, Roles: []string{"censeur"}}, true},
		{"teacher", shared.Actor{UserID: 3, EstablishmentID: 1, Roles: []string{"enseignant"}}, true},
		{"self", shared.Actor{UserID: 42, EstablishmentID: 1, Roles: []string{"apprenant"}}, true},
		{"other student", shared.Actor{UserID: 43, EstablishmentID: 1, Roles: []string{"apprenant"}}, false},
		{"unlinked parent", shared.Actor{UserID: 50, EstablishmentID: 1, Roles: []string{"parent"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Get(context.Background(), tc.actor, st.ID)
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, st.ID, got.ID)
			} else {
				assert.ErrorIs(t, err, httpx.ErrForbidden)
			}
		})
	}
}

func TestGetStudentLinkedParent(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewService(repo, nil)
	st := seedStudent(t, svc, repo, nil)
	repo.parents[[2]int64{50, st.ID}] = true

	parent := shared.Actor{UserID: 50, EstablishmentID: 1, Roles: []string{"parent"}}
	got, err := svc.Get(context.Background(), parent, st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)
}

func TestGetStudentParentLookupFailureDenies(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewService(repo, nil)
	st := seedStudent(t, svc, repo, nil)
	repo.parents[[2]int64{50, st.ID}] = true
	repo.parentErr = errors.New("connection reset")

	parent := shared.Actor{UserID: 50, EstablishmentID: 1, Roles: []string{"parent"}}
	_, err := svc.Get(context.Background(), parent, st.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestGetStudentOtherEstablishment(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewService(repo, nil)
	st := seedStudent(t, svc, repo, nil)

	outsider := shared.Actor{UserID: 9, EstablishmentID: 2, Roles: []string{"admin"}}
	_, err := svc.Get(context.Background(), outsider, st.ID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateStudentDuplicateMatricule(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewService(repo, nil)
	seedStudent(t, svc, repo, nil)

	dup := Student{Matricule: "MAT-001", FirstName: "Jean", LastName: "Dupont"}
	assert.ErrorIs(t, svc.Create(context.Background(), staffActor(), &dup), httpx.ErrConflict)
}

func TestAssignClassChecksReference(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewService(repo, nil)
	st := seedStudent(t, svc, repo, nil)

	classID := int64(7)
	assert.ErrorIs(t, svc.AssignClass(context.Background(), staffActor(), st.ID, &classID), httpx.ErrNotFound)

	repo.classes[7] = true
	require.NoError(t, svc.AssignClass(context.Background(), staffActor(), st.ID, &classID))
	assert.Equal(t, int64(7), *repo.students[st.ID].ClassID)

	require.NoError(t, svc.AssignClass(context.Background(), staffActor(), st.ID, nil))
	assert.Nil(t, repo.students[st.ID].ClassID)
}

func TestSearchFoldsAccents(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewService(repo, nil)
	seedStudent(t, svc, repo, nil)

	items, _, err := svc.List(context.Background(), staffActor(), SearchFilter{Query: "benedicte"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Bénédicte", items[0].LastName)

	items, _, err = svc.List(context.Background(), staffActor(), SearchFilter{Query: "zidane"})
	require.NoError(t, err)
	assert.Empty(t, items)
}
