package school

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

type mockSchoolRepo struct {
	RepositoryPort
	establishments map[int64]Establishment
	years          map[int64]AcademicYear
	classes        map[int64]Class
	nextID         int64
}

func newMockSchoolRepo() *mockSchoolRepo {
	return &mockSchoolRepo{
		establishments: make(map[int64]Establishment),
		years:          make(map[int64]AcademicYear),
		classes:        make(map[int64]Class),
		nextID:         1,
	}
}

func (m *mockSchoolRepo) CreateEstablishment(_ context.Context, e *Establishment) error {
	for _, existing := range m.establishments {
		if existing.Code == e.Code {
			return ErrDuplicate
		}
	}
	e.ID = m.nextID
	m.nextID++
	m.establishments[e.ID] = *e
	return nil
}

func (m *mockSchoolRepo) CreateAcademicYear(_ context.Context, y *AcademicYear) error {
	y.ID = m.nextID
	m.nextID++
	m.years[y.ID] = *y
	return nil
}

func (m *mockSchoolRepo) SetCurrentAcademicYear(_ context.Context, establishmentID, yearID int64) error {
	if _, ok := m.years[yearID]; !ok {
		return httpx.ErrNotFound
	}
	for id, y := range m.years {
		if y.EstablishmentID == establishmentID {
			y.IsCurrent = id == yearID
			m.years[id] = y
		}
	}
	return nil
}

func (m *mockSchoolRepo) CreateClass(_ context.Context, c *Class) error {
	for _, existing := range m.classes {
		if existing.EstablishmentID == c.EstablishmentID && existing.Name == c.Name {
			return ErrDuplicate
		}
	}
	c.ID = m.nextID
	m.nextID++
	m.classes[c.ID] = *c
	return nil
}

func schoolActor() shared.Actor {
	return shared.Actor{UserID: 1, EstablishmentID: 1, Roles: []string{"admin"}}
}

func TestCreateEstablishmentDuplicateCode(t *testing.T) {
	repo := newMockSchoolRepo()
	svc := NewService(repo, nil)

	e := Establishment{Name: "Lycee A", Code: "LYA"}
	require.NoError(t, svc.CreateEstablishment(context.Background(), schoolActor(), &e))

	dup := Establishment{Name: "Lycee B", Code: "LYA"}
	assert.ErrorIs(t, svc.CreateEstablishment(context.Background(), schoolActor(), &dup), httpx.ErrConflict)

	empty := Establishment{}
	assert.ErrorIs(t, svc.CreateEstablishment(context.Background(), schoolActor(), &empty), httpx.ErrInvalidArgument)
}

func TestCreateAcademicYearDateOrder(t *testing.T) {
	repo := newMockSchoolRepo()
	svc := NewService(repo, nil)

	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	bad := AcademicYear{EstablishmentID: 1, Label: "2025-2026", StartDate: start, EndDate: start}
	assert.ErrorIs(t, svc.CreateAcademicYear(context.Background(), schoolActor(), &bad), httpx.ErrInvalidArgument)

	good := AcademicYear{EstablishmentID: 1, Label: "2025-2026", StartDate: start, EndDate: start.AddDate(0, 10, 0)}
	assert.NoError(t, svc.CreateAcademicYear(context.Background(), schoolActor(), &good))
}

func TestSetCurrentAcademicYearExclusive(t *testing.T) {
	repo := newMockSchoolRepo()
	svc := NewService(repo, nil)

	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	y1 := AcademicYear{EstablishmentID: 1, Label: "2024-2025", StartDate: start, EndDate: start.AddDate(0, 10, 0)}
	y2 := AcademicYear{EstablishmentID: 1, Label: "2025-2026", StartDate: start.AddDate(1, 0, 0), EndDate: start.AddDate(1, 10, 0)}
	require.NoError(t, svc.CreateAcademicYear(context.Background(), schoolActor(), &y1))
	require.NoError(t, svc.CreateAcademicYear(context.Background(), schoolActor(), &y2))

	require.NoError(t, svc.SetCurrentAcademicYear(context.Background(), schoolActor(), 1, y2.ID))
	assert.False(t, repo.years[y1.ID].IsCurrent)
	assert.True(t, repo.years[y2.ID].IsCurrent)

	require.NoError(t, svc.SetCurrentAcademicYear(context.Background(), schoolActor(), 1, y1.ID))
	assert.True(t, repo.years[y1.ID].IsCurrent)
	assert.False(t, repo.years[y2.ID].IsCurrent)

	assert.ErrorIs(t, svc.SetCurrentAcademicYear(context.Background(), schoolActor(), 1, 999), httpx.ErrNotFound)
}

func TestCreateClassDuplicateName(t *testing.T) {
	repo := newMockSchoolRepo()
	svc := NewService(repo, nil)

	c := Class{EstablishmentID: 1, Name: "6eme A"}
	require.NoError(t, svc.CreateClass(context.Background(), schoolActor(), &c))

	dup := Class{EstablishmentID: 1, Name: "6eme A"}
	assert.ErrorIs(t, svc.CreateClass(context.Background(), schoolActor(), &dup), httpx.ErrConflict)
}
