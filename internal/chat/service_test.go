package chat

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

type participantKey struct {
	roomID int64
	userID int64
}

type mockChatRepo struct {
	rooms        map[int64]Room
	participants map[participantKey]Participant
	messages     []Message
	classRoster  map[int64][]int64
	classParents map[int64][]int64
	deptTeachers map[int64][]int64
	adminStaff   map[int64][]int64
	nextRoomID   int64
	nextMsgID    int64
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{
		rooms:        make(map[int64]Room),
		participants: make(map[participantKey]Participant),
		classRoster:  make(map[int64][]int64),
		classParents: make(map[int64][]int64),
		deptTeachers: make(map[int64][]int64),
		adminStaff:   make(map[int64][]int64),
		nextRoomID:   1,
		nextMsgID:    1,
	}
}

func (m *mockChatRepo) CreateRoom(_ context.Context, room *Room, participants []Participant) error {
	room.ID = m.nextRoomID
	m.nextRoomID++
	room.CreatedAt = time.Now()
	m.rooms[room.ID] = *room
	for _, p := range participants {
		p.RoomID = room.ID
		m.participants[participantKey{room.ID, p.UserID}] = p
	}
	return nil
}

func (m *mockChatRepo) GetRoom(_ context.Context, id int64) (*Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &r, nil
}

func (m *mockChatRepo) ListRoomsForUser(_ context.Context, userID int64) ([]Room, error) {
	var out []Room
	for key, p := range m.participants {
		if p.UserID == userID {
			out = append(out, m.rooms[key.roomID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockChatRepo) FindDirectRoom(_ context.Context, userA, userB int64) (*Room, error) {
	for id, room := range m.rooms {
		if room.Type != RoomTeacherStudent {
			continue
		}
		_, hasA := m.participants[participantKey{id, userA}]
		_, hasB := m.participants[participantKey{id, userB}]
		if hasA && hasB {
			return &room, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *mockChatRepo) GetParticipant(_ context.Context, roomID, userID int64) (*Participant, error) {
	p, ok := m.participants[participantKey{roomID, userID}]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &p, nil
}

func (m *mockChatRepo) ListParticipants(_ context.Context, roomID int64) ([]Participant, error) {
	var out []Participant
	for key, p := range m.participants {
		if key.roomID == roomID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *mockChatRepo) AddParticipant(_ context.Context, p Participant) error {
	key := participantKey{p.RoomID, p.UserID}
	if _, exists := m.participants[key]; exists {
		return nil
	}
	m.participants[key] = p
	return nil
}

func (m *mockChatRepo) RemoveParticipant(_ context.Context, roomID, userID int64) error {
	key := participantKey{roomID, userID}
	if _, ok := m.participants[key]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.participants, key)
	return nil
}

func (m *mockChatRepo) SetParticipantRole(_ context.Context, roomID, userID int64, role authz.RoomRole) error {
	key := participantKey{roomID, userID}
	p, ok := m.participants[key]
	if !ok {
		return httpx.ErrNotFound
	}
	p.Role = role
	m.participants[key] = p
	return nil
}

func (m *mockChatRepo) CountRoomAdmins(_ context.Context, roomID int64) (int, error) {
	n := 0
	for key, p := range m.participants {
		if key.roomID == roomID && p.Role == authz.RoomAdmin {
			n++
		}
	}
	return n, nil
}

func (m *mockChatRepo) CreateMessage(_ context.Context, msg *Message) error {
	msg.ID = m.nextMsgID
	m.nextMsgID++
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockChatRepo) ListMessages(_ context.Context, roomID, beforeID int64, limit int) ([]Message, error) {
	var out []Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.messages[i]
		if msg.RoomID != roomID {
			continue
		}
		if beforeID > 0 && msg.ID >= beforeID {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *mockChatRepo) ClassRoster(_ context.Context, classID int64) ([]int64, error) {
	return m.classRoster[classID], nil
}

func (m *mockChatRepo) ClassParents(_ context.Context, classID int64) ([]int64, error) {
	return m.classParents[classID], nil
}

func (m *mockChatRepo) DepartmentTeachers(_ context.Context, departmentID int64) ([]int64, error) {
	return m.deptTeachers[departmentID], nil
}

func (m *mockChatRepo) AdminStaff(_ context.Context, establishmentID int64) ([]int64, error) {
	return m.adminStaff[establishmentID], nil
}

func teacherActor(id int64) shared.Actor {
	return shared.Actor{UserID: id, EstablishmentID: 1, Roles: []string{"enseignant"}}
}

func censeurActor(id int64) shared.Actor {
	return shared.Actor{UserID: id, EstablishmentID: 1, Roles: []string{"censeur"}}
}

func memberActor(id int64) shared.Actor {
	return shared.Actor{UserID: id, EstablishmentID: 1, Roles: []string{"apprenant"}}
}

// stubFacts treats every teacher as teaching everything unless a
// specific denial is registered.
type stubFacts struct {
	denyClass map[int64]bool
	denyDept  map[int64]bool
	err       error
}

func (f *stubFacts) IsTeacherOfClass(_ context.Context, _, classID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.denyClass[classID], nil
}

func (f *stubFacts) IsTeacherInDepartment(_ context.Context, _, deptID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.denyDept[deptID], nil
}

func newTestService(t *testing.T) (*Service, *mockChatRepo) {
	t.Helper()
	svc, repo, _ := newTestServiceWithFacts(t)
	return svc, repo
}

func newTestServiceWithFacts(t *testing.T) (*Service, *mockChatRepo, *stubFacts) {
	t.Helper()
	repo := newMockChatRepo()
	facts := &stubFacts{denyClass: map[int64]bool{}, denyDept: map[int64]bool{}}
	return NewService(repo, facts, nil, nil), repo, facts
}

func seedClassRoom(t *testing.T, svc *Service, repo *mockChatRepo, creator shared.Actor, roster ...int64) Room {
	t.Helper()
	classID := int64(5)
	repo.classRoster[classID] = roster
	room := Room{Type: RoomClasse, Name: "6eme A", RefID: &classID}
	require.NoError(t, svc.CreateRoom(context.Background(), creator, &room))
	return room
}

func TestCreateRoomGating(t *testing.T) {
	svc, repo := newTestService(t)
	classID := int64(5)
	repo.classRoster[classID] = []int64{20, 21}

	student := memberActor(20)
	room := Room{Type: RoomClasse, Name: "6eme A", RefID: &classID}
	assert.ErrorIs(t, svc.CreateRoom(context.Background(), student, &room), httpx.ErrForbidden)

	teacher := teacherActor(10)
	adminRoom := Room{Type: RoomAdministration, Name: "Direction"}
	assert.ErrorIs(t, svc.CreateRoom(context.Background(), teacher, &adminRoom), httpx.ErrForbidden)

	bogus := Room{Type: "salon", Name: "x"}
	assert.ErrorIs(t, svc.CreateRoom(context.Background(), teacher, &bogus), httpx.ErrInvalidArgument)

	missingRef := Room{Type: RoomClasse, Name: "orphan"}
	assert.ErrorIs(t, svc.CreateRoom(context.Background(), teacher, &missingRef), httpx.ErrInvalidArgument)
}

func TestCreateRoomSnapshotsRosterAndForcesCreatorAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20, 21, 10)

	parts, err := svc.ListParticipants(context.Background(), teacher, room.ID)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	byUser := make(map[int64]authz.RoomRole)
	for _, p := range parts {
		byUser[p.UserID] = p.Role
	}
	assert.Equal(t, authz.RoomAdmin, byUser[10])
	assert.Equal(t, authz.RoomMember, byUser[20])
	assert.Equal(t, authz.RoomMember, byUser[21])

	// later roster growth does not touch the room
	repo.classRoster[5] = append(repo.classRoster[5], 22)
	parts, err = svc.ListParticipants(context.Background(), teacher, room.ID)
	require.NoError(t, err)
	assert.Len(t, parts, 3)
}

func TestLastAdminCannotLeave(t *testing.T) {
	svc, repo := newTestService(t)
	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20)

	err := svc.RemoveParticipant(context.Background(), teacher, room.ID, teacher.UserID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	// promoting a second admin unblocks the exit
	require.NoError(t, svc.ChangeRole(context.Background(), teacher, room.ID, 20, authz.RoomAdmin))
	require.NoError(t, svc.RemoveParticipant(context.Background(), teacher, room.ID, teacher.UserID))

	_, err = svc.ListParticipants(context.Background(), teacher, room.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestLastAdminCannotBeDemoted(t *testing.T) {
	svc, repo := newTestService(t)
	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20)

	err := svc.ChangeRole(context.Background(), teacher, room.ID, teacher.UserID, authz.RoomMember)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestMemberMayAlwaysLeave(t *testing.T) {
	svc, repo := newTestService(t)
	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20)

	student := memberActor(20)
	require.NoError(t, svc.RemoveParticipant(context.Background(), student, room.ID, student.UserID))
}

func TestModeratorHierarchy(t *testing.T) {
	svc, repo := newTestService(t)
	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20)
	require.NoError(t, svc.ChangeRole(context.Background(), teacher, room.ID, 20, authz.RoomModerator))

	mod := memberActor(20)
	require.NoError(t, svc.AddParticipant(context.Background(), mod, room.ID, 30, authz.RoomMember))

	err := svc.AddParticipant(context.Background(), mod, room.ID, 31, authz.RoomModerator)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	err = svc.ChangeRole(context.Background(), mod, room.ID, 30, authz.RoomModerator)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	require.NoError(t, svc.RemoveParticipant(context.Background(), mod, room.ID, 30))
}

func TestUnknownRoleVocabulary(t *testing.T) {
	svc, repo := newTestService(t)
	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20)

	err := svc.AddParticipant(context.Background(), teacher, room.ID, 30, authz.RoomRole("owner"))
	assert.ErrorIs(t, err, httpx.ErrInvalidArgument)
	assert.NotErrorIs(t, err, httpx.ErrForbidden)
}

func TestNonParticipantDenied(t *testing.T) {
	svc, repo := newTestService(t)
	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20)

	outsider := memberActor(99)
	_, err := svc.PostMessage(context.Background(), outsider, room.ID, "hello")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.ListMessages(context.Background(), outsider, room.ID, 0, 0)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestMessageCursorPagination(t *testing.T) {
	svc, repo := newTestService(t)
	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20)

	for i := 0; i < 5; i++ {
		_, err := svc.PostMessage(context.Background(), teacher, room.ID, "msg")
		require.NoError(t, err)
	}

	page, err := svc.ListMessages(context.Background(), teacher, room.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, int64(5), page.Messages[0].ID)
	assert.Equal(t, int64(4), page.Messages[1].ID)
	require.NotZero(t, page.NextCursor)

	page, err = svc.ListMessages(context.Background(), teacher, room.ID, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, int64(3), page.Messages[0].ID)

	page, err = svc.ListMessages(context.Background(), teacher, room.ID, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Zero(t, page.NextCursor)
}

func TestSendDirectReusesRoom(t *testing.T) {
	svc, _ := newTestService(t)
	teacher := teacherActor(10)

	m1, err := svc.SendDirect(context.Background(), teacher, 20, "first")
	require.NoError(t, err)
	m2, err := svc.SendDirect(context.Background(), teacher, 20, "second")
	require.NoError(t, err)
	assert.Equal(t, m1.RoomID, m2.RoomID)

	rooms, err := svc.ListRooms(context.Background(), memberActor(20))
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	_, err = svc.SendDirect(context.Background(), memberActor(30), 31, "hi")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.SendDirect(context.Background(), teacher, teacher.UserID, "me")
	assert.ErrorIs(t, err, httpx.ErrInvalidArgument)
}

func TestUnreadCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newMockChatRepo()
	svc := NewService(repo, &stubFacts{}, NewUnreadCounter(rdb), nil)

	teacher := teacherActor(10)
	room := seedClassRoom(t, svc, repo, teacher, 20, 21)

	for i := 0; i < 3; i++ {
		_, err := svc.PostMessage(context.Background(), teacher, room.ID, "bonjour")
		require.NoError(t, err)
	}

	counts, err := svc.UnreadSummary(context.Background(), memberActor(20))
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[room.ID])

	// sender's own counter never moves
	counts, err = svc.UnreadSummary(context.Background(), teacher)
	require.NoError(t, err)
	assert.Zero(t, counts[room.ID])

	// reading resets
	_, err = svc.ListMessages(context.Background(), memberActor(20), room.ID, 0, 0)
	require.NoError(t, err)
	counts, err = svc.UnreadSummary(context.Background(), memberActor(20))
	require.NoError(t, err)
	assert.Zero(t, counts[room.ID])

	// the other member keeps theirs
	counts, err = svc.UnreadSummary(context.Background(), memberActor(21))
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[room.ID])
}

func TestCreateRoomTeacherScope(t *testing.T) {
	svc, repo, facts := newTestServiceWithFacts(t)

	classID := int64(7)
	repo.classRoster[classID] = []int64{30, 31}
	facts.denyClass[classID] = true

	room := Room{Type: RoomClasse, Name: "5eme B", RefID: &classID}
	err := svc.CreateRoom(context.Background(), teacherActor(10), &room)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	// Admin-like actors are not bound to the teaching relationship.
	other := Room{Type: RoomClasse, Name: "5eme B", RefID: &classID}
	assert.NoError(t, svc.CreateRoom(context.Background(), censeurActor(1), &other))
}

func TestCreateRoomTeacherScopeLookupFailureDenies(t *testing.T) {
	svc, repo, facts := newTestServiceWithFacts(t)
	facts.err = errors.New("facts store down")

	classID := int64(5)
	repo.classRoster[classID] = []int64{20}
	room := Room{Type: RoomClasse, Name: "6eme A", RefID: &classID}
	err := svc.CreateRoom(context.Background(), teacherActor(10), &room)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}
