package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
	"github.com/scolaris/scolaris/internal/shared"
)

const (
	maxMessageLength = 4000
	defaultPageSize  = 50
	maxPageSize      = 200
)

// FactsPort answers the teaching-relationship questions that gate room
// creation for non-admin actors.
type FactsPort interface {
	IsTeacherOfClass(ctx context.Context, userID, classID int64) (bool, error)
	IsTeacherInDepartment(ctx context.Context, userID, departmentID int64) (bool, error)
}

// Service implements chat rooms, membership and messaging.
type Service struct {
	repo   RepositoryPort
	facts  FactsPort
	unread *UnreadCounter
	audit  *shared.AuditLogger
}

// NewService builds the service. facts may be nil, which skips the
// teacher-scope check; unread may be nil when redis is not configured,
// counters then silently no-op.
func NewService(repo RepositoryPort, facts FactsPort, unread *UnreadCounter, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, facts: facts, unread: unread, audit: audit}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, roomID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "chat_room",
		EntityID: strconv.FormatInt(roomID, 10),
	})
}

// mapRoomErr translates the room-hierarchy vocabulary into transport
// sentinels.
func mapRoomErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, authz.ErrInvalidArgument):
		return fmt.Errorf("%w: %v", httpx.ErrInvalidArgument, err)
	case errors.Is(err, authz.ErrRoomDenied):
		return fmt.Errorf("%w: %v", httpx.ErrForbidden, err)
	default:
		return err
	}
}

func canCreateRoom(roomType RoomType, roles authz.RoleSet) bool {
	switch roomType {
	case RoomAdministration:
		return authz.IsAdminLike(roles)
	case RoomClasse, RoomDepartement, RoomParents, RoomTeacherStudent:
		return authz.IsAdminLike(roles) || roles.Has(authz.RoleEnseignant)
	}
	return false
}

// CreateRoom opens a room and seeds its membership from the roster the
// room type implies. The creator always ends up room admin.
func (s *Service) CreateRoom(ctx context.Context, actor shared.Actor, room *Room) error {
	if !ValidRoomType(room.Type) {
		return fmt.Errorf("%w: unknown room type %q", httpx.ErrInvalidArgument, room.Type)
	}
	if strings.TrimSpace(room.Name) == "" {
		return fmt.Errorf("%w: room name required", httpx.ErrInvalidArgument)
	}
	roles := authz.NewRoleSet(actor.Roles...)
	if !canCreateRoom(room.Type, roles) {
		return fmt.Errorf("%w: cannot create %s rooms", httpx.ErrForbidden, room.Type)
	}
	if !authz.IsAdminLike(roles) {
		if err := s.checkTeacherScope(ctx, actor.UserID, room); err != nil {
			return err
		}
	}

	members, err := s.seedMembers(ctx, actor, room)
	if err != nil {
		return err
	}

	participants := make([]Participant, 0, len(members)+1)
	for _, userID := range members {
		if userID == actor.UserID {
			continue
		}
		participants = append(participants, Participant{UserID: userID, Role: authz.RoomMember})
	}
	participants = append(participants, Participant{UserID: actor.UserID, Role: authz.RoomAdmin})

	room.EstablishmentID = actor.EstablishmentID
	room.CreatedBy = actor.UserID
	if err := s.repo.CreateRoom(ctx, room, participants); err != nil {
		return err
	}
	s.record(ctx, actor, "chat.room.create", room.ID)
	return nil
}

// checkTeacherScope requires a non-admin creator to actually teach the
// class or department a room is anchored to. A failed lookup denies.
func (s *Service) checkTeacherScope(ctx context.Context, userID int64, room *Room) error {
	if s.facts == nil || room.RefID == nil {
		return nil
	}
	var fact authz.Fact
	switch room.Type {
	case RoomClasse, RoomParents:
		fact = authz.FactFromLookup(s.facts.IsTeacherOfClass(ctx, userID, *room.RefID))
	case RoomDepartement:
		fact = authz.FactFromLookup(s.facts.IsTeacherInDepartment(ctx, userID, *room.RefID))
	default:
		return nil
	}
	if !fact.True() {
		return fmt.Errorf("%w: not a teacher of this %s", httpx.ErrForbidden, room.Type)
	}
	return nil
}

// seedMembers resolves the roster snapshot for a new room. Later
// roster changes do not touch existing rooms.
func (s *Service) seedMembers(ctx context.Context, actor shared.Actor, room *Room) ([]int64, error) {
	switch room.Type {
	case RoomClasse:
		if room.RefID == nil {
			return nil, fmt.Errorf("%w: classe room requires ref_id", httpx.ErrInvalidArgument)
		}
		return s.repo.ClassRoster(ctx, *room.RefID)
	case RoomParents:
		if room.RefID == nil {
			return nil, fmt.Errorf("%w: parents room requires ref_id", httpx.ErrInvalidArgument)
		}
		return s.repo.ClassParents(ctx, *room.RefID)
	case RoomDepartement:
		if room.RefID == nil {
			return nil, fmt.Errorf("%w: departement room requires ref_id", httpx.ErrInvalidArgument)
		}
		return s.repo.DepartmentTeachers(ctx, *room.RefID)
	case RoomAdministration:
		return s.repo.AdminStaff(ctx, actor.EstablishmentID)
	case RoomTeacherStudent:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown room type %q", httpx.ErrInvalidArgument, room.Type)
}

// SendDirect posts into the one-to-one room between the actor and the
// recipient, creating the room on first contact. Used by the bulk
// messaging job.
func (s *Service) SendDirect(ctx context.Context, actor shared.Actor, recipientID int64, body string) (*Message, error) {
	if recipientID == actor.UserID {
		return nil, fmt.Errorf("%w: cannot message yourself", httpx.ErrInvalidArgument)
	}
	room, err := s.repo.FindDirectRoom(ctx, actor.UserID, recipientID)
	if errors.Is(err, httpx.ErrNotFound) {
		if !canCreateRoom(RoomTeacherStudent, authz.NewRoleSet(actor.Roles...)) {
			return nil, fmt.Errorf("%w: cannot open direct rooms", httpx.ErrForbidden)
		}
		room = &Room{
			EstablishmentID: actor.EstablishmentID,
			Type:            RoomTeacherStudent,
			Name:            fmt.Sprintf("direct:%d:%d", actor.UserID, recipientID),
			CreatedBy:       actor.UserID,
		}
		participants := []Participant{
			{UserID: recipientID, Role: authz.RoomMember},
			{UserID: actor.UserID, Role: authz.RoomAdmin},
		}
		if err := s.repo.CreateRoom(ctx, room, participants); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s.PostMessage(ctx, actor, room.ID, body)
}

// ListRooms returns the actor's rooms.
func (s *Service) ListRooms(ctx context.Context, actor shared.Actor) ([]Room, error) {
	return s.repo.ListRoomsForUser(ctx, actor.UserID)
}

// ListParticipants returns the membership of a room the actor belongs
// to.
func (s *Service) ListParticipants(ctx context.Context, actor shared.Actor, roomID int64) ([]Participant, error) {
	if _, err := s.requireParticipant(ctx, actor, roomID); err != nil {
		return nil, err
	}
	return s.repo.ListParticipants(ctx, roomID)
}

func (s *Service) requireParticipant(ctx context.Context, actor shared.Actor, roomID int64) (*Participant, error) {
	p, err := s.repo.GetParticipant(ctx, roomID, actor.UserID)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, fmt.Errorf("%w: not a participant of room %d", httpx.ErrForbidden, roomID)
	}
	return p, err
}

// lastAdminFact reports whether target holds the room's only admin
// seat. Only computed when the answer can matter.
func (s *Service) lastAdminFact(ctx context.Context, roomID int64, target authz.RoomRole) (bool, error) {
	if target != authz.RoomAdmin {
		return false, nil
	}
	n, err := s.repo.CountRoomAdmins(ctx, roomID)
	if err != nil {
		return false, err
	}
	return n <= 1, nil
}

// AddParticipant adds a user to a room with the given role.
func (s *Service) AddParticipant(ctx context.Context, actor shared.Actor, roomID, userID int64, role authz.RoomRole) error {
	p, err := s.requireParticipant(ctx, actor, roomID)
	if err != nil {
		return err
	}
	if err := mapRoomErr(authz.RoomActionAllowed(p.Role, authz.RoomActionAdd, role, false)); err != nil {
		return err
	}
	if err := s.repo.AddParticipant(ctx, Participant{RoomID: roomID, UserID: userID, Role: role}); err != nil {
		return err
	}
	s.record(ctx, actor, "chat.participant.add", roomID)
	return nil
}

// RemoveParticipant removes a user from a room. Self-removal is a
// leave, which any participant may do unless they hold the last admin
// seat.
func (s *Service) RemoveParticipant(ctx context.Context, actor shared.Actor, roomID, userID int64) error {
	p, err := s.requireParticipant(ctx, actor, roomID)
	if err != nil {
		return err
	}

	action := authz.RoomActionRemove
	target := p.Role
	if userID == actor.UserID {
		action = authz.RoomActionLeave
	} else {
		tp, err := s.repo.GetParticipant(ctx, roomID, userID)
		if err != nil {
			return err
		}
		target = tp.Role
	}

	lastAdmin, err := s.lastAdminFact(ctx, roomID, target)
	if err != nil {
		return err
	}
	if err := mapRoomErr(authz.RoomActionAllowed(p.Role, action, target, lastAdmin)); err != nil {
		return err
	}
	if err := s.repo.RemoveParticipant(ctx, roomID, userID); err != nil {
		return err
	}
	s.record(ctx, actor, "chat.participant.remove", roomID)
	return nil
}

// ChangeRole moves a participant to a new room role. Demoting the last
// admin is rejected; promoting alongside an existing admin is fine.
func (s *Service) ChangeRole(ctx context.Context, actor shared.Actor, roomID, userID int64, newRole authz.RoomRole) error {
	p, err := s.requireParticipant(ctx, actor, roomID)
	if err != nil {
		return err
	}
	tp, err := s.repo.GetParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if tp.Role == newRole {
		return nil
	}

	lastAdmin := false
	if newRole != authz.RoomAdmin {
		lastAdmin, err = s.lastAdminFact(ctx, roomID, tp.Role)
		if err != nil {
			return err
		}
	}
	if err := mapRoomErr(authz.RoomActionAllowed(p.Role, authz.RoomActionChangeRole, tp.Role, lastAdmin)); err != nil {
		return err
	}
	if !validNewRole(newRole) {
		return fmt.Errorf("%w: unknown room role %q", httpx.ErrInvalidArgument, newRole)
	}
	if err := s.repo.SetParticipantRole(ctx, roomID, userID, newRole); err != nil {
		return err
	}
	s.record(ctx, actor, "chat.participant.change_role", roomID)
	return nil
}

func validNewRole(r authz.RoomRole) bool {
	switch r {
	case authz.RoomAdmin, authz.RoomModerator, authz.RoomMember:
		return true
	}
	return false
}

// PostMessage appends a message and bumps every other participant's
// unread counter. Counter failures are swallowed; the message is the
// record.
func (s *Service) PostMessage(ctx context.Context, actor shared.Actor, roomID int64, body string) (*Message, error) {
	if _, err := s.requireParticipant(ctx, actor, roomID); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body required", httpx.ErrInvalidArgument)
	}
	if len(body) > maxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", httpx.ErrInvalidArgument, maxMessageLength)
	}

	m := Message{RoomID: roomID, SenderID: actor.UserID, Body: body}
	if err := s.repo.CreateMessage(ctx, &m); err != nil {
		return nil, err
	}

	participants, err := s.repo.ListParticipants(ctx, roomID)
	if err == nil {
		recipients := make([]int64, 0, len(participants))
		for _, p := range participants {
			if p.UserID != actor.UserID {
				recipients = append(recipients, p.UserID)
			}
		}
		_ = s.unread.Bump(ctx, roomID, recipients)
	}
	return &m, nil
}

// ListMessages returns one page of history, newest first, and resets
// the actor's unread counter for the room.
func (s *Service) ListMessages(ctx context.Context, actor shared.Actor, roomID, beforeID int64, limit int) (*MessagePage, error) {
	if _, err := s.requireParticipant(ctx, actor, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	msgs, err := s.repo.ListMessages(ctx, roomID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	page := &MessagePage{Messages: msgs}
	if len(msgs) == limit {
		page.NextCursor = msgs[len(msgs)-1].ID
	}
	_ = s.unread.Reset(ctx, actor.UserID, roomID)
	return page, nil
}

// UnreadSummary returns the actor's unread count per room.
func (s *Service) UnreadSummary(ctx context.Context, actor shared.Actor) (map[int64]int64, error) {
	rooms, err := s.repo.ListRoomsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	return s.unread.Counts(ctx, actor.UserID, ids)
}
