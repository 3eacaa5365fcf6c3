package chat

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scolaris/scolaris/internal/authz"
	"github.com/scolaris/scolaris/internal/platform/httpx"
)

// RepositoryPort defines data access for rooms, participants and
// messages, plus the roster queries used to seed new rooms.
type RepositoryPort interface {
	CreateRoom(ctx context.Context, room *Room, participants []Participant) error
	GetRoom(ctx context.Context, id int64) (*Room, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]Room, error)
	FindDirectRoom(ctx context.Context, userA, userB int64) (*Room, error)

	GetParticipant(ctx context.Context, roomID, userID int64) (*Participant, error)
	ListParticipants(ctx context.Context, roomID int64) ([]Participant, error)
	AddParticipant(ctx context.Context, p Participant) error
	RemoveParticipant(ctx context.Context, roomID, userID int64) error
	SetParticipantRole(ctx context.Context, roomID, userID int64, role authz.RoomRole) error
	CountRoomAdmins(ctx context.Context, roomID int64) (int, error)

	CreateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, roomID, beforeID int64, limit int) ([]Message, error)

	ClassRoster(ctx context.Context, classID int64) ([]int64, error)
	ClassParents(ctx context.Context, classID int64) ([]int64, error)
	DepartmentTeachers(ctx context.Context, departmentID int64) ([]int64, error)
	AdminStaff(ctx context.Context, establishmentID int64) ([]int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

// CreateRoom inserts a room and its seeded participants atomically.
func (r *Repository) CreateRoom(ctx context.Context, room *Room, participants []Participant) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO chat_rooms (establishment_id, type, name, ref_id, created_by)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
		room.EstablishmentID, room.Type, room.Name, room.RefID, room.CreatedBy,
	).Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		return err
	}
	for _, p := range participants {
		_, err := tx.Exec(ctx,
			`INSERT INTO chat_participants (room_id, user_id, role) VALUES ($1,$2,$3)
			 ON CONFLICT (room_id, user_id) DO UPDATE SET role=EXCLUDED.role`,
			room.ID, p.UserID, p.Role)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetRoom fetches one room.
func (r *Repository) GetRoom(ctx context.Context, id int64) (*Room, error) {
	var room Room
	err := r.pool.QueryRow(ctx,
		`SELECT id, establishment_id, type, name, ref_id, created_by, created_at FROM chat_rooms WHERE id=$1`, id,
	).Scan(&room.ID, &room.EstablishmentID, &room.Type, &room.Name, &room.RefID, &room.CreatedBy, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// ListRoomsForUser returns the rooms a user participates in.
func (r *Repository) ListRoomsForUser(ctx context.Context, userID int64) ([]Room, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cr.id, cr.establishment_id, cr.type, cr.name, cr.ref_id, cr.created_by, cr.created_at
		 FROM chat_rooms cr JOIN chat_participants cp ON cp.room_id=cr.id
		 WHERE cp.user_id=$1 ORDER BY cr.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.EstablishmentID, &room.Type, &room.Name, &room.RefID, &room.CreatedBy, &room.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// FindDirectRoom locates the one-to-one room between two users.
func (r *Repository) FindDirectRoom(ctx context.Context, userA, userB int64) (*Room, error) {
	var room Room
	err := r.pool.QueryRow(ctx,
		`SELECT cr.id, cr.establishment_id, cr.type, cr.name, cr.ref_id, cr.created_by, cr.created_at
		 FROM chat_rooms cr
		 WHERE cr.type='teacher_student'
		   AND EXISTS (SELECT 1 FROM chat_participants WHERE room_id=cr.id AND user_id=$1)
		   AND EXISTS (SELECT 1 FROM chat_participants WHERE room_id=cr.id AND user_id=$2)
		   AND (SELECT COUNT(*) FROM chat_participants WHERE room_id=cr.id)=2
		 LIMIT 1`, userA, userB,
	).Scan(&room.ID, &room.EstablishmentID, &room.Type, &room.Name, &room.RefID, &room.CreatedBy, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// GetParticipant fetches one membership row.
func (r *Repository) GetParticipant(ctx context.Context, roomID, userID int64) (*Participant, error) {
	var p Participant
	err := r.pool.QueryRow(ctx,
		`SELECT room_id, user_id, role, joined_at FROM chat_participants WHERE room_id=$1 AND user_id=$2`,
		roomID, userID,
	).Scan(&p.RoomID, &p.UserID, &p.Role, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListParticipants returns the membership of a room.
func (r *Repository) ListParticipants(ctx context.Context, roomID int64) ([]Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT room_id, user_id, role, joined_at FROM chat_participants WHERE room_id=$1 ORDER BY user_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Role, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddParticipant inserts a membership row. Re-adding is a no-op.
func (r *Repository) AddParticipant(ctx context.Context, p Participant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_participants (room_id, user_id, role) VALUES ($1,$2,$3)
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		p.RoomID, p.UserID, p.Role)
	return err
}

// RemoveParticipant deletes a membership row.
func (r *Repository) RemoveParticipant(ctx context.Context, roomID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM chat_participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SetParticipantRole rewrites one participant's room role.
func (r *Repository) SetParticipantRole(ctx context.Context, roomID, userID int64, role authz.RoomRole) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE chat_participants SET role=$3 WHERE room_id=$1 AND user_id=$2`, roomID, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// CountRoomAdmins returns the number of room admins.
func (r *Repository) CountRoomAdmins(ctx context.Context, roomID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_participants WHERE room_id=$1 AND role='admin'`, roomID).Scan(&n)
	return n, err
}

// CreateMessage inserts a chat message.
func (r *Repository) CreateMessage(ctx context.Context, m *Message) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (room_id, sender_id, body) VALUES ($1,$2,$3) RETURNING id, created_at`,
		m.RoomID, m.SenderID, m.Body,
	).Scan(&m.ID, &m.CreatedAt)
}

// ListMessages returns up to limit messages older than beforeID, newest
// first. A zero beforeID starts from the newest message.
func (r *Repository) ListMessages(ctx context.Context, roomID, beforeID int64, limit int) ([]Message, error) {
	query := `SELECT id, room_id, sender_id, body, created_at FROM chat_messages WHERE room_id=$1`
	args := []any{roomID}
	if beforeID > 0 {
		query += ` AND id < $2 ORDER BY id DESC LIMIT $3`
		args = append(args, beforeID, limit)
	} else {
		query += ` ORDER BY id DESC LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ClassRoster returns the user accounts of a class: students that have
// one, plus the head teacher.
func (r *Repository) ClassRoster(ctx context.Context, classID int64) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT s.user_id FROM students s WHERE s.class_id=$1 AND s.user_id IS NOT NULL AND s.archived_at IS NULL
		 UNION
		 SELECT c.head_teacher_id FROM classes c WHERE c.id=$1 AND c.head_teacher_id IS NOT NULL`, classID)
}

// ClassParents returns the guardian accounts of a class's students.
func (r *Repository) ClassParents(ctx context.Context, classID int64) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT DISTINCT ps.parent_user_id FROM parent_students ps
		 JOIN students s ON s.id=ps.student_id
		 WHERE s.class_id=$1 AND s.archived_at IS NULL`, classID)
}

// DepartmentTeachers returns the teachers attached to a department
// through its subjects and the current-year timetable.
func (r *Repository) DepartmentTeachers(ctx context.Context, departmentID int64) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT DISTINCT te.teacher_id FROM timetable_entries te
		 JOIN subjects sub ON sub.id=te.subject_id
		 JOIN academic_years ay ON ay.id=te.academic_year_id AND ay.is_current
		 WHERE sub.department_id=$1`, departmentID)
}

// AdminStaff returns the admin-like accounts of an establishment.
func (r *Repository) AdminStaff(ctx context.Context, establishmentID int64) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT DISTINCT u.id FROM users u
		 JOIN user_roles ur ON ur.user_id=u.id
		 JOIN roles ro ON ro.id=ur.role_id
		 WHERE u.establishment_id=$1 AND u.is_active AND ro.name IN ('superadmin','admin','principal','censeur')`,
		establishmentID)
}
