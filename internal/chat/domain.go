package chat

import (
	"time"

	"github.com/scolaris/scolaris/internal/authz"
)

// RoomType categorises a chat room. The type decides who may create
// the room and which roster is snapshotted into it.
type RoomType string

const (
	RoomClasse         RoomType = "classe"
	RoomDepartement    RoomType = "departement"
	RoomAdministration RoomType = "administration"
	RoomParents        RoomType = "parents"
	RoomTeacherStudent RoomType = "teacher_student"
)

// ValidRoomType reports whether t is part of the room vocabulary.
func ValidRoomType(t RoomType) bool {
	switch t {
	case RoomClasse, RoomDepartement, RoomAdministration, RoomParents, RoomTeacherStudent:
		return true
	}
	return false
}

// Room is a conversation space. RefID points at the class or
// department the room was built from, when the type has one.
type Room struct {
	ID              int64     `json:"id"`
	EstablishmentID int64     `json:"establishment_id"`
	Type            RoomType  `json:"type"`
	Name            string    `json:"name"`
	RefID           *int64    `json:"ref_id,omitempty"`
	CreatedBy       int64     `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// Participant ties a user to a room with a room-level role.
type Participant struct {
	RoomID   int64          `json:"room_id"`
	UserID   int64          `json:"user_id"`
	Role     authz.RoomRole `json:"role"`
	JoinedAt time.Time      `json:"joined_at"`
}

// Message is a single chat post.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	SenderID  int64     `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// MessagePage is one page of history plus the cursor for the next,
// older page. NextCursor is zero when the history is exhausted.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor int64     `json:"next_cursor,omitempty"`
}
