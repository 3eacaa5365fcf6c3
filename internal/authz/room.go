package authz

import (
	"errors"
	"fmt"
)

// RoomRole is a participant's role inside a chat room.
type RoomRole string

const (
	RoomAdmin     RoomRole = "admin"
	RoomModerator RoomRole = "moderator"
	RoomMember    RoomRole = "member"
)

// RoomAction is a membership operation on a chat room participant.
type RoomAction string

const (
	// RoomActionAdd adds a participant; target is the role being granted.
	RoomActionAdd RoomAction = "add"
	// RoomActionRemove removes a participant; target is their current role.
	RoomActionRemove RoomAction = "remove"
	// RoomActionChangeRole changes a participant's role; target is their
	// current role.
	RoomActionChangeRole RoomAction = "change_role"
	// RoomActionLeave is self-removal; target is the actor's own role.
	RoomActionLeave RoomAction = "leave"
)

var (
	// ErrRoomDenied is the base denial for room membership operations.
	ErrRoomDenied = errors.New("room action denied")
	// ErrLastAdmin rejects removing or demoting a room's only admin.
	ErrLastAdmin = fmt.Errorf("%w: cannot remove the last admin", ErrRoomDenied)
	// ErrInvalidArgument signals a role or action outside the known
	// vocabulary. This is a caller contract violation, not a denial.
	ErrInvalidArgument = errors.New("invalid argument")
)

func validRoomRole(r RoomRole) bool {
	switch r {
	case RoomAdmin, RoomModerator, RoomMember:
		return true
	}
	return false
}

// RoomActionAllowed encodes the chat-room hierarchy. Only admins manage
// admins, moderators and role changes; moderators manage members; any
// participant may leave. When the target is the last admin of the room
// the caller passes lastAdmin=true and removal or demotion is rejected
// with ErrLastAdmin, self-removal included.
//
// A nil return is a permit. ErrInvalidArgument reports an unknown
// action or role; every other error wraps ErrRoomDenied.
func RoomActionAllowed(actor RoomRole, action RoomAction, target RoomRole, lastAdmin bool) error {
	if !validRoomRole(actor) || !validRoomRole(target) {
		return fmt.Errorf("%w: unknown room role", ErrInvalidArgument)
	}

	switch action {
	case RoomActionAdd, RoomActionRemove, RoomActionChangeRole, RoomActionLeave:
	default:
		return fmt.Errorf("%w: unknown room action %q", ErrInvalidArgument, action)
	}

	if target == RoomAdmin && lastAdmin && action != RoomActionAdd {
		return ErrLastAdmin
	}

	switch action {
	case RoomActionLeave:
		return nil
	case RoomActionAdd:
		if target == RoomMember {
			if actor == RoomAdmin || actor == RoomModerator {
				return nil
			}
			return fmt.Errorf("%w: only room admins and moderators can add participants", ErrRoomDenied)
		}
		if actor == RoomAdmin {
			return nil
		}
		return fmt.Errorf("%w: only room admins can add %ss", ErrRoomDenied, target)
	case RoomActionRemove:
		if actor == RoomAdmin {
			return nil
		}
		if actor == RoomModerator && target == RoomMember {
			return nil
		}
		return fmt.Errorf("%w: %s cannot remove a %s", ErrRoomDenied, actor, target)
	case RoomActionChangeRole:
		if actor == RoomAdmin {
			return nil
		}
		return fmt.Errorf("%w: only room admins can change roles", ErrRoomDenied)
	}
	return ErrRoomDenied
}
