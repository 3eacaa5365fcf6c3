package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomActionAllowedHierarchy(t *testing.T) {
	tests := []struct {
		name   string
		actor  RoomRole
		action RoomAction
		target RoomRole
		ok     bool
	}{
		{"admin adds member", RoomAdmin, RoomActionAdd, RoomMember, true},
		{"admin adds moderator", RoomAdmin, RoomActionAdd, RoomModerator, true},
		{"admin adds admin", RoomAdmin, RoomActionAdd, RoomAdmin, true},
		{"moderator adds member", RoomModerator, RoomActionAdd, RoomMember, true},
		{"moderator adds moderator", RoomModerator, RoomActionAdd, RoomModerator, false},
		{"moderator adds admin", RoomModerator, RoomActionAdd, RoomAdmin, false},
		{"member adds member", RoomMember, RoomActionAdd, RoomMember, false},

		{"admin removes member", RoomAdmin, RoomActionRemove, RoomMember, true},
		{"admin removes moderator", RoomAdmin, RoomActionRemove, RoomModerator, true},
		{"moderator removes member", RoomModerator, RoomActionRemove, RoomMember, true},
		{"moderator removes admin", RoomModerator, RoomActionRemove, RoomAdmin, false},
		{"moderator removes moderator", RoomModerator, RoomActionRemove, RoomModerator, false},
		{"member removes member", RoomMember, RoomActionRemove, RoomMember, false},

		{"admin changes role", RoomAdmin, RoomActionChangeRole, RoomMember, true},
		{"moderator changes role", RoomModerator, RoomActionChangeRole, RoomMember, false},

		{"member leaves", RoomMember, RoomActionLeave, RoomMember, true},
		{"moderator leaves", RoomModerator, RoomActionLeave, RoomModerator, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := RoomActionAllowed(tc.actor, tc.action, tc.target, false)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrRoomDenied)
			}
		})
	}
}

func TestRoomActionAllowedLastAdmin(t *testing.T) {
	// A room with exactly one admin rejects removing them, demoting
	// them, and even their own departure.
	for _, action := range []RoomAction{RoomActionRemove, RoomActionChangeRole, RoomActionLeave} {
		err := RoomActionAllowed(RoomAdmin, action, RoomAdmin, true)
		assert.ErrorIs(t, err, ErrLastAdmin, "action %s", action)
	}

	// Adding a second admin is how the room escapes the invariant.
	assert.NoError(t, RoomActionAllowed(RoomAdmin, RoomActionAdd, RoomAdmin, true))

	// With more than one admin the same operations pass.
	assert.NoError(t, RoomActionAllowed(RoomAdmin, RoomActionRemove, RoomAdmin, false))
	assert.NoError(t, RoomActionAllowed(RoomAdmin, RoomActionChangeRole, RoomAdmin, false))
}

func TestRoomActionAllowedInvalidVocabulary(t *testing.T) {
	err := RoomActionAllowed("owner", RoomActionAdd, RoomMember, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = RoomActionAllowed(RoomAdmin, RoomActionAdd, "guest", false)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = RoomActionAllowed(RoomAdmin, "ban", RoomMember, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// Invalid vocabulary is a contract error, not a denial.
	assert.NotErrorIs(t, err, ErrRoomDenied)
}
