// Package roles manages roles and their permissions per establishment.
package roles

import "time"

// Role is a named bundle of permissions scoped to one establishment.
// The five system role names are protected and can never be deleted.
type Role struct {
	ID              int64     `json:"id"`
	EstablishmentID int64     `json:"establishment_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Permission grants capabilities on one functionality within one
// establishment. The (functionality, establishment) pair is unique.
type Permission struct {
	ID              int64     `json:"id"`
	EstablishmentID int64     `json:"establishment_id"`
	Functionality   string    `json:"functionality"`
	CanView         bool      `json:"can_view"`
	CanAdd          bool      `json:"can_add"`
	CanEdit         bool      `json:"can_edit"`
	CanDelete       bool      `json:"can_delete"`
	CreatedAt       time.Time `json:"created_at"`
}

// RoleUser is a user summary returned when listing a role's holders.
type RoleUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
