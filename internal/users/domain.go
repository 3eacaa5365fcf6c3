// Package users manages accounts and their role attachments. Accounts
// are never hard-deleted; deactivation archives them.
package users

import "time"

// User represents an account scoped to one establishment.
type User struct {
	ID              int64     `json:"id"`
	EstablishmentID int64     `json:"establishment_id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone,omitempty"`
	IsActive        bool      `json:"is_active"`
	Roles           []string  `json:"roles,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ListFilter narrows user listings.
type ListFilter struct {
	EstablishmentID int64
	Role            string
	Page            int
	PerPage         int
}
