package auth

import "time"

// User represents an authenticated user account with its role names.
type User struct {
	ID              int64
	EstablishmentID int64
	Email           string
	Name            string
	PasswordHash    string
	IsActive        bool
	Roles           []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
