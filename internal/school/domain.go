// Package school holds the masterdata every other module hangs off:
// establishments, academic years, classes, subjects and rooms. It also
// provides the relationship-fact lookups the authorization engine
// consumes.
package school

import "time"

// Establishment is a school tenant. Most entities are scoped to
// exactly one.
type Establishment struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AcademicYear is a named school year, e.g. "2025-2026".
type AcademicYear struct {
	ID              int64     `json:"id"`
	EstablishmentID int64     `json:"establishment_id"`
	Label           string    `json:"label"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	IsCurrent       bool      `json:"is_current"`
}

// Class is a group of students with an optional head teacher.
type Class struct {
	ID              int64  `json:"id"`
	EstablishmentID int64  `json:"establishment_id"`
	Name            string `json:"name"`
	Level           string `json:"level,omitempty"`
	HeadTeacherID   *int64 `json:"head_teacher_id,omitempty"`
}

// Subject is a taught discipline.
type Subject struct {
	ID              int64  `json:"id"`
	EstablishmentID int64  `json:"establishment_id"`
	Name            string `json:"name"`
	Code            string `json:"code,omitempty"`
	DepartmentID    *int64 `json:"department_id,omitempty"`
}

// Room is a physical teaching space.
type Room struct {
	ID              int64  `json:"id"`
	EstablishmentID int64  `json:"establishment_id"`
	Name            string `json:"name"`
	Capacity        int    `json:"capacity,omitempty"`
}
