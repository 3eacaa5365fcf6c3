package students

import "time"

// Student is a pupil record. UserID links the pupil's own account when
// one exists; younger students often have none.
type Student struct {
	ID              int64      `json:"id"`
	EstablishmentID int64      `json:"establishment_id"`
	UserID          *int64     `json:"user_id,omitempty"`
	ClassID         *int64     `json:"class_id,omitempty"`
	Matricule       string     `json:"matricule"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ParentLink ties a guardian account to a student.
type ParentLink struct {
	StudentID    int64  `json:"student_id"`
	ParentUserID int64  `json:"parent_user_id"`
	Relationship string `json:"relationship"`
}

// SearchFilter narrows student listings.
type SearchFilter struct {
	EstablishmentID int64
	ClassID         *int64
	Query           string
	Page            int
	PerPage         int
}
