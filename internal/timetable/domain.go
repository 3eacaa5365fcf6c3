// Package timetable implements weekly scheduling: recurring periods per
// establishment and (class, subject, teacher, period, room) entries per
// academic year, with conflict detection before every write.
package timetable

import "time"

// Period is a named recurring weekly time slot, not a calendar date.
// Times are establishment-local wall clock values in "HH:MM" form;
// DayOfWeek runs 1 (Monday) through 7 (Sunday). Rank orders periods
// within a day for display; IsBreak marks recreation slots that carry
// no entries.
type Period struct {
	ID              int64     `json:"id"`
	EstablishmentID int64     `json:"establishment_id"`
	Name            string    `json:"name"`
	DayOfWeek       int       `json:"day_of_week"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Rank            int       `json:"rank"`
	IsBreak         bool      `json:"is_break"`
	CreatedAt       time.Time `json:"created_at"`
}

// Entry schedules one class with one subject and teacher in one period
// of an academic year. Room is optional.
type Entry struct {
	ID              int64     `json:"id"`
	EstablishmentID int64     `json:"establishment_id"`
	AcademicYearID  int64     `json:"academic_year_id"`
	ClassID         int64     `json:"class_id"`
	SubjectID       int64     `json:"subject_id"`
	TeacherID       int64     `json:"teacher_id"`
	PeriodID        int64     `json:"period_id"`
	RoomID          *int64    `json:"room_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// EntryDetail is an entry joined with the names a timetable view needs.
type EntryDetail struct {
	Entry
	PeriodName  string `json:"period_name"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	ClassName   string `json:"class_name"`
	SubjectName string `json:"subject_name"`
	TeacherName string `json:"teacher_name"`
	RoomName    string `json:"room_name,omitempty"`
}

// ResourceKind identifies which scheduled resource an entry claims.
type ResourceKind string

const (
	ResourceClass   ResourceKind = "classe"
	ResourceTeacher ResourceKind = "enseignant"
	ResourceRoom    ResourceKind = "salle"
)

// BulkResultKind classifies the outcome of one candidate in a bulk
// create. NotFound and Conflict are distinct so callers can tell a
// dangling reference from a double-booking.
type BulkResultKind string

const (
	BulkOK       BulkResultKind = "ok"
	BulkNotFound BulkResultKind = "not_found"
	BulkConflict BulkResultKind = "conflict"
	BulkInvalid  BulkResultKind = "invalid"
)

// BulkResult reports the outcome for the candidate at Index.
type BulkResult struct {
	Index        int            `json:"index"`
	Kind         BulkResultKind `json:"kind"`
	Error        string         `json:"error,omitempty"`
	Entry        *Entry         `json:"entry,omitempty"`
	ConflictWith *Entry         `json:"conflict_with,omitempty"`
}
