package shared

// Functionality names used by permission rows. A permission grants an
// action (view/add/edit/delete) on one of these functionalities within
// one establishment.
const (
	FuncUsers      = "utilisateurs"
	FuncRoles      = "roles"
	FuncStudents   = "apprenants"
	FuncTeachers   = "enseignants"
	FuncClasses    = "classes"
	FuncTimetable  = "emplois_du_temps"
	FuncGrades     = "notes"
	FuncAttendance = "presences"
	FuncFinances   = "finances"
	FuncLibrary    = "bibliotheque"
	FuncChat       = "chat"
	FuncSettings   = "parametres"
)

// Functionalities lists every permission scope in display order.
func Functionalities() []string {
	return []string{
		FuncUsers,
		FuncRoles,
		FuncStudents,
		FuncTeachers,
		FuncClasses,
		FuncTimetable,
		FuncGrades,
		FuncAttendance,
		FuncFinances,
		FuncLibrary,
		FuncChat,
		FuncSettings,
	}
}
