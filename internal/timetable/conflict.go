package timetable

import (
	"errors"
	"fmt"
)

// Detector errors. A found conflict is never an error, only a return
// value; these signal malformed input.
var (
	ErrInvalidInterval = errors.New("invalid time interval")
	ErrUnknownResource = errors.New("unknown resource kind")
)

// ParseClock converts an "HH:MM" wall-clock value to minutes since
// midnight. No timezone conversion applies; day-of-week plus local
// time fully determines a slot.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: malformed clock value %q", ErrInvalidInterval, s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: malformed clock value %q", ErrInvalidInterval, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: clock value %q out of range", ErrInvalidInterval, s)
	}
	return h*60 + m, nil
}

// overlaps applies half-open interval semantics: [s1,e1) and [s2,e2)
// overlap iff s1 < e2 && s2 < e1. A period ending exactly when another
// begins is not a conflict.
func overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// OverlappingPeriod returns the first period among periods that shares
// dayOfWeek and overlaps [start,end), skipping excludeID so an update
// does not conflict with itself. Returns nil when the slot is free.
// Malformed candidate times or end <= start yield ErrInvalidInterval.
func OverlappingPeriod(periods []Period, dayOfWeek int, start, end string, excludeID int64) (*Period, error) {
	s, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	if e <= s {
		return nil, fmt.Errorf("%w: end %s not after start %s", ErrInvalidInterval, end, start)
	}

	for i := range periods {
		p := &periods[i]
		if p.ID == excludeID || p.DayOfWeek != dayOfWeek {
			continue
		}
		ps, err := ParseClock(p.StartTime)
		if err != nil {
			return nil, err
		}
		pe, err := ParseClock(p.EndTime)
		if err != nil {
			return nil, err
		}
		if overlaps(s, e, ps, pe) {
			return p, nil
		}
	}
	return nil, nil
}

// ConflictingEntry returns any entry in entries that already claims the
// (kind, resourceID, periodID) slot, excluding excludeID. Returns nil
// when the slot is free.
func ConflictingEntry(entries []Entry, kind ResourceKind, resourceID, periodID, excludeID int64) (*Entry, error) {
	for i := range entries {
		e := &entries[i]
		if e.ID == excludeID || e.PeriodID != periodID {
			continue
		}
		var claimed int64
		switch kind {
		case ResourceClass:
			claimed = e.ClassID
		case ResourceTeacher:
			claimed = e.TeacherID
		case ResourceRoom:
			if e.RoomID == nil {
				continue
			}
			claimed = *e.RoomID
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownResource, kind)
		}
		if claimed == resourceID {
			return e, nil
		}
	}
	return nil, nil
}

// ResourceConflict names the resource that blocked a candidate together
// with the entry already holding it.
type ResourceConflict struct {
	Kind  ResourceKind `json:"kind"`
	Entry Entry        `json:"entry"`
}

// ConflictReport lists every resource a candidate clashes on, not just
// the first, so bulk reporting can say exactly what blocked each
// candidate.
type ConflictReport struct {
	Conflicts []ResourceConflict `json:"conflicts"`
}

// Clean reports whether the candidate is free of conflicts.
func (r ConflictReport) Clean() bool {
	return len(r.Conflicts) == 0
}

// First returns the first conflicting entry, or nil.
func (r ConflictReport) First() *Entry {
	if len(r.Conflicts) == 0 {
		return nil
	}
	return &r.Conflicts[0].Entry
}

// ValidateEntry runs the class, teacher and room (when present) checks
// for candidate against the snapshot of existing entries. Pure: it
// inspects the snapshot as-is and never mutates it.
func ValidateEntry(existing []Entry, candidate Entry, excludeID int64) (ConflictReport, error) {
	var report ConflictReport

	checks := []struct {
		kind ResourceKind
		id   int64
	}{
		{ResourceClass, candidate.ClassID},
		{ResourceTeacher, candidate.TeacherID},
	}
	if candidate.RoomID != nil {
		checks = append(checks, struct {
			kind ResourceKind
			id   int64
		}{ResourceRoom, *candidate.RoomID})
	}

	for _, c := range checks {
		hit, err := ConflictingEntry(existing, c.kind, c.id, candidate.PeriodID, excludeID)
		if err != nil {
			return ConflictReport{}, err
		}
		if hit != nil {
			report.Conflicts = append(report.Conflicts, ResourceConflict{Kind: c.kind, Entry: *hit})
		}
	}
	return report, nil
}
