package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:30", 510, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"08:60", 0, true},
		{"8:30", 0, true},
		{"", 0, true},
		{"banana", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidInterval, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func testPeriods() []Period {
	return []Period{
		{ID: 1, EstablishmentID: 1, Name: "M1", DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"},
		{ID: 2, EstablishmentID: 1, Name: "M2", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"},
		{ID: 3, EstablishmentID: 1, Name: "T1", DayOfWeek: 2, StartTime: "08:00", EndTime: "09:00"},
	}
}

func TestOverlappingPeriodHalfOpen(t *testing.T) {
	// Back-to-back periods do not conflict.
	hit, err := OverlappingPeriod(testPeriods(), 1, "10:00", "11:00", 0)
	require.NoError(t, err)
	assert.Nil(t, hit)

	// A genuine overlap does.
	hit, err = OverlappingPeriod(testPeriods(), 1, "09:30", "10:30", 0)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, int64(2), hit.ID)
}

func TestOverlappingPeriodStraddlesBoundary(t *testing.T) {
	// 08:30-09:15 overlaps both Monday periods; the detector reports
	// some conflict, which one is unspecified.
	hit, err := OverlappingPeriod(testPeriods(), 1, "08:30", "09:15", 0)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Contains(t, []int64{1, 2}, hit.ID)
}

func TestOverlappingPeriodScoping(t *testing.T) {
	// Other days never conflict.
	hit, err := OverlappingPeriod(testPeriods(), 3, "08:00", "09:00", 0)
	require.NoError(t, err)
	assert.Nil(t, hit)

	// Excluding a period lets an update check against the others only.
	hit, err = OverlappingPeriod(testPeriods(), 1, "08:00", "09:00", 1)
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestOverlappingPeriodInvalidInterval(t *testing.T) {
	_, err := OverlappingPeriod(testPeriods(), 1, "10:00", "10:00", 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = OverlappingPeriod(testPeriods(), 1, "10:00", "09:00", 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func testEntries() []Entry {
	return []Entry{
		{ID: 10, ClassID: 5, SubjectID: 1, TeacherID: 20, PeriodID: 3, RoomID: ptr[int64](100)},
		{ID: 11, ClassID: 6, SubjectID: 2, TeacherID: 21, PeriodID: 3},
		{ID: 12, ClassID: 5, SubjectID: 1, TeacherID: 20, PeriodID: 4},
	}
}

func TestConflictingEntry(t *testing.T) {
	hit, err := ConflictingEntry(testEntries(), ResourceClass, 5, 3, 0)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, int64(10), hit.ID)

	// Same class, different period: free.
	hit, err = ConflictingEntry(testEntries(), ResourceClass, 5, 5, 0)
	require.NoError(t, err)
	assert.Nil(t, hit)

	// Excluding the holder finds nothing, the update self-conflict case.
	hit, err = ConflictingEntry(testEntries(), ResourceClass, 5, 3, 10)
	require.NoError(t, err)
	assert.Nil(t, hit)

	// Entries without a room never clash on rooms.
	hit, err = ConflictingEntry(testEntries(), ResourceRoom, 100, 3, 0)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, int64(10), hit.ID)

	_, err = ConflictingEntry(testEntries(), "building", 1, 3, 0)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestValidateEntryReportsEveryResource(t *testing.T) {
	candidate := Entry{ClassID: 5, TeacherID: 21, PeriodID: 3, RoomID: ptr[int64](100)}
	report, err := ValidateEntry(testEntries(), candidate, 0)
	require.NoError(t, err)

	assert.False(t, report.Clean())
	kinds := make([]ResourceKind, 0, len(report.Conflicts))
	for _, c := range report.Conflicts {
		kinds = append(kinds, c.Kind)
	}
	assert.ElementsMatch(t, []ResourceKind{ResourceClass, ResourceTeacher, ResourceRoom}, kinds)
}

func TestValidateEntryClean(t *testing.T) {
	candidate := Entry{ClassID: 7, TeacherID: 22, PeriodID: 3}
	report, err := ValidateEntry(testEntries(), candidate, 0)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Nil(t, report.First())
}
