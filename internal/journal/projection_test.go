package journal

import (
	"testing"
	"time"

	"school-journal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectionFixture() ([]model.Student, []model.Lesson) {
	students := []model.Student{
		{ID: "alice", FirstName: "Alice", LastName: "Adams"},
		{ID: "bob", FirstName: "Bob", LastName: "Brown"},
	}
	lessons := []model.Lesson{
		{ID: "L2", Title: "Decimals", Date: model.NewDate(2024, time.January, 17), SubjectID: "S1"},
		{ID: "L1", Title: "Fractions", Date: model.NewDate(2024, time.January, 10), SubjectID: "S1"},
	}
	return students, lessons
}

func TestProject(t *testing.T) {
	students, lessons := projectionFixture()
	grades := []model.Grade{
		{StudentID: "alice", LessonID: "L1", PeriodID: "Q1", Score: 9},
		{StudentID: "bob", LessonID: "L2", PeriodID: "Q1", Score: 4},
	}
	attendance := []model.AttendanceRecord{
		{ID: "a1", LessonID: "L1", StudentID: "alice", Status: model.AttendancePresent},
		{ID: "a2", LessonID: "L1", StudentID: "bob", Status: model.AttendanceLate},
	}

	rows := Project(students, lessons, grades, attendance, model.AttendanceAbsent)
	require.Len(t, rows, 2)

	alice := rows[0]
	require.Len(t, alice.Cells, 2)
	assert.Equal(t, "L1", alice.Cells[0].LessonID)
	require.NotNil(t, alice.Cells[0].Score)
	assert.Equal(t, 9, *alice.Cells[0].Score)
	assert.Equal(t, model.AttendancePresent, alice.Cells[0].Attendance)
	assert.True(t, alice.Cells[0].HasAttendance)
	assert.Nil(t, alice.Cells[1].Score)
	assert.Equal(t, model.AttendanceAbsent, alice.Cells[1].Attendance)
	assert.False(t, alice.Cells[1].HasAttendance)
	assert.Equal(t, model.CellViewing, alice.Cells[0].Grade.State)

	require.Len(t, alice.Entries, 1)
	assert.False(t, alice.Entries[0].AttendanceOnly)

	bob := rows[1]
	require.Len(t, bob.Entries, 2)
	assert.Equal(t, "L1", bob.Entries[0].LessonID)
	assert.True(t, bob.Entries[0].AttendanceOnly)
	assert.Nil(t, bob.Entries[0].Score)
	assert.Equal(t, model.AttendanceLate, bob.Entries[0].Attendance)
	assert.Equal(t, "L2", bob.Entries[1].LessonID)
	require.NotNil(t, bob.Entries[1].Score)
	assert.Equal(t, 4, *bob.Entries[1].Score)
}

func TestProject_DropsOrphans(t *testing.T) {
	students, lessons := projectionFixture()
	grades := []model.Grade{
		{StudentID: "alice", LessonID: "gone", PeriodID: "Q1", Score: 7},
		{StudentID: "stranger", LessonID: "L1", PeriodID: "Q1", Score: 7},
	}
	attendance := []model.AttendanceRecord{
		{ID: "a1", LessonID: "gone", StudentID: "alice", Status: model.AttendancePresent},
	}

	rows := Project(students, lessons, grades, attendance, model.AttendanceAbsent)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Empty(t, row.Entries)
		assert.Len(t, row.Cells, 2)
		for _, c := range row.Cells {
			assert.Nil(t, c.Score)
		}
	}
}

func TestProject_Deterministic(t *testing.T) {
	students, lessons := projectionFixture()
	grades := []model.Grade{
		{StudentID: "alice", LessonID: "L1", PeriodID: "Q1", Score: 9},
		{StudentID: "alice", LessonID: "L2", PeriodID: "Q1", Score: 6},
	}
	before := append([]model.Lesson(nil), lessons...)

	first := Project(students, lessons, grades, nil, model.AttendanceAbsent)
	second := Project(students, lessons, grades, nil, model.AttendanceAbsent)

	assert.Equal(t, first, second)
	assert.Equal(t, before, lessons)
}

func TestProject_Empty(t *testing.T) {
	assert.Empty(t, Project(nil, nil, nil, nil, model.AttendanceAbsent))

	students, _ := projectionFixture()
	rows := Project(students, nil, nil, nil, model.AttendanceAbsent)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].Cells)
}

func TestDecorate(t *testing.T) {
	students, lessons := projectionFixture()
	rows := Project(students, lessons, nil, nil, model.AttendanceAbsent)

	key := model.CellKey{StudentID: "bob", LessonID: "L2"}
	decorate(rows, map[cellID]model.CellStatus{
		{kind: gradeCell, key: key}:      {State: model.CellEditing, Draft: "8"},
		{kind: attendanceCell, key: key}: {State: model.CellSaving, Draft: "late"},
	})

	cell := rows[1].Cells[1]
	assert.Equal(t, model.CellStatus{State: model.CellEditing, Draft: "8"}, cell.Grade)
	assert.Equal(t, model.CellStatus{State: model.CellSaving, Draft: "late"}, cell.AttendanceState)
	assert.Equal(t, model.CellViewing, rows[0].Cells[1].Grade.State)
}
