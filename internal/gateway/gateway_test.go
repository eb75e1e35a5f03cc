package gateway

import (
	"context"
	"os"
	"testing"
	"time"

	"school-journal/internal/logger"
	"school-journal/internal/model"
	"school-journal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init("disabled", "json")
	os.Exit(m.Run())
}

func newSeededGateway(t *testing.T) (*Gateway, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	require.NoError(t, store.Insert(TablePeriods,
		map[string]any{"id": "Q2", "name": "Second quarter", "start_date": "2024-04-01", "end_date": "2024-06-30", "is_active": true},
		map[string]any{"id": "Q1", "name": "First quarter", "start_date": "2024-01-01", "end_date": "2024-03-31", "is_active": true},
		map[string]any{"id": "Q0", "name": "Old quarter", "start_date": "2023-09-01", "end_date": "2023-12-31", "is_active": false},
	))
	require.NoError(t, store.Insert(TableStudents,
		map[string]any{"id": "bob", "first_name": "Bob", "last_name": "Brown", "class_id": "C1"},
		map[string]any{"id": "alice", "first_name": "Alice", "last_name": "Adams", "class_id": "C1"},
		map[string]any{"id": "carol", "first_name": "Carol", "last_name": "Clark", "class_id": "C2"},
	))
	require.NoError(t, store.Insert(TableLessons,
		map[string]any{"id": "L2", "title": "Decimals", "date": "2024-01-17", "subject_id": "S1"},
		map[string]any{"id": "L1", "title": "Fractions", "date": "2024-01-10", "subject_id": "S1"},
	))
	return New(store), store
}

func TestGateway_Reads(t *testing.T) {
	g, _ := newSeededGateway(t)
	ctx := context.Background()

	periods, err := g.ActivePeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "Q1", periods[0].ID)
	assert.Equal(t, model.NewDate(2024, time.January, 1), periods[0].StartDate)

	students, err := g.Students(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Alice Adams", students[0].FullName())

	lessons, err := g.Lessons(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "L1", lessons[0].ID)
	assert.Equal(t, "2024-01-10", lessons[0].Date.String())
}

func TestGateway_Grades(t *testing.T) {
	g, store := newSeededGateway(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(TableGrades,
		model.Grade{StudentID: "alice", LessonID: "L1", PeriodID: "Q1", Score: 9},
		model.Grade{StudentID: "alice", LessonID: "L1", PeriodID: "Q2", Score: 3},
		model.Grade{StudentID: "carol", LessonID: "L1", PeriodID: "Q1", Score: 6},
	))

	grades, err := g.Grades(ctx, "Q1", []string{"L1", "L2"}, []string{"alice", "bob"})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, model.Grade{StudentID: "alice", LessonID: "L1", PeriodID: "Q1", Score: 9}, grades[0])

	grades, err = g.Grades(ctx, "Q1", nil, []string{"alice"})
	require.NoError(t, err)
	assert.Empty(t, grades)

	saved, err := g.UpsertGrade(ctx, model.Grade{StudentID: "alice", LessonID: "L1", PeriodID: "Q1", Score: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, saved.Score)
	assert.Equal(t, 1, store.Count(TableGrades, Eq("period_id", "Q1"), Eq("student_id", "alice")))

	_, err = g.UpsertGrade(ctx, model.Grade{StudentID: "alice", LessonID: "L1", PeriodID: "Q1", Score: 11})
	assert.True(t, errors.IsValidation(err))

	require.NoError(t, g.DeleteGrade(ctx, "alice", "L1", "Q1"))
	assert.Equal(t, 0, store.Count(TableGrades, Eq("period_id", "Q1"), Eq("student_id", "alice")))
	assert.Equal(t, 1, store.Count(TableGrades, Eq("period_id", "Q2"), Eq("student_id", "alice")))
}

func TestGateway_Attendance(t *testing.T) {
	g, store := newSeededGateway(t)
	ctx := context.Background()
	noted := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)

	found, err := g.FindAttendance(ctx, "L1", "alice")
	require.NoError(t, err)
	assert.Nil(t, found)

	inserted, err := g.InsertAttendance(ctx, model.AttendanceRecord{
		ID: "rec-1", LessonID: "L1", StudentID: "alice", Status: model.AttendanceLate, NotedAt: noted,
	})
	require.NoError(t, err)
	assert.Equal(t, noted, inserted.NotedAt)

	found, err = g.FindAttendance(ctx, "L1", "alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "rec-1", found.ID)

	found.Status = model.AttendancePresent
	_, err = g.SaveAttendance(ctx, *found)
	require.NoError(t, err)

	records, err := g.Attendance(ctx, []string{"L1"}, []string{"alice", "bob"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.AttendancePresent, records[0].Status)
	assert.Equal(t, 1, store.Count(TableAttendance))

	_, err = g.InsertAttendance(ctx, model.AttendanceRecord{ID: "rec-2", LessonID: "L1", StudentID: "bob", Status: "asleep"})
	assert.True(t, errors.IsValidation(err))
}

func TestMemoryStore_UniqueKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, TableAttendance, Row{"id": "a", "lesson_id": "L1", "student_id": "s1", "status": "present"}, []string{"id"})
	require.NoError(t, err)

	_, err = store.Upsert(ctx, TableAttendance, Row{"id": "b", "lesson_id": "L1", "student_id": "s1", "status": "late"}, []string{"id"})
	assert.ErrorIs(t, err, errors.ErrRemoteStore)

	_, err = store.Upsert(ctx, TableAttendance, Row{"id": "a", "status": "late"}, []string{"id"})
	require.NoError(t, err)

	rows, err := store.Select(ctx, TableAttendance, Query{Filters: []Filter{Eq("lesson_id", "L1")}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "late", rows[0]["status"])
}

func TestMemoryStore_RejectsBadQueries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Select(ctx, "grades; drop", Query{})
	assert.ErrorIs(t, err, errors.ErrInvalidIdentifier)

	_, err = store.Select(ctx, TableGrades, Query{Filters: []Filter{{Column: "lesson_id", Op: OpIn, Value: "L1"}}})
	assert.ErrorIs(t, err, errors.ErrUnsupportedFilterOperand)

	_, err = store.Upsert(ctx, TableGrades, Row{"score": 1}, nil)
	assert.ErrorIs(t, err, errors.ErrRemoteStore)
}
