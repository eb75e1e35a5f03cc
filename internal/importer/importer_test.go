package importer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"school-journal/internal/model"
	"school-journal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildSheet(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	file := excelize.NewFile()
	defer file.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow("Sheet1", cell, &row))
	}

	var buf bytes.Buffer
	_, err := file.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParser_Parse(t *testing.T) {
	data := buildSheet(t,
		[]any{"Score", "Lesson_ID", "Student_ID", "Comment"},
		[]any{7, "L1", "alice", "good"},
		[]any{"", "", "", ""},
		[]any{"10.0", "L2", "bob"},
	)

	grades, err := NewParser().Parse(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, []model.GradeRow{
		{Row: 2, StudentID: "alice", LessonID: "L1", Score: 7},
		{Row: 4, StudentID: "bob", LessonID: "L2", Score: 10},
	}, grades)
}

func TestParser_Errors(t *testing.T) {
	ctx := context.Background()
	p := NewParser()

	_, err := p.Parse(ctx, []byte("not a workbook"))
	assert.ErrorIs(t, err, errors.ErrInvalidFileFormat)

	_, err = p.Parse(ctx, buildSheet(t, []any{"student_id", "lesson_id", "score"}))
	assert.ErrorIs(t, err, errors.ErrInvalidFileFormat)

	_, err = p.Parse(ctx, buildSheet(t,
		[]any{"student_id", "score"},
		[]any{"alice", 5},
	))
	assert.ErrorIs(t, err, errors.ErrInvalidFileFormat)

	_, err = p.Parse(ctx, buildSheet(t,
		[]any{"student_id", "lesson_id", "score"},
		[]any{"alice", "L1", "7.5"},
	))
	assert.True(t, errors.IsValidation(err))

	_, err = p.Parse(ctx, buildSheet(t,
		[]any{"student_id", "lesson_id", "score"},
		[]any{"alice", "", 4},
	))
	assert.ErrorContains(t, err, "row 2")
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()
	v := NewValidator()

	assert.ErrorIs(t, v.Validate(ctx, nil), errors.ErrSchemaValidation)

	assert.NoError(t, v.Validate(ctx, []model.GradeRow{
		{Row: 2, StudentID: "alice", LessonID: "L1", Score: 1},
		{Row: 3, StudentID: "alice", LessonID: "L2", Score: 10},
	}))

	tests := []struct {
		name  string
		grade model.GradeRow
		field string
	}{
		{"score too low", model.GradeRow{Row: 2, StudentID: "alice", LessonID: "L1", Score: 0}, ColumnScore},
		{"score too high", model.GradeRow{Row: 2, StudentID: "alice", LessonID: "L1", Score: 11}, ColumnScore},
		{"bad student", model.GradeRow{Row: 2, StudentID: "al ice", LessonID: "L1", Score: 5}, ColumnStudentID},
		{"bad lesson", model.GradeRow{Row: 2, StudentID: "alice", LessonID: "L1;", Score: 5}, ColumnLessonID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(ctx, []model.GradeRow{tt.grade})
			var ve errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	err := v.Validate(ctx, []model.GradeRow{
		{Row: 2, StudentID: "alice", LessonID: "L1", Score: 4},
		{Row: 5, StudentID: "alice", LessonID: "L1", Score: 6},
	})
	var ve errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 5, ve.Value)
	assert.Contains(t, ve.Message, "row 2")
}

func TestRows(t *testing.T) {
	ctx := context.Background()
	s := NewSheetStrategy()

	grades, err := Rows(ctx, s, buildSheet(t,
		[]any{"student_id", "lesson_id", "score"},
		[]any{"alice", "L1", 9},
	))
	require.NoError(t, err)
	require.Len(t, grades, 1)

	_, err = Rows(ctx, s, buildSheet(t,
		[]any{"student_id", "lesson_id", "score"},
		[]any{"alice", "L1", 12},
	))
	assert.True(t, errors.IsValidation(err))
}

func TestWriteJournal(t *testing.T) {
	nine := 9
	snap := model.JournalSnapshot{
		Lessons: []model.Lesson{
			{ID: "L1", Title: "Fractions", Date: model.NewDate(2024, time.January, 10)},
			{ID: "L2", Title: "Decimals", Date: model.NewDate(2024, time.January, 17)},
		},
		Rows: []model.GridRow{
			{
				Student: model.Student{ID: "alice", FirstName: "Alice", LastName: "Adams"},
				Cells: []model.GridCell{
					{LessonID: "L1", Score: &nine, Attendance: model.AttendancePresent},
					{LessonID: "L2", Attendance: model.AttendanceAbsent},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJournal(&buf, snap))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{"Grades", "Attendance"}, file.GetSheetList())

	grades, err := file.GetRows("Grades")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Equal(t, []string{"Student", "Fractions (2024-01-10)", "Decimals (2024-01-17)"}, grades[0])
	assert.Equal(t, []string{"Alice Adams", "9"}, grades[1])

	attendance, err := file.GetRows("Attendance")
	require.NoError(t, err)
	require.Len(t, attendance, 2)
	assert.Equal(t, []string{"Alice Adams", "present", "absent"}, attendance[1])
}
