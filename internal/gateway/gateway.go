package gateway

import (
	"context"
	"fmt"

	"school-journal/internal/logger"
	"school-journal/internal/model"

	"github.com/rs/zerolog"
)

var (
	gradeConflictKeys      = []string{"student_id", "lesson_id", "period_id"}
	attendanceConflictKeys = []string{"lesson_id", "student_id"}
	idConflictKeys         = []string{"id"}
)

// Gateway shapes journal requests for a Store. It holds no state.
type Gateway struct {
	store Store
	log   zerolog.Logger
}

func New(store Store) *Gateway {
	return &Gateway{
		store: store,
		log:   logger.Component("gateway"),
	}
}

func (g *Gateway) Store() Store {
	return g.store
}

func (g *Gateway) ActivePeriods(ctx context.Context) ([]model.GradingPeriod, error) {
	rows, err := g.store.Select(ctx, TablePeriods, Query{
		Filters: []Filter{Eq("is_active", true)},
		Order:   &Order{Column: "start_date", Ascending: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grading periods: %w", err)
	}

	var periods []model.GradingPeriod
	if err := decodeRows(rows, &periods); err != nil {
		return nil, err
	}
	return periods, nil
}

func (g *Gateway) Students(ctx context.Context, classID string) ([]model.Student, error) {
	rows, err := g.store.Select(ctx, TableStudents, Query{
		Filters: []Filter{Eq("class_id", classID)},
		Order:   &Order{Column: "last_name", Ascending: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch students: %w", err)
	}

	var students []model.Student
	if err := decodeRows(rows, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// Lessons returns the subject's lessons ordered by date ascending.
func (g *Gateway) Lessons(ctx context.Context, subjectID string) ([]model.Lesson, error) {
	rows, err := g.store.Select(ctx, TableLessons, Query{
		Filters: []Filter{Eq("subject_id", subjectID)},
		Order:   &Order{Column: "date", Ascending: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lessons: %w", err)
	}

	var lessons []model.Lesson
	if err := decodeRows(rows, &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

func (g *Gateway) Grades(ctx context.Context, periodID string, lessonIDs, studentIDs []string) ([]model.Grade, error) {
	if periodID == "" || len(lessonIDs) == 0 || len(studentIDs) == 0 {
		return []model.Grade{}, nil
	}

	rows, err := g.store.Select(ctx, TableGrades, Query{
		Filters: []Filter{
			Eq("period_id", periodID),
			In("lesson_id", lessonIDs),
			In("student_id", studentIDs),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grades: %w", err)
	}

	var grades []model.Grade
	if err := decodeRows(rows, &grades); err != nil {
		return nil, err
	}
	return grades, nil
}

func (g *Gateway) Attendance(ctx context.Context, lessonIDs, studentIDs []string) ([]model.AttendanceRecord, error) {
	if len(lessonIDs) == 0 || len(studentIDs) == 0 {
		return []model.AttendanceRecord{}, nil
	}

	rows, err := g.store.Select(ctx, TableAttendance, Query{
		Filters: []Filter{
			In("lesson_id", lessonIDs),
			In("student_id", studentIDs),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}

	var records []model.AttendanceRecord
	if err := decodeRows(rows, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (g *Gateway) UpsertGrade(ctx context.Context, grade model.Grade) (model.Grade, error) {
	if err := model.ValidateScore(grade.Score); err != nil {
		return model.Grade{}, err
	}

	rec, err := toRow(grade)
	if err != nil {
		return model.Grade{}, err
	}

	g.log.Debug().
		Str("student_id", grade.StudentID).
		Str("lesson_id", grade.LessonID).
		Str("period_id", grade.PeriodID).
		Int("score", grade.Score).
		Msg("Upserting grade")

	saved, err := g.store.Upsert(ctx, TableGrades, rec, gradeConflictKeys)
	if err != nil {
		return model.Grade{}, fmt.Errorf("failed to upsert grade: %w", err)
	}

	var out model.Grade
	if err := decodeRow(saved, &out); err != nil {
		return model.Grade{}, err
	}
	return out, nil
}

func (g *Gateway) DeleteGrade(ctx context.Context, studentID, lessonID, periodID string) error {
	g.log.Debug().
		Str("student_id", studentID).
		Str("lesson_id", lessonID).
		Str("period_id", periodID).
		Msg("Deleting grade")

	err := g.store.Delete(ctx, TableGrades, []Filter{
		Eq("student_id", studentID),
		Eq("lesson_id", lessonID),
		Eq("period_id", periodID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete grade: %w", err)
	}
	return nil
}

// FindAttendance looks up the record for a (lesson, student) pair.
func (g *Gateway) FindAttendance(ctx context.Context, lessonID, studentID string) (*model.AttendanceRecord, error) {
	rows, err := g.store.Select(ctx, TableAttendance, Query{
		Filters: []Filter{Eq("lesson_id", lessonID), Eq("student_id", studentID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance record: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var rec model.AttendanceRecord
	if err := decodeRow(rows[0], &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveAttendance updates an existing record by id.
func (g *Gateway) SaveAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	return g.writeAttendance(ctx, rec, idConflictKeys)
}

func (g *Gateway) InsertAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	return g.writeAttendance(ctx, rec, attendanceConflictKeys)
}

func (g *Gateway) writeAttendance(ctx context.Context, rec model.AttendanceRecord, conflictKeys []string) (model.AttendanceRecord, error) {
	if err := rec.Status.Validate(); err != nil {
		return model.AttendanceRecord{}, err
	}

	row, err := toRow(rec)
	if err != nil {
		return model.AttendanceRecord{}, err
	}

	saved, err := g.store.Upsert(ctx, TableAttendance, row, conflictKeys)
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("failed to write attendance: %w", err)
	}

	var out model.AttendanceRecord
	if err := decodeRow(saved, &out); err != nil {
		return model.AttendanceRecord{}, err
	}
	return out, nil
}
