package importer

import (
	"context"
	"fmt"
	"regexp"

	"school-journal/internal/model"
	"school-journal/pkg/errors"
)

type Validator struct {
	idRegex *regexp.Regexp
}

func NewValidator() *Validator {
	return &Validator{
		idRegex: regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`),
	}
}

// Validate checks every row and rejects sheets that grade the same
// (student, lesson) pair twice.
func (v *Validator) Validate(ctx context.Context, grades []model.GradeRow) error {
	if len(grades) == 0 {
		return errors.ErrSchemaValidation
	}

	seen := make(map[model.CellKey]int, len(grades))
	for _, grade := range grades {
		if err := v.validateGrade(grade); err != nil {
			return err
		}

		key := model.CellKey{StudentID: grade.StudentID, LessonID: grade.LessonID}
		if first, dup := seen[key]; dup {
			return errors.ValidationError{
				Field:   "row",
				Value:   grade.Row,
				Message: fmt.Sprintf("duplicates the grade on row %d", first),
			}
		}
		seen[key] = grade.Row
	}

	return nil
}

func (v *Validator) validateGrade(grade model.GradeRow) error {
	if !v.idRegex.MatchString(grade.StudentID) {
		return errors.ValidationError{
			Field:   ColumnStudentID,
			Value:   grade.StudentID,
			Message: fmt.Sprintf("row %d: must be 1-64 letters, digits, '-' or '_'", grade.Row),
		}
	}

	if !v.idRegex.MatchString(grade.LessonID) {
		return errors.ValidationError{
			Field:   ColumnLessonID,
			Value:   grade.LessonID,
			Message: fmt.Sprintf("row %d: must be 1-64 letters, digits, '-' or '_'", grade.Row),
		}
	}

	if err := model.ValidateScore(grade.Score); err != nil {
		return errors.ValidationError{
			Field:   ColumnScore,
			Value:   grade.Score,
			Message: fmt.Sprintf("row %d: must be between %d and %d", grade.Row, model.MinScore, model.MaxScore),
		}
	}

	return nil
}
