package model

import (
	"strconv"
	"strings"

	"school-journal/pkg/errors"
)

const (
	MinScore = 1
	MaxScore = 10
)

// Grade is unique per (student, lesson) within a grading period.
type Grade struct {
	StudentID string `json:"student_id"`
	LessonID  string `json:"lesson_id"`
	PeriodID  string `json:"period_id"`
	Score     int    `json:"score"`
}

func (g Grade) Key() CellKey {
	return CellKey{StudentID: g.StudentID, LessonID: g.LessonID}
}

// GradeRow is one parsed line of an imported grade sheet.
type GradeRow struct {
	Row       int    `json:"row"`
	StudentID string `json:"student_id"`
	LessonID  string `json:"lesson_id"`
	Score     int    `json:"score"`
}

// ParseScore interprets a draft grade value. An empty draft means the grade
// should be deleted and is reported with ok == false.
func ParseScore(draft string) (score int, ok bool, err error) {
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return 0, false, nil
	}

	score, err = strconv.Atoi(draft)
	if err != nil {
		return 0, false, errors.ValidationError{
			Field:   "score",
			Value:   draft,
			Message: "must be a whole number",
		}
	}

	if err := ValidateScore(score); err != nil {
		return 0, false, err
	}

	return score, true, nil
}

func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return errors.ValidationError{
			Field:   "score",
			Value:   score,
			Message: "must be between 1 and 10",
		}
	}
	return nil
}
