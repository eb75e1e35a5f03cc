package model

import (
	"encoding/json"
	"strings"
	"time"

	"school-journal/pkg/errors"
)

const dateLayout = "2006-01-02"

// Date accepts both calendar dates and RFC3339 timestamps on decode.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return err
	}
	d.Time = t.UTC()
	return nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

type Student struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

type Lesson struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      Date   `json:"date"`
	SubjectID string `json:"subject_id"`
}

// GradingPeriod is a quarter; it scopes which grades are visible.
type GradingPeriod struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

func (s AttendanceStatus) Validate() error {
	if !s.Valid() {
		return errors.ValidationError{
			Field:   "status",
			Value:   string(s),
			Message: "must be one of present, absent, late, excused",
		}
	}
	return nil
}

func ParseAttendanceStatus(raw string) (AttendanceStatus, error) {
	status := AttendanceStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err := status.Validate(); err != nil {
		return "", err
	}
	return status, nil
}

// AttendanceRecord is unique per (lesson, student).
type AttendanceRecord struct {
	ID        string           `json:"id"`
	LessonID  string           `json:"lesson_id"`
	StudentID string           `json:"student_id"`
	Status    AttendanceStatus `json:"status"`
	NotedAt   time.Time        `json:"noted_at"`
}

func (a AttendanceRecord) Key() CellKey {
	return CellKey{StudentID: a.StudentID, LessonID: a.LessonID}
}

// Selection is the filter scope of a journal session.
type Selection struct {
	ClassID   string `json:"class_id"`
	SubjectID string `json:"subject_id"`
	PeriodID  string `json:"period_id"`
}

func (s Selection) HasScope() bool {
	return s.ClassID != "" && s.SubjectID != ""
}
