package model

// CellKey identifies one (student, lesson) pair of the journal grid.
type CellKey struct {
	StudentID string `json:"student_id"`
	LessonID  string `json:"lesson_id"`
}

type CellState string

const (
	CellViewing CellState = "viewing"
	CellEditing CellState = "editing"
	CellSaving  CellState = "saving"
)

// Marker is a short-lived visual hint attached to a cell after a save.
type Marker string

const (
	MarkerNone   Marker = ""
	MarkerAdded  Marker = "added"
	MarkerEdited Marker = "edited"
	MarkerError  Marker = "error"
)

// CellStatus is the editing overlay of a single cell.
type CellStatus struct {
	State   CellState `json:"state"`
	Draft   string    `json:"draft,omitempty"`
	Marker  Marker    `json:"marker,omitempty"`
	Message string    `json:"message,omitempty"`
}

type GridCell struct {
	LessonID      string           `json:"lesson_id"`
	Score         *int             `json:"score,omitempty"`
	Attendance    AttendanceStatus `json:"attendance"`
	HasAttendance bool             `json:"has_attendance"`

	Grade           CellStatus `json:"grade_cell"`
	AttendanceState CellStatus `json:"attendance_cell"`
}

// GridEntry lists activity for a student: one entry per grade, plus
// attendance-only entries where a status was recorded without a grade.
type GridEntry struct {
	LessonID       string           `json:"lesson_id"`
	LessonTitle    string           `json:"lesson_title"`
	Date           Date             `json:"date"`
	Score          *int             `json:"score,omitempty"`
	Attendance     AttendanceStatus `json:"attendance"`
	AttendanceOnly bool             `json:"attendance_only"`
}

type GridRow struct {
	Student Student     `json:"student"`
	Cells   []GridCell  `json:"cells"`
	Entries []GridEntry `json:"entries"`
}
