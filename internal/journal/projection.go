package journal

import (
	"sort"
	"sync"

	"school-journal/internal/model"
)

// Project joins students, lessons, grades and attendance into grid rows.
// It is pure: the inputs are not modified and equal inputs give equal rows.
// Cells without an attendance record show defaultStatus.
func Project(students []model.Student, lessons []model.Lesson, grades []model.Grade, attendance []model.AttendanceRecord, defaultStatus model.AttendanceStatus) []model.GridRow {
	ordered := append([]model.Lesson(nil), lessons...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date.Time)
	})

	known := make(map[string]struct{}, len(ordered))
	for _, l := range ordered {
		known[l.ID] = struct{}{}
	}

	// Grades or records for lessons outside the loaded set are orphans and
	// are dropped here.
	gradeByKey := make(map[model.CellKey]model.Grade, len(grades))
	for _, g := range grades {
		if _, ok := known[g.LessonID]; !ok {
			continue
		}
		gradeByKey[g.Key()] = g
	}
	statusByKey := make(map[model.CellKey]model.AttendanceStatus, len(attendance))
	for _, a := range attendance {
		if _, ok := known[a.LessonID]; !ok {
			continue
		}
		statusByKey[a.Key()] = a.Status
	}

	rows := make([]model.GridRow, 0, len(students))
	for _, st := range students {
		row := model.GridRow{
			Student: st,
			Cells:   make([]model.GridCell, 0, len(ordered)),
			Entries: []model.GridEntry{},
		}

		for _, l := range ordered {
			key := model.CellKey{StudentID: st.ID, LessonID: l.ID}

			status, hasStatus := statusByKey[key]
			if !hasStatus {
				status = defaultStatus
			}

			cell := model.GridCell{
				LessonID:        l.ID,
				Attendance:      status,
				HasAttendance:   hasStatus,
				Grade:           model.CellStatus{State: model.CellViewing},
				AttendanceState: model.CellStatus{State: model.CellViewing},
			}

			entry := model.GridEntry{
				LessonID:    l.ID,
				LessonTitle: l.Title,
				Date:        l.Date,
				Attendance:  status,
			}

			if g, ok := gradeByKey[key]; ok {
				score := g.Score
				cell.Score = &score
				entryScore := g.Score
				entry.Score = &entryScore
				row.Entries = append(row.Entries, entry)
			} else if hasStatus {
				entry.AttendanceOnly = true
				row.Entries = append(row.Entries, entry)
			}

			row.Cells = append(row.Cells, cell)
		}

		rows = append(rows, row)
	}

	return rows
}

// decorate copies the edit overlay onto projected cells.
func decorate(rows []model.GridRow, overlay map[cellID]model.CellStatus) {
	if len(overlay) == 0 {
		return
	}
	for i := range rows {
		studentID := rows[i].Student.ID
		for j := range rows[i].Cells {
			key := model.CellKey{StudentID: studentID, LessonID: rows[i].Cells[j].LessonID}
			if st, ok := overlay[cellID{kind: gradeCell, key: key}]; ok {
				rows[i].Cells[j].Grade = st
			}
			if st, ok := overlay[cellID{kind: attendanceCell, key: key}]; ok {
				rows[i].Cells[j].AttendanceState = st
			}
		}
	}
}

// projector memoizes the rows of one state version.
type projector struct {
	mu      sync.Mutex
	version uint64
	valid   bool
	rows    []model.GridRow
	runs    int
}

func (p *projector) rowsFor(version uint64, compute func() []model.GridRow) []model.GridRow {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.valid || p.version != version {
		p.rows = compute()
		p.version = version
		p.valid = true
		p.runs++
	}
	return p.rows
}
