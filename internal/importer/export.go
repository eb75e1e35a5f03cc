package importer

import (
	"fmt"
	"io"
	"strconv"

	"school-journal/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	gradesSheet     = "Grades"
	attendanceSheet = "Attendance"
)

// WriteJournal renders a journal snapshot as a workbook with one sheet of
// grades and one of attendance, a row per student and a column per lesson.
func WriteJournal(w io.Writer, snap model.JournalSnapshot) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), gradesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := file.NewSheet(attendanceSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	header := make([]any, 0, len(snap.Lessons)+1)
	header = append(header, "Student")
	for _, l := range snap.Lessons {
		header = append(header, fmt.Sprintf("%s (%s)", l.Title, l.Date))
	}

	for _, sheet := range []string{gradesSheet, attendanceSheet} {
		if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, row := range snap.Rows {
		grades := make([]any, 0, len(row.Cells)+1)
		statuses := make([]any, 0, len(row.Cells)+1)
		grades = append(grades, row.Student.FullName())
		statuses = append(statuses, row.Student.FullName())

		for _, cell := range row.Cells {
			if cell.Score != nil {
				grades = append(grades, *cell.Score)
			} else {
				grades = append(grades, "")
			}
			statuses = append(statuses, string(cell.Attendance))
		}

		axis := "A" + strconv.Itoa(i+2)
		if err := file.SetSheetRow(gradesSheet, axis, &grades); err != nil {
			return fmt.Errorf("failed to write grades: %w", err)
		}
		if err := file.SetSheetRow(attendanceSheet, axis, &statuses); err != nil {
			return fmt.Errorf("failed to write attendance: %w", err)
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
