package importer

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"school-journal/internal/model"
	"school-journal/pkg/errors"

	"github.com/xuri/excelize/v2"
)

const (
	ColumnStudentID = "student_id"
	ColumnLessonID  = "lesson_id"
	ColumnScore     = "score"
)

var requiredColumns = []string{ColumnStudentID, ColumnLessonID, ColumnScore}

// Parser reads grade sheets: the first worksheet, a header row naming the
// student_id, lesson_id and score columns in any order, then one grade per row.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, data []byte) ([]model.GradeRow, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", errors.ErrInvalidFileFormat, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ErrInvalidFileFormat
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	if len(rows) < 2 { // Header + at least one data row
		return nil, fmt.Errorf("%w: sheet %q has no grade rows", errors.ErrInvalidFileFormat, sheets[0])
	}

	columnMap := make(map[string]int)
	for i, col := range rows[0] {
		columnMap[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range requiredColumns {
		if _, exists := columnMap[col]; !exists {
			return nil, fmt.Errorf("%w: missing required column: %s", errors.ErrInvalidFileFormat, col)
		}
	}

	var grades []model.GradeRow
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rowNum := i + 2
		if blank(row) {
			continue
		}

		grade, err := p.parseRow(row, columnMap, rowNum)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}
		grades = append(grades, *grade)
	}

	return grades, nil
}

func (p *Parser) parseRow(row []string, columnMap map[string]int, rowNum int) (*model.GradeRow, error) {
	getValue := func(colName string) string {
		if idx, exists := columnMap[colName]; exists && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	studentID := getValue(ColumnStudentID)
	if studentID == "" {
		return nil, fmt.Errorf("student_id is required")
	}

	lessonID := getValue(ColumnLessonID)
	if lessonID == "" {
		return nil, fmt.Errorf("lesson_id is required")
	}

	scoreStr := getValue(ColumnScore)
	if scoreStr == "" {
		return nil, fmt.Errorf("score is required")
	}

	score, err := parseWhole(scoreStr)
	if err != nil {
		return nil, errors.ValidationError{Field: ColumnScore, Value: scoreStr, Message: "must be a whole number"}
	}

	return &model.GradeRow{
		Row:       rowNum,
		StudentID: studentID,
		LessonID:  lessonID,
		Score:     score,
	}, nil
}

// parseWhole accepts "7" as well as the "7.0" some spreadsheet tools write.
func parseWhole(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("not a whole number: %s", s)
	}
	return int(f), nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
