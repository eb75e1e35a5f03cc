package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"school-journal/pkg/errors"
)

// Table names of the remote relational store.
const (
	TablePeriods    = "grading_periods"
	TableStudents   = "class_students"
	TableLessons    = "lessons"
	TableGrades     = "grades"
	TableAttendance = "attendance"
)

// Row is one record as exchanged with a Store.
type Row map[string]any

type Operator string

const (
	OpEq Operator = "eq"
	OpIn Operator = "in"
)

type Filter struct {
	Column string
	Op     Operator
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

type Order struct {
	Column    string
	Ascending bool
}

type Query struct {
	Filters []Filter
	Order   *Order
}

// Store is the minimal surface of the remote relational store: filtered
// reads, upserts resolved on a composite conflict key, and deletes.
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Upsert(ctx context.Context, table string, rec Row, conflictKeys []string) (Row, error)
	Delete(ctx context.Context, table string, filters []Filter) error
}

var identifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdentifier(name string) error {
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", errors.ErrInvalidIdentifier, name)
	}
	return nil
}

func checkQuery(table string, filters []Filter, order *Order) error {
	if err := checkIdentifier(table); err != nil {
		return err
	}
	for _, f := range filters {
		if err := checkIdentifier(f.Column); err != nil {
			return err
		}
		switch f.Op {
		case OpEq:
		case OpIn:
			if _, ok := f.Value.([]string); !ok {
				return fmt.Errorf("%w: %s expects []string", errors.ErrUnsupportedFilterOperand, f.Column)
			}
		default:
			return fmt.Errorf("%w: %s", errors.ErrUnsupportedFilterOperand, f.Op)
		}
	}
	if order != nil {
		return checkIdentifier(order.Column)
	}
	return nil
}

func toRow(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return row, nil
}

func decodeRows(rows []Row, dest any) error {
	if rows == nil {
		rows = []Row{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to decode rows: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode rows: %w", err)
	}
	return nil
}

func decodeRow(row Row, dest any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to decode row: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode row: %w", err)
	}
	return nil
}
