package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"school-journal/pkg/errors"
)

// uniqueKeys mirrors the unique constraints of the hosted schema.
var uniqueKeys = map[string][]string{
	TableGrades:     {"student_id", "lesson_id", "period_id"},
	TableAttendance: {"lesson_id", "student_id"},
}

// MemoryStore keeps every table in process memory. It backs tests and the
// "memory" store driver.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]Row)}
}

// Insert appends records to a table without conflict resolution.
func (m *MemoryStore) Insert(table string, records ...any) error {
	if err := checkIdentifier(table); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		row, err := toRow(r)
		if err != nil {
			return err
		}
		m.tables[table] = append(m.tables[table], row)
	}
	return nil
}

// Count returns how many rows of a table match the filters.
func (m *MemoryStore) Count(table string, filters ...Filter) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, row := range m.tables[table] {
		if matches(row, filters) {
			n++
		}
	}
	return n
}

func (m *MemoryStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if err := checkQuery(table, q.Filters, q.Order); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Row, 0)
	for _, row := range m.tables[table] {
		if matches(row, q.Filters) {
			out = append(out, copyRow(row))
		}
	}

	if q.Order != nil {
		col, asc := q.Order.Column, q.Order.Ascending
		sort.SliceStable(out, func(i, j int) bool {
			a, b := fmt.Sprint(out[i][col]), fmt.Sprint(out[j][col])
			if asc {
				return a < b
			}
			return a > b
		})
	}

	return out, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, table string, rec Row, conflictKeys []string) (Row, error) {
	if err := checkIdentifier(table); err != nil {
		return nil, err
	}
	if len(conflictKeys) == 0 {
		return nil, fmt.Errorf("%w: upsert on %s needs conflict keys", errors.ErrRemoteStore, table)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	target := -1
	for i, row := range rows {
		if sameKey(row, rec, conflictKeys) {
			target = i
			break
		}
	}

	merged := copyRow(rec)
	if target >= 0 {
		merged = copyRow(rows[target])
		for k, v := range rec {
			merged[k] = v
		}
	}

	if unique, ok := uniqueKeys[table]; ok {
		for i, row := range rows {
			if i != target && sameKey(row, merged, unique) {
				return nil, fmt.Errorf("%w: duplicate key on %s", errors.ErrRemoteStore, table)
			}
		}
	}

	if target >= 0 {
		rows[target] = merged
	} else {
		m.tables[table] = append(rows, merged)
	}

	return copyRow(merged), nil
}

func (m *MemoryStore) Delete(ctx context.Context, table string, filters []Filter) error {
	if err := checkQuery(table, filters, nil); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tables[table][:0]
	for _, row := range m.tables[table] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	m.tables[table] = kept
	return nil
}

func matches(row Row, filters []Filter) bool {
	for _, f := range filters {
		got := fmt.Sprint(row[f.Column])
		switch f.Op {
		case OpEq:
			if got != fmt.Sprint(f.Value) {
				return false
			}
		case OpIn:
			values, _ := f.Value.([]string)
			found := false
			for _, v := range values {
				if got == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func sameKey(a, b Row, keys []string) bool {
	for _, k := range keys {
		av, aok := a[k]
		bv, bok := b[k]
		if !aok || !bok || fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
