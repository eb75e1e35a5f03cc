package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"school-journal/internal/config"
	"school-journal/internal/logger"
	"school-journal/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

func NewMySQLConnection(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Store.MySQL.MaxConnections)
	db.SetMaxIdleConns(cfg.Store.MySQL.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.Store.MySQL.ConnectionLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// MySQLStore serves the journal tables from a self-hosted MySQL schema.
type MySQLStore struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ Store = (*MySQLStore)(nil)

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:  db,
		log: logger.Component("mysql_store"),
	}
}

func (s *MySQLStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	query, args, err := buildSelect(table, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewRetryableError(err, "select failed")
	}
	defer rows.Close()

	return scanRows(rows)
}

func (s *MySQLStore) Upsert(ctx context.Context, table string, rec Row, conflictKeys []string) (Row, error) {
	query, args, err := buildUpsert(table, rec)
	if err != nil {
		return nil, err
	}

	keyFilters := make([]Filter, 0, len(conflictKeys))
	for _, k := range conflictKeys {
		v, ok := rec[k]
		if !ok {
			return nil, fmt.Errorf("%w: record has no value for conflict key %s", errors.ErrRemoteStore, k)
		}
		keyFilters = append(keyFilters, Eq(k, v))
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRemoteStore, err)
	}

	saved, err := s.Select(ctx, table, Query{Filters: keyFilters})
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, fmt.Errorf("%w: upserted row not found in %s", errors.ErrRemoteStore, table)
	}
	return saved[0], nil
}

func (s *MySQLStore) Delete(ctx context.Context, table string, filters []Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("%w: refusing unfiltered delete on %s", errors.ErrRemoteStore, table)
	}

	query, args, err := buildDelete(table, filters)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRemoteStore, err)
	}
	return nil
}

func buildSelect(table string, q Query) (string, []any, error) {
	if err := checkQuery(table, q.Filters, q.Order); err != nil {
		return "", nil, err
	}

	where, args := buildWhere(q.Filters)
	query := "SELECT * FROM " + table + where
	if q.Order != nil {
		direction := "DESC"
		if q.Order.Ascending {
			direction = "ASC"
		}
		query += " ORDER BY " + q.Order.Column + " " + direction
	}
	return query, args, nil
}

func buildUpsert(table string, rec Row) (string, []any, error) {
	if err := checkIdentifier(table); err != nil {
		return "", nil, err
	}
	if len(rec) == 0 {
		return "", nil, fmt.Errorf("%w: empty record for %s", errors.ErrRemoteStore, table)
	}

	columns := make([]string, 0, len(rec))
	for col := range rec {
		if err := checkIdentifier(col); err != nil {
			return "", nil, err
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	placeholders := make([]string, len(columns))
	updates := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		placeholders[i] = "?"
		updates[i] = col + " = VALUES(" + col + ")"
		args[i] = normalizeArg(rec[col])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))
	return query, args, nil
}

func buildDelete(table string, filters []Filter) (string, []any, error) {
	if err := checkQuery(table, filters, nil); err != nil {
		return "", nil, err
	}

	where, args := buildWhere(filters)
	return "DELETE FROM " + table + where, args, nil
}

func buildWhere(filters []Filter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			clauses = append(clauses, f.Column+" = ?")
			args = append(args, normalizeArg(f.Value))
		case OpIn:
			values, _ := f.Value.([]string)
			if len(values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			clauses = append(clauses, f.Column+" IN (?"+strings.Repeat(", ?", len(values)-1)+")")
			for _, v := range values {
				args = append(args, v)
			}
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// normalizeArg undoes the JSON round trip records go through: whole floats
// become integers and RFC3339 strings become timestamps.
func normalizeArg(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) {
			return int64(val)
		}
		return val
	case string:
		if len(val) >= 20 && val[4] == '-' && val[10] == 'T' {
			if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
				return t.UTC()
			}
		}
		return val
	default:
		return v
	}
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col.Name()] = convertColumn(col.DatabaseTypeName(), values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func convertColumn(dbType string, v any) any {
	raw, ok := v.([]byte)
	if !ok {
		return v
	}

	s := string(raw)
	switch dbType {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "UNSIGNED INT", "UNSIGNED BIGINT":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "DECIMAL", "FLOAT", "DOUBLE":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "DATE":
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t.Format("2006-01-02")
		}
	case "DATETIME", "TIMESTAMP":
		if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
			return t.UTC()
		}
	}
	return s
}
