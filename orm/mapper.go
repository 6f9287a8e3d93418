package orm

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Scanner is the part of *sql.Rows and *sql.Row a Mapper reads from.
type Scanner interface {
	Scan(dest ...any) error
}

// Mapper translates a row type to the columns of one table.
type Mapper[R any] interface {
	Table() string
	// Columns lists every column, primary key columns included, in the
	// order Values and Scan use.
	Columns() []string
	PrimaryKey() []string
	Values(row R) []any
	// KeyValues returns the primary key values of row, in PrimaryKey order.
	KeyValues(row R) []any
	Scan(s Scanner) (R, error)
}

// Record is a row as a map of column name to value.
type Record map[string]any

// RecordMapper maps Records onto a table declared at runtime.
type RecordMapper struct {
	table      string
	columns    []string
	primaryKey []string
}

// NewRecordMapper declares a table. Every primary key column must be one of
// columns.
func NewRecordMapper(table string, columns, primaryKey []string) (*RecordMapper, error) {
	if table == "" {
		return nil, errors.New("table name is empty")
	}
	if len(primaryKey) == 0 {
		return nil, errors.Errorf("table %s has no primary key", table)
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		if known[c] {
			return nil, errors.Errorf("table %s declares column %s twice", table, c)
		}
		known[c] = true
	}
	for _, pk := range primaryKey {
		if !known[pk] {
			return nil, errors.Errorf("primary key column %s is not a column of table %s", pk, table)
		}
	}
	return &RecordMapper{
		table:      table,
		columns:    append([]string(nil), columns...),
		primaryKey: append([]string(nil), primaryKey...),
	}, nil
}

func (m *RecordMapper) Table() string        { return m.table }
func (m *RecordMapper) Columns() []string    { return m.columns }
func (m *RecordMapper) PrimaryKey() []string { return m.primaryKey }

func (m *RecordMapper) Values(r Record) []any {
	out := make([]any, len(m.columns))
	for i, c := range m.columns {
		out[i] = r[c]
	}
	return out
}

func (m *RecordMapper) KeyValues(r Record) []any {
	out := make([]any, len(m.primaryKey))
	for i, c := range m.primaryKey {
		out[i] = r[c]
	}
	return out
}

func (m *RecordMapper) Scan(s Scanner) (Record, error) {
	dest := make([]any, len(m.columns))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	r := make(Record, len(m.columns))
	for i, c := range m.columns {
		v := *(dest[i].(*any))
		// sqlite hands text back as []byte
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		r[c] = v
	}
	return r, nil
}

// Check reports columns of r the table does not declare and missing primary
// key values.
func (m *RecordMapper) Check(r Record) error {
	var unknown []string
	for c := range r {
		if !m.hasColumn(c) {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("table %s has no columns %v", m.table, unknown)
	}
	for _, pk := range m.primaryKey {
		if r[pk] == nil {
			return fmt.Errorf("primary key column %s of table %s is not set", pk, m.table)
		}
	}
	return nil
}

func (m *RecordMapper) hasColumn(name string) bool {
	for _, c := range m.columns {
		if c == name {
			return true
		}
	}
	return false
}
