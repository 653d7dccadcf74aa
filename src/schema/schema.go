package schema

import (
	"errors"
	"fmt"
)

// ErrInvalidTableName is returned when the table name is empty.
var ErrInvalidTableName = errors.New("table name is required")

// Column describes a single column of a PostgreSQL table.
type Column struct {
	Name     string // Column name
	Type     string // PostgreSQL data type, optional for statically declared schemas
	Nullable bool   // True when the column is nullable
}

// Schema is the static metadata of a storage-backed table: its name, the
// ordered column list and the subset of columns forming the primary key.
// A Schema is immutable after construction and can be shared freely.
type Schema struct {
	Table      string
	Columns    []Column
	PrimaryKey []string
}

// New builds a Schema from statically declared metadata.
// Every identifier is validated against the strict allow-list; the primary key
// columns must be part of the column list. The primary key may be empty when
// the caller intends to override it with explicit key fields.
func New(table string, columns []Column, primaryKey []string) (*Schema, error) {
	if table == "" {
		return nil, ErrInvalidTableName
	}
	if err := ValidateIdentifier(table, true); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: at least one column is required", table)
	}

	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if err := ValidateIdentifier(col.Name, true); err != nil {
			return nil, fmt.Errorf("invalid column name at index %d: %w", i, err)
		}
		// The type is embedded in statement text as a cast, so it goes
		// through the same allow-listing as the identifiers.
		if col.Type != "" {
			if err := ValidateTypeName(col.Type); err != nil {
				return nil, fmt.Errorf("invalid type for column %s: %w", col.Name, err)
			}
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("table %s: duplicate column %s", table, col.Name)
		}
		seen[col.Name] = true
	}
	for _, key := range primaryKey {
		if !seen[key] {
			return nil, fmt.Errorf("table %s: primary key column %s is not declared", table, key)
		}
	}

	s := &Schema{
		Table:      table,
		Columns:    make([]Column, len(columns)),
		PrimaryKey: make([]string, len(primaryKey)),
	}
	copy(s.Columns, columns)
	copy(s.PrimaryKey, primaryKey)
	return s, nil
}

// ColumnNames returns the column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the column with the given name, if declared.
func (s *Schema) Column(name string) (Column, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the schema declares the given column.
func (s *Schema) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}
