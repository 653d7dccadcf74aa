// Package entity maps domain struct types onto table columns by name.
//
// Column names are taken from the `db` struct tag when present, otherwise the
// snake_case form of the field name is used. Fields tagged `db:"-"` and
// unexported fields are ignored. Anonymous embedded structs are flattened.
package entity

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// Mapper provides named column access over one entity struct type.
// It is computed once per type and is immutable afterwards, so a single
// Mapper is safe for concurrent use.
type Mapper struct {
	typ    reflect.Type
	fields map[string]fieldInfo
	names  []string
}

type fieldInfo struct {
	index []int
	typ   reflect.Type
}

// For builds a Mapper for the entity type E.
func For[E any]() (*Mapper, error) {
	return New(reflect.TypeFor[E]())
}

// New builds a Mapper for the given struct type. Pointer types are
// dereferenced; anything that is not a struct is rejected.
func New(entityType reflect.Type) (*Mapper, error) {
	t := entityType
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity type %s is not a struct", entityType)
	}

	m := &Mapper{
		typ:    t,
		fields: make(map[string]fieldInfo),
	}
	if err := m.collect(t, nil); err != nil {
		return nil, err
	}
	if len(m.names) == 0 {
		return nil, fmt.Errorf("entity type %s exposes no mappable fields", t)
	}
	return m, nil
}

func (m *Mapper) collect(t reflect.Type, parent []int) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), parent...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("db") == "" {
			if err := m.collect(f.Type, index); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		name := columnName(f)
		if name == "" {
			continue
		}
		if prev, dup := m.fields[name]; dup {
			// Outer fields shadow embedded ones; a true duplicate is a bug.
			if len(prev.index) == len(index) {
				return fmt.Errorf("entity type %s maps column %s twice", m.typ, name)
			}
			if len(prev.index) < len(index) {
				continue
			}
		} else {
			m.names = append(m.names, name)
		}
		m.fields[name] = fieldInfo{index: index, typ: f.Type}
	}
	return nil
}

// columnName resolves the column name of a struct field, empty when skipped.
func columnName(f reflect.StructField) string {
	tag := f.Tag.Get("db")
	if tag == "-" {
		return ""
	}
	if tag != "" {
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	}
	return toSnakeCase(f.Name)
}

func toSnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Break before an upper rune unless it continues an acronym run.
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Columns returns the mapped column names in field declaration order.
func (m *Mapper) Columns() []string {
	names := make([]string, len(m.names))
	copy(names, m.names)
	return names
}

// Has reports whether the entity type exposes the given column.
func (m *Mapper) Has(col string) bool {
	_, ok := m.fields[col]
	return ok
}

// Type returns the mapped struct type.
func (m *Mapper) Type() reflect.Type {
	return m.typ
}

func (m *Mapper) structValue(ent any) (reflect.Value, error) {
	v := reflect.ValueOf(ent)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("entity of type %s is nil", m.typ)
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Type() != m.typ {
		return reflect.Value{}, fmt.Errorf("expected entity of type %s, got %T", m.typ, ent)
	}
	return v, nil
}

// Value extracts the value of a single column from an entity instance.
// The value is passed through unchanged in type.
func (m *Mapper) Value(ent any, col string) (any, error) {
	info, ok := m.fields[col]
	if !ok {
		return nil, fmt.Errorf("entity type %s has no field for column %s", m.typ, col)
	}
	v, err := m.structValue(ent)
	if err != nil {
		return nil, err
	}
	return v.FieldByIndex(info.index).Interface(), nil
}

// Row extracts the values for the given columns from an entity instance, in
// column order.
func (m *Mapper) Row(ent any, cols []string) ([]any, error) {
	v, err := m.structValue(ent)
	if err != nil {
		return nil, err
	}
	row := make([]any, len(cols))
	for i, col := range cols {
		info, ok := m.fields[col]
		if !ok {
			return nil, fmt.Errorf("entity type %s has no field for column %s", m.typ, col)
		}
		row[i] = v.FieldByIndex(info.index).Interface()
	}
	return row, nil
}

// Apply writes column values back onto an entity instance, converting
// driver-returned representations to the field types where needed.
// ent must be a non-nil pointer to the mapped struct type.
func (m *Mapper) Apply(row map[string]any, ent any) error {
	v := reflect.ValueOf(ent)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("entity must be a non-nil pointer to %s, got %T", m.typ, ent)
	}
	v = v.Elem()
	if v.Type() != m.typ {
		return fmt.Errorf("entity must be a pointer to %s, got %T", m.typ, ent)
	}

	for col, raw := range row {
		info, ok := m.fields[col]
		if !ok {
			continue
		}
		field := v.FieldByIndex(info.index)
		if err := assign(field, raw); err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
	}
	return nil
}

func assign(field reflect.Value, raw any) error {
	if raw == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	rv := reflect.ValueOf(raw)
	ft := field.Type()

	if ft.Kind() == reflect.Pointer {
		if rv.Type().AssignableTo(ft) {
			field.Set(rv)
			return nil
		}
		ptr := reflect.New(ft.Elem())
		if err := assign(ptr.Elem(), raw); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	switch {
	case rv.Type().AssignableTo(ft):
		field.Set(rv)
	case ft.Kind() == reflect.String && rv.Kind() != reflect.String && rv.Kind() != reflect.Slice:
		// reflect would convert integers to a one-rune string here.
		return fmt.Errorf("cannot assign %T to field of type %s", raw, ft)
	case rv.Type().ConvertibleTo(ft):
		field.Set(rv.Convert(ft))
	default:
		return fmt.Errorf("cannot assign %T to field of type %s", raw, ft)
	}
	return nil
}
