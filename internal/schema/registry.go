// Package schema holds the table definitions every exported CSV file must
// match. A Registry is built once per run and is read-only afterwards; it is
// handed to the decomposers, the CSV sink and the loaders explicitly.
package schema

import (
	"fmt"
	"strings"
)

// FieldType represents the database type a column is created with.
// The exporter writes every value as text; only loaders that create tables
// look at it.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInt
	FieldBool
)

// String returns the lowercase type name.
func (t FieldType) String() string {
	switch t {
	case FieldInt:
		return "integer"
	case FieldBool:
		return "boolean"
	default:
		return "text"
	}
}

// FieldSpec describes a single column.
type FieldSpec struct {
	Name string
	Type FieldType
}

// TableDef contains everything the pipeline needs to know about a table.
type TableDef struct {
	Name       string      // Table and file name: "release_track"
	Group      string      // Entity kind owning the table: "release"
	Primary    bool        // One row per entity when true
	ForeignKey string      // Column referencing the owning primary row (child tables)
	Fields     []FieldSpec // Ordered columns
}

// Columns returns the ordered column names.
func (d TableDef) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Registry maps table names to their definitions.
type Registry struct {
	tables  map[string]TableDef
	columns map[string][]string
	order   []string
}

// New builds a registry from table definitions. Declaration order is kept
// for Tables and TablesFor.
func New(defs ...TableDef) (*Registry, error) {
	r := &Registry{
		tables:  make(map[string]TableDef, len(defs)),
		columns: make(map[string][]string, len(defs)),
		order:   make([]string, 0, len(defs)),
	}

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("table definition without a name")
		}
		if _, exists := r.tables[def.Name]; exists {
			return nil, fmt.Errorf("table already registered: %s", def.Name)
		}
		if len(def.Fields) == 0 {
			return nil, fmt.Errorf("table %s has no columns", def.Name)
		}

		seen := make(map[string]bool, len(def.Fields))
		for _, f := range def.Fields {
			if f.Name == "" {
				return nil, fmt.Errorf("table %s has an unnamed column", def.Name)
			}
			if seen[f.Name] {
				return nil, fmt.Errorf("table %s: duplicate column %s", def.Name, f.Name)
			}
			seen[f.Name] = true
		}
		if !def.Primary && def.ForeignKey != "" && !seen[def.ForeignKey] {
			return nil, fmt.Errorf("table %s: foreign key %s is not a column", def.Name, def.ForeignKey)
		}

		def.Fields = append([]FieldSpec(nil), def.Fields...)
		r.tables[def.Name] = def
		r.columns[def.Name] = def.Columns()
		r.order = append(r.order, def.Name)
	}

	return r, nil
}

// MustNew is New for static table sets; it panics on an invalid definition.
func MustNew(defs ...TableDef) *Registry {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Columns returns the ordered column names of a table.
// The returned slice is a copy.
func (r *Registry) Columns(table string) ([]string, bool) {
	cols, ok := r.columns[table]
	if !ok {
		return nil, false
	}
	return append([]string(nil), cols...), true
}

// Width returns the column count of a table, or -1 if it is unknown.
func (r *Registry) Width(table string) int {
	cols, ok := r.columns[table]
	if !ok {
		return -1
	}
	return len(cols)
}

// Table returns a table definition by name.
func (r *Registry) Table(table string) (TableDef, bool) {
	def, ok := r.tables[table]
	return def, ok
}

// Tables returns all definitions in declaration order.
func (r *Registry) Tables() []TableDef {
	out := make([]TableDef, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}

// TablesFor returns the tables of one group, primary table first.
func (r *Registry) TablesFor(group string) []TableDef {
	var primary, children []TableDef
	for _, name := range r.order {
		def := r.tables[name]
		if def.Group != group {
			continue
		}
		if def.Primary {
			primary = append(primary, def)
		} else {
			children = append(children, def)
		}
	}
	return append(primary, children...)
}

// Check verifies that a row has exactly the shape registered for table.
func (r *Registry) Check(table string, row []string) error {
	cols, ok := r.columns[table]
	if !ok {
		return &MismatchError{Table: table, Want: -1, Got: len(row)}
	}
	if len(row) != len(cols) {
		return &MismatchError{Table: table, Want: len(cols), Got: len(row), Columns: cols}
	}
	return nil
}

// MismatchError reports a row that disagrees with the registry. It always
// indicates a programming error in a decomposer and is never recoverable.
type MismatchError struct {
	Table   string
	Want    int // -1 when the table is not registered
	Got     int
	Columns []string
}

func (e *MismatchError) Error() string {
	if e.Want < 0 {
		return fmt.Sprintf("schema mismatch: table %q is not registered", e.Table)
	}
	return fmt.Sprintf("schema mismatch: table %q expects %d columns (%s), row has %d",
		e.Table, e.Want, strings.Join(e.Columns, ","), e.Got)
}
