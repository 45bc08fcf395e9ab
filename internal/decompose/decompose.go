// Package decompose turns one dump entity into relational rows: one row for
// the entity's primary table and an ordered row list per child table.
//
// Decomposers are pure functions of a single entity. They never escape or
// quote values; that is the sink's job.
package decompose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

// ChildRows holds the rows of one child table for one entity, in document
// order.
type ChildRows struct {
	Table string
	Rows  [][]string
}

// Result is the decomposition of one entity. Children lists every child
// table of the kind, in a fixed order, including empty ones.
type Result struct {
	Table    string
	Primary  []string
	Children []ChildRows
}

// RowCount returns the number of rows in the result, primary included.
func (r *Result) RowCount() int {
	n := 1
	for _, c := range r.Children {
		n += len(c.Rows)
	}
	return n
}

// Decomposer maps entities of one kind to rows.
type Decomposer interface {
	Kind() dump.Kind
	// Tables returns the primary table followed by the child tables.
	Tables() []string
	Decompose(ent dump.Entity) (*Result, error)
}

// New returns the decomposer of a kind. It verifies against reg that every
// table it writes exists and that its rows have the registered width.
func New(kind dump.Kind, reg *schema.Registry) (Decomposer, error) {
	var d Decomposer
	switch kind {
	case dump.Artist:
		d = newTyped(kind, artistTables, decomposeArtist)
	case dump.Label:
		d = newTyped(kind, labelTables, decomposeLabel)
	case dump.Master:
		d = newTyped(kind, masterTables, decomposeMaster)
	case dump.Release:
		d = newTyped(kind, releaseTables, decomposeRelease)
	default:
		return nil, fmt.Errorf("%w: %d", dump.ErrUnknownKind, int(kind))
	}

	if err := selfCheck(d, reg); err != nil {
		return nil, err
	}
	return d, nil
}

// selfCheck decomposes a fully populated sample entity and checks every
// produced row against the registry.
func selfCheck(d Decomposer, reg *schema.Registry) error {
	for _, table := range d.Tables() {
		def, ok := reg.Table(table)
		if !ok {
			return &schema.MismatchError{Table: table, Want: -1}
		}
		if def.Group != d.Kind().String() {
			return fmt.Errorf("table %s belongs to %s, not %s", table, def.Group, d.Kind())
		}
	}

	res, err := d.Decompose(sample(d.Kind()))
	if err != nil {
		return fmt.Errorf("decompose sample %s: %w", d.Kind(), err)
	}
	if err := reg.Check(res.Table, res.Primary); err != nil {
		return err
	}
	for _, c := range res.Children {
		if len(c.Rows) == 0 {
			return fmt.Errorf("sample %s produced no %s rows", d.Kind(), c.Table)
		}
		for _, row := range c.Rows {
			if err := reg.Check(c.Table, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// typed adapts a function over one concrete record type to Decomposer.
type typed[T dump.Entity] struct {
	kind   dump.Kind
	tables []string
	fn     func(T, *builder)
}

func newTyped[T dump.Entity](kind dump.Kind, tables []string, fn func(T, *builder)) *typed[T] {
	return &typed[T]{kind: kind, tables: tables, fn: fn}
}

func (t *typed[T]) Kind() dump.Kind { return t.kind }

func (t *typed[T]) Tables() []string { return append([]string(nil), t.tables...) }

func (t *typed[T]) Decompose(ent dump.Entity) (*Result, error) {
	rec, ok := ent.(T)
	if !ok {
		return nil, fmt.Errorf("%s decomposer got %T", t.kind, ent)
	}
	b := newBuilder(t.tables, ent.EntityID())
	t.fn(rec, b)
	if b.res.Primary == nil {
		return nil, fmt.Errorf("%s %d: no primary row", t.kind, ent.EntityID())
	}
	return b.res, nil
}

// builder accumulates the rows of one entity.
type builder struct {
	id    string
	res   *Result
	index map[string]int
}

func newBuilder(tables []string, id int64) *builder {
	b := &builder{
		id:    strconv.FormatInt(id, 10),
		res:   &Result{Table: tables[0]},
		index: make(map[string]int, len(tables)-1),
	}
	for i, table := range tables[1:] {
		b.res.Children = append(b.res.Children, ChildRows{Table: table})
		b.index[table] = i
	}
	return b
}

func (b *builder) primary(values ...string) {
	b.res.Primary = values
}

// child appends a row whose first column is the entity id.
func (b *builder) child(table string, values ...string) {
	i, ok := b.index[table]
	if !ok {
		panic("decompose: table not declared for kind: " + table)
	}
	row := make([]string, 0, len(values)+1)
	row = append(row, b.id)
	row = append(row, values...)
	b.res.Children[i].Rows = append(b.res.Children[i].Rows, row)
}

// ident normalizes id-like text: surrounding whitespace is dropped.
func ident(s string) string {
	return strings.TrimSpace(s)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// flagText normalizes a boolean attribute; anything unrecognized is empty.
func flagText(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return "true"
	case "false", "0", "no":
		return "false"
	}
	return ""
}
