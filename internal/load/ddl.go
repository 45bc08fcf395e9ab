package load

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/dd2db/internal/schema"
)

// Dialect selects the SQL flavor of generated statements.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// quoteIdent quotes an identifier for both dialects.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnType(t schema.FieldType, d Dialect) string {
	switch t {
	case schema.FieldInt:
		if d == Postgres {
			return "bigint"
		}
		return "INTEGER"
	case schema.FieldBool:
		if d == Postgres {
			return "boolean"
		}
		return "INTEGER"
	default:
		if d == Postgres {
			return "text"
		}
		return "TEXT"
	}
}

// CreateTableSQL returns the CREATE TABLE statement of def. Keys and
// indexes are left to OptimizeSQL so that bulk loads stay fast.
func CreateTableSQL(def schema.TableDef, d Dialect) string {
	cols := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		cols[i] = quoteIdent(f.Name) + " " + columnType(f.Type, d)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(def.Name), strings.Join(cols, ", "))
}

// DropTableSQL returns the DROP TABLE statement of def.
func DropTableSQL(def schema.TableDef) string {
	return "DROP TABLE IF EXISTS " + quoteIdent(def.Name)
}

// OptimizeSQL returns the statements run after loading: a unique index on
// the id of primary tables and an index on the foreign key of child tables.
func OptimizeSQL(def schema.TableDef) []string {
	if def.Primary {
		return []string{fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(def.Name+"_pkey"), quoteIdent(def.Name), quoteIdent(def.Fields[0].Name))}
	}
	if def.ForeignKey == "" {
		return nil
	}
	return []string{fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdent(def.Name+"_"+def.ForeignKey+"_idx"), quoteIdent(def.Name), quoteIdent(def.ForeignKey))}
}

// copySQL returns the COPY statement for a file with a header line.
func copySQL(def schema.TableDef) string {
	cols := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		cols[i] = quoteIdent(f.Name)
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER true)",
		quoteIdent(def.Name), strings.Join(cols, ", "))
}

// insertSQL returns a parameterized INSERT for SQLite.
func insertSQL(def schema.TableDef) string {
	cols := make([]string, len(def.Fields))
	marks := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		cols[i] = quoteIdent(f.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(def.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
}
