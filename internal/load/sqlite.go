package load

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/dd2db/internal/schema"
)

// DefaultBatchSize is the number of rows per SQLite transaction.
const DefaultBatchSize = 1000

// SQLiteLoader creates Discogs tables in a SQLite file and imports CSV
// files with batched inserts.
type SQLiteLoader struct {
	db        *sql.DB
	reg       *schema.Registry
	batchSize int
	log       *slog.Logger
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, reg *schema.Registry, batchSize int, log *slog.Logger) (*SQLiteLoader, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// modernc reads pragmas from _pragma parameters
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &SQLiteLoader{db: db, reg: reg, batchSize: batchSize, log: log}, nil
}

// Close closes the database.
func (l *SQLiteLoader) Close() error {
	return l.db.Close()
}

// Init creates the tables.
func (l *SQLiteLoader) Init(ctx context.Context) error {
	return l.execAll(ctx, "init", CreateStatements(l.reg, SQLite))
}

// Optimize creates the indexes.
func (l *SQLiteLoader) Optimize(ctx context.Context) error {
	return l.execAll(ctx, "optimize", OptimizeStatements(l.reg))
}

// Drop removes the tables.
func (l *SQLiteLoader) Drop(ctx context.Context) error {
	return l.execAll(ctx, "drop", DropStatements(l.reg))
}

func (l *SQLiteLoader) execAll(ctx context.Context, op string, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	l.log.Info("schema updated", "op", op, "statements", len(stmts))
	return nil
}

// ImportCSV inserts the rows of one exported file. Empty values become
// NULL; boolean columns are stored as 0 or 1. Each batch commits on its
// own, so a failure leaves earlier batches in place.
func (l *SQLiteLoader) ImportCSV(ctx context.Context, path string) (int64, error) {
	f, err := Resolve(l.reg, path)
	if err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = len(f.Table.Fields)
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%s: empty file", filepath.Base(path))
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
			return 0, &HeaderError{Table: f.Table.Name, Want: f.Table.Columns(), Got: header}
		}
		return 0, err
	}
	if err := checkHeader(f.Table, header); err != nil {
		return 0, err
	}

	var total int64
	for {
		n, err := l.insertBatch(ctx, f.Table, r)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("%s line %d: %w", f.Table.Name, total+2, err)
		}
	}

	l.log.Info("csv imported", "table", f.Table.Name, "file", filepath.Base(path), "rows", total)
	return total, nil
}

// insertBatch inserts up to batchSize rows in one transaction. It returns
// io.EOF once the reader is exhausted.
func (l *SQLiteLoader) insertBatch(ctx context.Context, def schema.TableDef, r *csv.Reader) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL(def))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	args := make([]any, len(def.Fields))
	var n int64
	var readErr error
	for n < int64(l.batchSize) {
		rec, err := r.Read()
		if err != nil {
			readErr = err
			break
		}
		for i, v := range rec {
			args[i] = sqliteValue(def.Fields[i].Type, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, err
		}
		n++
	}
	if readErr != nil && readErr != io.EOF {
		return 0, readErr
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, readErr
}

func sqliteValue(t schema.FieldType, v string) any {
	if v == "" {
		return nil
	}
	if t == schema.FieldBool {
		switch v {
		case "true":
			return 1
		case "false":
			return 0
		}
	}
	return v
}
