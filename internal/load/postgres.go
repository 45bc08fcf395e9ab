package load

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/dd2db/internal/schema"
)

// SQL files run by the PostgreSQL commands when an SQL directory is given.
const (
	CreateTablesFile    = "CreateTables.sql"
	CreatePrimaryKeys   = "CreatePrimaryKeys.sql"
	CreateFKConstraints = "CreateFKConstraints.sql"
	CreateIndexesFile   = "CreateIndexes.sql"
	DropTablesFile      = "DropTables.sql"
)

// OptimizeFiles are run in order by Optimize.
var OptimizeFiles = []string{CreatePrimaryKeys, CreateFKConstraints, CreateIndexesFile}

// PostgresOptions configures a PostgreSQL loader.
type PostgresOptions struct {
	URL      string
	MaxConns int
	SQLDir   string // Optional DDL directory; generated DDL is used when empty
}

// PostgresLoader creates Discogs tables and bulk loads CSV files with COPY.
type PostgresLoader struct {
	pool   *pgxpool.Pool
	reg    *schema.Registry
	sqlDir string
	log    *slog.Logger
}

// ConnectPostgres opens a connection pool and verifies it with a ping.
func ConnectPostgres(ctx context.Context, reg *schema.Registry, opts PostgresOptions, log *slog.Logger) (*PostgresLoader, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("database url is required (DATABASE_URL)")
	}

	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	return &PostgresLoader{pool: pool, reg: reg, sqlDir: opts.SQLDir, log: log}, nil
}

// Close releases the pool.
func (l *PostgresLoader) Close() {
	l.pool.Close()
}

// Init creates the tables.
func (l *PostgresLoader) Init(ctx context.Context) error {
	if l.sqlDir != "" {
		return l.ExecFiles(ctx, CreateTablesFile)
	}
	return l.execAll(ctx, "init", CreateStatements(l.reg, Postgres))
}

// Optimize adds keys and indexes after loading.
func (l *PostgresLoader) Optimize(ctx context.Context) error {
	if l.sqlDir != "" {
		return l.ExecFiles(ctx, OptimizeFiles...)
	}
	return l.execAll(ctx, "optimize", OptimizeStatements(l.reg))
}

// Drop removes the tables.
func (l *PostgresLoader) Drop(ctx context.Context) error {
	if l.sqlDir != "" {
		return l.ExecFiles(ctx, DropTablesFile)
	}
	return l.execAll(ctx, "drop", DropStatements(l.reg))
}

// ExecFiles runs SQL files from the SQL directory in order. A file may
// hold several statements.
func (l *PostgresLoader) ExecFiles(ctx context.Context, names ...string) error {
	for _, name := range names {
		path := name
		if l.sqlDir != "" && !filepath.IsAbs(name) {
			path = filepath.Join(l.sqlDir, name)
		}
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read sql file: %w", err)
		}
		if err := l.execScript(ctx, string(sql)); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		l.log.Info("sql file executed", "file", filepath.Base(path))
	}
	return nil
}

// execScript runs a multi-statement script over the simple protocol.
func (l *PostgresLoader) execScript(ctx context.Context, sql string) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Conn().PgConn().Exec(ctx, sql).ReadAll()
	return err
}

func (l *PostgresLoader) execAll(ctx context.Context, op string, stmts []string) error {
	if err := l.execScript(ctx, strings.Join(stmts, ";\n")); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	l.log.Info("schema updated", "op", op, "statements", len(stmts))
	return nil
}

// ImportCSV loads one exported file with COPY inside a transaction. The
// header is checked against the registry first.
func (l *PostgresLoader) ImportCSV(ctx context.Context, path string) (int64, error) {
	f, err := Resolve(l.reg, path)
	if err != nil {
		return 0, err
	}
	header, err := f.readHeader()
	if err != nil {
		return 0, err
	}
	if err := checkHeader(f.Table, header); err != nil {
		return 0, err
	}

	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Conn().PgConn().CopyFrom(ctx, rc, copySQL(f.Table))
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", f.Table.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	l.log.Info("csv imported", "table", f.Table.Name, "file", filepath.Base(path), "rows", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// CreateStatements returns CREATE TABLE statements for every table.
func CreateStatements(reg *schema.Registry, d Dialect) []string {
	var stmts []string
	for _, def := range reg.Tables() {
		stmts = append(stmts, CreateTableSQL(def, d))
	}
	return stmts
}

// DropStatements returns DROP TABLE statements, children before primaries.
func DropStatements(reg *schema.Registry) []string {
	tables := reg.Tables()
	stmts := make([]string, 0, len(tables))
	for i := len(tables) - 1; i >= 0; i-- {
		stmts = append(stmts, DropTableSQL(tables[i]))
	}
	return stmts
}

// OptimizeStatements returns the index statements for every table.
func OptimizeStatements(reg *schema.Registry) []string {
	var stmts []string
	for _, def := range reg.Tables() {
		stmts = append(stmts, OptimizeSQL(def)...)
	}
	return stmts
}
