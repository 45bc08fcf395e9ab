package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/dd2db/internal/load"
)

// pgFlags are shared by the postgres subcommands.
type pgFlags struct {
	url    string
	sqlDir string
	dryRun bool
}

func (f *pgFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.url, "database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	fs.StringVar(&f.sqlDir, "sql-dir", "", "Directory with CreateTables.sql and friends; generated DDL is used when empty")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Log the work without connecting")
}

func newPostgresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "postgres",
		Aliases: []string{"pg"},
		Short:   "Load exported CSV files into PostgreSQL",
	}

	cmd.AddCommand(newPgSchemaCmd(a, "init", "Create the tables", (*load.PostgresLoader).Init,
		func() []string { return load.CreateStatements(a.reg, load.Postgres) }, []string{load.CreateTablesFile}))
	cmd.AddCommand(newPgSchemaCmd(a, "optimize", "Add keys and indexes after loading", (*load.PostgresLoader).Optimize,
		func() []string { return load.OptimizeStatements(a.reg) }, load.OptimizeFiles))
	cmd.AddCommand(newPgSchemaCmd(a, "drop", "Drop the tables", (*load.PostgresLoader).Drop,
		func() []string { return load.DropStatements(a.reg) }, []string{load.DropTablesFile}))
	cmd.AddCommand(newPgImportCmd(a))
	cmd.AddCommand(newPgExecCmd(a))
	return cmd
}

// withPostgres applies the flags, connects and calls fn.
func (a *app) withPostgres(cmd *cobra.Command, f *pgFlags, fn func(context.Context, *load.PostgresLoader) error) error {
	db := &a.cfg.Database
	if cmd.Flags().Changed("database-url") {
		db.URL = f.url
	}
	if cmd.Flags().Changed("sql-dir") {
		db.SQLDir = f.sqlDir
	}
	if err := a.prepare(cmd); err != nil {
		return err
	}

	ctx := cmd.Context()
	l, err := load.ConnectPostgres(ctx, a.reg, load.PostgresOptions{
		URL:      db.URL,
		MaxConns: db.MaxConns,
		SQLDir:   db.SQLDir,
	}, a.log)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(ctx, l)
}

func newPgSchemaCmd(a *app, use, short string, op func(*load.PostgresLoader, context.Context) error,
	generated func() []string, files []string) *cobra.Command {
	var f pgFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.dryRun {
				if err := a.prepare(cmd); err != nil {
					return err
				}
				a.printSchemaPlan(cmd, &f, generated(), files)
				return nil
			}
			return a.withPostgres(cmd, &f, func(ctx context.Context, l *load.PostgresLoader) error {
				return op(l, ctx)
			})
		},
	}
	f.register(cmd.Flags())
	return cmd
}

// printSchemaPlan writes the statements a schema step would run, or logs
// the SQL files it would execute when a SQL directory is set.
func (a *app) printSchemaPlan(cmd *cobra.Command, f *pgFlags, generated, files []string) {
	if dir := a.sqlDirFlag(cmd, f); dir != "" {
		for _, name := range files {
			a.log.Info("dry run: would execute sql file", "file", filepath.Join(dir, name))
		}
		return
	}
	for _, stmt := range generated {
		fmt.Fprintln(cmd.OutOrStdout(), stmt+";")
	}
}

func (a *app) sqlDirFlag(cmd *cobra.Command, f *pgFlags) string {
	if cmd.Flags().Changed("sql-dir") {
		return f.sqlDir
	}
	return a.cfg.Database.SQLDir
}

func newPgImportCmd(a *app) *cobra.Command {
	var (
		f      pgFlags
		initDB bool
	)
	cmd := &cobra.Command{
		Use:   "importcsv FILE...",
		Short: "Import exported CSV files with COPY",
		Long: `Import exported CSV files with COPY, one transaction per file.

The table is taken from the file name (<table>.csv[.bz2|.gz|.zst|.lz4]) and
the header line must match its columns. With --init-db the tables are
created before the first file and keys and indexes are added after the
last one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.dryRun {
				if !initDB {
					return a.dryRunImport(cmd, args)
				}
				if err := a.prepare(cmd); err != nil {
					return err
				}
				a.printSchemaPlan(cmd, &f, load.CreateStatements(a.reg, load.Postgres), []string{load.CreateTablesFile})
				if err := a.printImportPlan(cmd, args); err != nil {
					return err
				}
				a.printSchemaPlan(cmd, &f, load.OptimizeStatements(a.reg), load.OptimizeFiles)
				return nil
			}
			return a.withPostgres(cmd, &f, func(ctx context.Context, l *load.PostgresLoader) error {
				if initDB {
					if err := l.Init(ctx); err != nil {
						return err
					}
				}
				for _, path := range args {
					if _, err := l.ImportCSV(ctx, path); err != nil {
						return err
					}
				}
				if initDB {
					return l.Optimize(ctx)
				}
				return nil
			})
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&initDB, "init-db", false, "Create the tables first and add keys and indexes afterwards")
	return cmd
}

func newPgExecCmd(a *app) *cobra.Command {
	var f pgFlags
	cmd := &cobra.Command{
		Use:   "exec FILE...",
		Short: "Execute SQL files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.dryRun {
				if err := a.prepare(cmd); err != nil {
					return err
				}
				for _, path := range args {
					a.log.Info("dry run: would execute sql file", "file", path)
				}
				return nil
			}
			return a.withPostgres(cmd, &f, func(ctx context.Context, l *load.PostgresLoader) error {
				return l.ExecFiles(ctx, args...)
			})
		},
	}
	f.register(cmd.Flags())
	return cmd
}

// dryRunImport resolves every file and prints its table without loading.
func (a *app) dryRunImport(cmd *cobra.Command, paths []string) error {
	if err := a.prepare(cmd); err != nil {
		return err
	}
	return a.printImportPlan(cmd, paths)
}

func (a *app) printImportPlan(cmd *cobra.Command, paths []string) error {
	rows := make([][]string, 0, len(paths))
	for _, path := range paths {
		f, err := load.Resolve(a.reg, path)
		if err != nil {
			return err
		}
		rows = append(rows, []string{filepath.Base(path), f.Table.Name, string(f.Codec)})
	}
	printTable(cmd.OutOrStdout(), []string{"file", "table", "codec"}, rows)
	return nil
}
