package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/dd2db/internal/load"
)

type sqliteFlags struct {
	path      string
	create    bool
	batchSize int
	dryRun    bool
}

func newSQLiteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqlite",
		Short: "Load exported CSV files into SQLite",
	}

	cmd.AddCommand(newSQLiteSchemaCmd(a, "init", "Create the tables", (*load.SQLiteLoader).Init,
		func() []string { return load.CreateStatements(a.reg, load.SQLite) }))
	cmd.AddCommand(newSQLiteSchemaCmd(a, "optimize", "Create indexes after loading", (*load.SQLiteLoader).Optimize,
		func() []string { return load.OptimizeStatements(a.reg) }))
	cmd.AddCommand(newSQLiteSchemaCmd(a, "drop", "Drop the tables", (*load.SQLiteLoader).Drop,
		func() []string { return load.DropStatements(a.reg) }))
	cmd.AddCommand(newSQLiteImportCmd(a))
	return cmd
}

func (f *sqliteFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.path, "db", "", "SQLite database file (default discogs.db)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Log the work without opening the database")
}

// withSQLite applies the flags, opens the database and calls fn.
func (a *app) withSQLite(cmd *cobra.Command, f *sqliteFlags, fn func(context.Context, *load.SQLiteLoader) error) error {
	db := &a.cfg.Database
	if cmd.Flags().Changed("db") {
		db.SQLitePath = f.path
	}
	if cmd.Flags().Changed("batch-size") {
		db.BatchSize = f.batchSize
	}
	if err := a.prepare(cmd); err != nil {
		return err
	}

	l, err := load.OpenSQLite(db.SQLitePath, a.reg, db.BatchSize, a.log)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(cmd.Context(), l)
}

func newSQLiteSchemaCmd(a *app, use, short string, op func(*load.SQLiteLoader, context.Context) error,
	generated func() []string) *cobra.Command {
	var f sqliteFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.dryRun {
				if err := a.prepare(cmd); err != nil {
					return err
				}
				for _, stmt := range generated() {
					fmt.Fprintln(cmd.OutOrStdout(), stmt+";")
				}
				return nil
			}
			return a.withSQLite(cmd, &f, func(ctx context.Context, l *load.SQLiteLoader) error {
				return op(l, ctx)
			})
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newSQLiteImportCmd(a *app) *cobra.Command {
	var f sqliteFlags
	cmd := &cobra.Command{
		Use:   "importcsv FILE...",
		Short: "Import exported CSV files",
		Long: `Import exported CSV files with batched inserts.

The table is taken from the file name (<table>.csv[.bz2|.gz|.zst|.lz4]) and
the header line must match its columns. Empty values are stored as NULL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.dryRun {
				return a.dryRunImport(cmd, args)
			}
			return a.withSQLite(cmd, &f, func(ctx context.Context, l *load.SQLiteLoader) error {
				if f.create {
					if err := l.Init(ctx); err != nil {
						return err
					}
				}
				for _, path := range args {
					if _, err := l.ImportCSV(ctx, path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&f.create, "create", false, "Create the tables first")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", load.DefaultBatchSize, "Rows per transaction")
	return cmd
}
