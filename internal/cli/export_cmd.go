package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dd2db/internal/codec"
	"github.com/JonMunkholm/dd2db/internal/core"
	"github.com/JonMunkholm/dd2db/internal/probe"
	"github.com/JonMunkholm/dd2db/internal/progress"
)

// errNoKinds is returned when no --export flag or configured kind is given.
var errNoKinds = errors.New("no entity kinds selected: use --export artist|label|master|release|all")

func newExportCmd(a *app) *cobra.Command {
	var (
		kinds     []string
		limit     int64
		compress  string
		bz2       bool
		apiCounts bool
		dryRun    bool
		debug     bool
		parallel  int
	)

	cmd := &cobra.Command{
		Use:   "export DATADIR [OUTPUT]",
		Short: "Export Discogs XML dumps to CSV files",
		Long: `Export Discogs XML dumps to CSV files.

DATADIR holds the dump files (discogs_YYYYMMDD_<kind>s.xml[.gz]); the newest
dump of each selected kind is used. CSV files are written to OUTPUT, or to the
configured output directory, one file per table.`,
		Example: `  dd2db discogs export --export release --limit 1000 ./dumps ./csv
  dd2db export --export all --compress zst --parallel 4 ./dumps ./csv`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex := &a.cfg.Export
			ex.DataDir = args[0]
			if len(args) == 2 {
				ex.OutputDir = args[1]
			}

			flags := cmd.Flags()
			if flags.Changed("export") {
				ex.Kinds = kinds
			}
			if flags.Changed("limit") {
				ex.Limit = limit
			}
			if flags.Changed("compress") {
				ex.Compression = compress
			}
			if bz2 {
				ex.Compression = string(codec.Bzip2)
			}
			if flags.Changed("dry-run") {
				ex.DryRun = dryRun
			}
			if flags.Changed("debug") {
				ex.Debug = debug
			}
			if flags.Changed("parallel") {
				ex.Parallel = parallel
			}
			if flags.Changed("apicounts") {
				a.cfg.Probe.Enabled = apiCounts
			}

			if err := a.prepare(cmd); err != nil {
				return err
			}
			return a.runExport(cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&kinds, "export", "e", nil, "Entity kind to export: artist, label, master, release or all (repeatable)")
	cmd.Flags().Int64Var(&limit, "limit", 0, "Export at most this many entities per kind (0 = no limit)")
	cmd.Flags().StringVar(&compress, "compress", "", "Output compression: none, bz2, gz, zst, lz4")
	cmd.Flags().BoolVar(&bz2, "bz2", false, "Compress output with bzip2 (same as --compress bz2)")
	cmd.Flags().BoolVar(&apiCounts, "apicounts", false, "Ask the Discogs API for entity counts to size progress")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the whole pipeline without writing files")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log every exported entity")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "Number of kinds exported at once")

	return cmd
}

func (a *app) runExport(cmd *cobra.Command) error {
	ex := a.cfg.Export

	kinds, err := a.cfg.ExportKinds()
	if err != nil {
		return err
	}
	if len(kinds) == 0 {
		return errNoKinds
	}
	out, err := codec.Parse(ex.Compression)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	counts := probe.DefaultCounts()
	if a.cfg.Probe.Enabled {
		counts, _ = a.probeCounts(ctx)
	}

	display := newDisplay(cmd.ErrOrStderr(), a)

	jobs := make([]core.Options, len(kinds))
	for i, k := range kinds {
		jobs[i] = core.Options{
			Kind:          k,
			DataDir:       ex.DataDir,
			OutputDir:     ex.OutputDir,
			Limit:         ex.Limit,
			Codec:         out,
			DryRun:        ex.DryRun,
			BufferSize:    ex.BufferSize,
			SizeHint:      counts.Hint(k, ex.Limit),
			ProgressEvery: ex.ProgressEvery,
			Progress:      display.Update,
			Debug:         ex.Debug,
			Logger:        a.log,
		}
	}

	results, err := core.ExportAll(ctx, a.reg, jobs, ex.Parallel)
	display.Finish()

	printSummary(cmd.OutOrStdout(), results)
	if err != nil {
		failed := reportFailures(cmd.ErrOrStderr(), results)
		return fmt.Errorf("%d of %d exports failed", failed, len(jobs))
	}
	return nil
}

func (a *app) probeCounts(ctx context.Context) (probe.Counts, bool) {
	client := probe.New(a.cfg.Probe.URL, a.cfg.Probe.Timeout)
	return client.Counts(ctx, a.log)
}

func newDisplay(w io.Writer, a *app) *progress.Display {
	if f, ok := w.(*os.File); ok {
		return progress.New(f, a.log)
	}
	return progress.NewWriter(w, false, 0, a.log)
}

// printSummary writes one line per run.
func printSummary(w io.Writer, results []*core.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Kind.String(),
			string(r.State),
			humanize.Comma(r.Entities),
			humanize.Comma(r.Rows()),
			strconv.Itoa(len(r.Tables)),
			r.Duration.Round(time.Millisecond).String(),
			summaryTarget(r),
		})
	}
	printTable(w, []string{"kind", "state", "entities", "rows", "tables", "duration", "output"}, rows)
}

func summaryTarget(r *core.Result) string {
	switch {
	case r.DryRun:
		return "(dry run)"
	case r.LimitReached:
		return r.OutputDir + " (limit reached)"
	default:
		return r.OutputDir
	}
}

// reportFailures writes the coded message of each failed run and returns
// the number of failures. Errors without a specific message are printed
// as they are.
func reportFailures(w io.Writer, results []*core.Result) int {
	failed := 0
	for _, r := range results {
		switch {
		case r.Err == nil:
		case core.IsUserFacing(r.Err):
			failed++
			fmt.Fprintf(w, "%s: %s\n  %v\n", r.Kind, core.FormatUserError(r.Err), r.Err)
		default:
			failed++
			fmt.Fprintf(w, "%s: %v\n", r.Kind, r.Err)
		}
	}
	return failed
}
