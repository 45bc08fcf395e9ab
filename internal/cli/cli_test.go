package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dd2db/internal/core"
	"github.com/JonMunkholm/dd2db/internal/dump"
)

const artistDump = `<?xml version="1.0" encoding="UTF-8"?>
<artists>
<artist><id>1</id><name>The Persuader</name><urls><url>https://a.example</url></urls></artist>
<artist><id>2</id><name>Mr. James Barth &amp; A.D.</name>
<members><name id="26">Alexi Delano</name><name id="27">Cari Lekebusch</name></members></artist>
<artist><id>3</id><name>Josh Wink</name></artist>
</artists>`

const badLabelDump = `<labels><label><id>x</id><name>Broken</name></label></labels>`

// runCLI executes a fresh root command and captures its output.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	a := &app{}
	t.Cleanup(a.close)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeDump(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dd2db version dev")
}

func TestTables(t *testing.T) {
	out, _, err := runCLI(t, "tables", "--kind", "labels")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "TABLE")
	assert.Contains(t, lines[1], "label")
	assert.Contains(t, lines[1], "id,name,contact_info")
	assert.Contains(t, lines[3], "label_sublabel")
}

func TestTables_UnknownKind(t *testing.T) {
	_, _, err := runCLI(t, "tables", "--kind", "track")
	assert.Error(t, err)
}

func TestExport_WritesCSVAndSummary(t *testing.T) {
	data, out := t.TempDir(), t.TempDir()
	writeDump(t, data, "discogs_20240101_artists.xml", artistDump)

	stdout, _, err := runCLI(t, "discogs", "export", "--export", "artist", "--log-level", "error", data, out)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "artist.csv"))
	assert.FileExists(t, filepath.Join(out, "group_member.csv"))
	assert.Contains(t, stdout, "KIND")
	assert.Contains(t, stdout, "artist")
	assert.Contains(t, stdout, "completed")
}

func TestExport_TopLevelAliasWithCompressionAndLimit(t *testing.T) {
	data, out := t.TempDir(), t.TempDir()
	writeDump(t, data, "artists.xml", artistDump)

	stdout, _, err := runCLI(t, "export", "-e", "artist", "--limit", "1", "--bz2", "--log-level", "error", data, out)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "artist.csv.bz2"))
	assert.NoFileExists(t, filepath.Join(out, "artist.csv"))
	assert.Contains(t, stdout, "limit reached")
}

func TestExport_DryRunWritesNothing(t *testing.T) {
	data := t.TempDir()
	out := filepath.Join(t.TempDir(), "csv")
	writeDump(t, data, "artists.xml", artistDump)

	stdout, _, err := runCLI(t, "export", "--export", "all", "--dry-run", "--log-level", "error", data, out)
	require.Error(t, err, "kinds without a dump fail")
	assert.NoDirExists(t, out)
	assert.Contains(t, stdout, "(dry run)")
}

func TestExport_NoKinds(t *testing.T) {
	t.Setenv("DD2DB_EXPORT", "")
	_, _, err := runCLI(t, "export", t.TempDir())
	assert.ErrorIs(t, err, errNoKinds)
}

func TestExport_InvalidFlag(t *testing.T) {
	_, _, err := runCLI(t, "export", "--export", "artist", "--compress", "rar", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DD2DB_COMPRESSION")
}

func TestExport_FailureIsReportedPerKind(t *testing.T) {
	data, out := t.TempDir(), t.TempDir()
	writeDump(t, data, "artists.xml", artistDump)
	writeDump(t, data, "labels.xml", badLabelDump)

	stdout, stderr, err := runCLI(t, "export", "-e", "artist", "-e", "label", "--parallel", "2", data, out)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 exports failed", err.Error())

	assert.FileExists(t, filepath.Join(out, "artist.csv"))
	assert.NoFileExists(t, filepath.Join(out, "label.csv"))
	assert.Contains(t, stdout, "aborted")
	assert.Contains(t, stderr, "PARSE002")
}

func TestSQLite_ImportExportedFiles(t *testing.T) {
	data, out := t.TempDir(), t.TempDir()
	writeDump(t, data, "artists.xml", artistDump)
	db := filepath.Join(t.TempDir(), "discogs.db")

	_, _, err := runCLI(t, "export", "-e", "artist", "--compress", "gz", "--log-level", "error", data, out)
	require.NoError(t, err)

	_, _, err = runCLI(t, "sqlite", "importcsv", "--create", "--db", db, "--batch-size", "1", "--log-level", "error",
		filepath.Join(out, "artist.csv.gz"), filepath.Join(out, "group_member.csv.gz"))
	require.NoError(t, err)

	_, _, err = runCLI(t, "sqlite", "optimize", "--db", db, "--log-level", "error")
	require.NoError(t, err)
}

func TestSQLite_DryRunPrintsDDL(t *testing.T) {
	out, _, err := runCLI(t, "sqlite", "init", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "artist" ("id" INTEGER`)
}

func TestPostgres_DryRun(t *testing.T) {
	out, _, err := runCLI(t, "postgres", "drop", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, `DROP TABLE IF EXISTS "release_company";`)

	out, _, err = runCLI(t, "postgres", "importcsv", "--dry-run", "/tmp/release_track.csv.zst", "label.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "release_track")
	assert.Contains(t, out, "zst")

	_, _, err = runCLI(t, "postgres", "importcsv", "--dry-run", "tracks.csv")
	assert.Error(t, err)
}

func TestPostgres_ImportInitDBDryRun(t *testing.T) {
	out, _, err := runCLI(t, "postgres", "importcsv", "--init-db", "--dry-run", "artist.csv", "artist_alias.csv.gz")
	require.NoError(t, err)

	create := strings.Index(out, `CREATE TABLE IF NOT EXISTS "artist"`)
	table := strings.Index(out, "artist_alias.csv.gz")
	index := strings.Index(out, `"artist_pkey"`)
	require.NotEqual(t, -1, create, out)
	require.NotEqual(t, -1, table, out)
	require.NotEqual(t, -1, index, out)
	assert.Less(t, create, table, "tables are created before the import")
	assert.Less(t, table, index, "keys are added after the import")
}

func TestPostgres_RequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	_, _, err := runCLI(t, "postgres", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestReportFailures(t *testing.T) {
	results := []*core.Result{
		{Kind: dump.Artist, State: core.StateCompleted},
		{Kind: dump.Label, State: core.StateAborted, Err: &core.ExportError{
			Class: core.ClassParse, Code: "PARSE002", Kind: dump.Label, Index: 1, Err: dump.ErrInvalidID,
		}},
		{Kind: dump.Master, State: core.StateAborted, Err: errors.New("unknown compression \"zip\"")},
	}

	var buf bytes.Buffer
	assert.Equal(t, 2, reportFailures(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "label: "))
	assert.Contains(t, lines[0], "PARSE002")
	assert.Contains(t, lines[1], "invalid id")
	assert.Equal(t, `master: unknown compression "zip"`, lines[2])
	assert.NotContains(t, buf.String(), "artist")
}
