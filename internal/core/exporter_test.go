package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dd2db/internal/codec"
	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/logging"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

const threeArtists = `<?xml version="1.0" encoding="UTF-8"?>
<artists>
<artist><id>1</id><name>The Persuader</name><profile>Swedish, "deep"
techno</profile><urls><url>https://a.example</url></urls>
<aliases><name id="239">Dick Track</name></aliases></artist>
<artist><id>2</id><name>Mr. James Barth &amp; A.D.</name>
<members><name id="26">Alexi Delano</name><name id="27">Cari Lekebusch</name></members></artist>
<artist><id>3</id><name>Josh Wink</name><namevariations><name>Wink</name></namevariations></artist>
</artists>`

// manyReleases builds a release dump with n entities, each with a couple of
// child rows in several tables.
func manyReleases(n int) string {
	var b strings.Builder
	b.WriteString("<releases>\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<release id="%d" status="Accepted"><title>Release %d, "take %d"</title>`, i, i, i)
		fmt.Fprintf(&b, `<artists><artist><id>%d</id><name>Artist %d</name></artist></artists>`, 1000+i, i)
		b.WriteString(`<genres><genre>Electronic</genre></genres>`)
		if i%3 == 0 {
			b.WriteString(`<tracklist/>`)
		} else {
			b.WriteString(`<tracklist><track><position>A1</position><title>One</title></track>`)
			b.WriteString(`<track><position>A2</position><title>Two</title><sub_tracks><track><position>A2a</position><title>Half</title></track></sub_tracks></track></tracklist>`)
		}
		fmt.Fprintf(&b, `<master_id is_main_release="%t">%d</master_id>`, i%2 == 0, 50+i)
		b.WriteString("</release>\n")
	}
	b.WriteString("</releases>\n")
	return b.String()
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := codec.FromName(path).NewReader(f)
	require.NoError(t, err)
	defer r.Close()

	records, err := csv.NewReader(r).ReadAll()
	require.NoError(t, err)
	return records
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func runExport(t *testing.T, opts Options) (*Result, error) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Guard == nil {
		opts.Guard = NewOutputGuard(4, time.Second)
	}
	exp, err := NewExporter(schema.Default(), opts)
	require.NoError(t, err)
	return exp.Run(context.Background())
}

func TestExport_ArtistsInDocumentOrder(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "artists.xml", threeArtists)
	out := t.TempDir()

	res, err := runExport(t, Options{Kind: dump.Artist, InputPath: in, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.False(t, res.LimitReached)
	assert.EqualValues(t, 3, res.Entities)

	records := readCSVFile(t, filepath.Join(out, "artist.csv"))
	cols, _ := schema.Default().Columns(schema.TableArtist)
	require.Len(t, records, 4)
	assert.Equal(t, cols, records[0])
	assert.Equal(t, []string{"1", "2", "3"}, []string{records[1][0], records[2][0], records[3][0]})
	assert.Equal(t, "Swedish, \"deep\"\ntechno", records[1][3])

	members := readCSVFile(t, filepath.Join(out, "group_member.csv"))
	assert.Equal(t, [][]string{
		{"group_artist_id", "member_artist_id", "member_name"},
		{"2", "26", "Alexi Delano"},
		{"2", "27", "Cari Lekebusch"},
	}, members)

	for _, name := range dirNames(t, out) {
		assert.NotContains(t, name, ".partial")
	}
}

func TestExport_LimitWithCompression(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "artists.xml", threeArtists)
	out := t.TempDir()

	res, err := runExport(t, Options{Kind: dump.Artist, InputPath: in, OutputDir: out, Limit: 2, Codec: codec.Bzip2})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.True(t, res.LimitReached)
	assert.EqualValues(t, 2, res.Entities)

	assert.NoFileExists(t, filepath.Join(out, "artist.csv"))
	records := readCSVFile(t, filepath.Join(out, "artist.csv.bz2"))
	require.Len(t, records, 3)
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "2", records[2][0])
	assert.EqualValues(t, 2, res.TableRows(schema.TableArtist))
}

func TestExport_RerunReplacesWholeOutputSet(t *testing.T) {
	data, out := t.TempDir(), t.TempDir()

	first := writeFixture(t, data, "first.xml",
		`<artists><artist><id>1</id><name>A</name><aliases><name id="9">B</name></aliases></artist></artists>`)
	_, err := runExport(t, Options{Kind: dump.Artist, InputPath: first, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, []string{"artist.csv", "artist_alias.csv"}, dirNames(t, out))

	second := writeFixture(t, data, "second.xml", `<artists><artist><id>50</id><name>C</name></artist></artists>`)
	_, err = runExport(t, Options{Kind: dump.Artist, InputPath: second, OutputDir: out, Codec: codec.Gzip})
	require.NoError(t, err)

	assert.Equal(t, []string{"artist.csv.gz"}, dirNames(t, out))
	records := readCSVFile(t, filepath.Join(out, "artist.csv.gz"))
	require.Len(t, records, 2)
	assert.Equal(t, "50", records[1][0])
}

func TestExport_EmptyTracklist(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "releases.xml",
		`<releases><release id="7"><title>Silence</title><tracklist/></release></releases>`)
	out := t.TempDir()

	res, err := runExport(t, Options{Kind: dump.Release, InputPath: in, OutputDir: out})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TableRows(schema.TableRelease))
	assert.EqualValues(t, 0, res.TableRows(schema.TableReleaseTrack))
	assert.NoFileExists(t, filepath.Join(out, "release_track.csv"))
}

func TestExport_MalformedReleaseAborts(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "releases.xml",
		`<releases><release id="1"><title>ok</title><genres><genre>Rock</genre></genres></release>`+
			`<release id="2"><title>broken</title></releases>`)
	out := t.TempDir()

	exp, err := NewExporter(schema.Default(), Options{
		Kind: dump.Release, InputPath: in, OutputDir: out,
		Logger: logging.Discard(), Guard: NewOutputGuard(1, time.Second),
	})
	require.NoError(t, err)

	res, err := exp.Run(context.Background())
	var ee *ExportError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Equal(t, ClassParse, ee.Class)
	assert.Equal(t, "PARSE001", ee.Code)
	assert.EqualValues(t, 2, ee.Index)

	var pe *dump.ParseError
	assert.True(t, errors.As(err, &pe))

	assert.Equal(t, StateAborted, exp.State())
	assert.Equal(t, StateAborted, res.State)
	assert.Empty(t, dirNames(t, out), "aborted run must not leave files")

	_, err = exp.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestExport_DryRunParity(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "releases.xml", manyReleases(100))

	dryOut := filepath.Join(t.TempDir(), "dry")
	dry, err := runExport(t, Options{Kind: dump.Release, InputPath: in, OutputDir: dryOut, DryRun: true, Codec: codec.Gzip})
	require.NoError(t, err)

	realOut := t.TempDir()
	real, err := runExport(t, Options{Kind: dump.Release, InputPath: in, OutputDir: realOut, Codec: codec.Gzip})
	require.NoError(t, err)

	assert.EqualValues(t, 100, dry.Entities)
	assert.Equal(t, real.Entities, dry.Entities)
	require.Equal(t, len(real.Tables), len(dry.Tables))
	for i := range real.Tables {
		assert.Equal(t, real.Tables[i].Table, dry.Tables[i].Table)
		assert.Equal(t, real.Tables[i].Rows, dry.Tables[i].Rows, real.Tables[i].Table)
	}
	assert.Empty(t, dirNames(t, dryOut))
	assert.NotEmpty(t, dirNames(t, realOut))
}

func TestExport_Deterministic(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "releases.xml", manyReleases(25))
	a, b := t.TempDir(), t.TempDir()

	_, err := runExport(t, Options{Kind: dump.Release, InputPath: in, OutputDir: a})
	require.NoError(t, err)
	_, err = runExport(t, Options{Kind: dump.Release, InputPath: in, OutputDir: b})
	require.NoError(t, err)

	names := dirNames(t, a)
	require.Equal(t, names, dirNames(t, b))
	for _, name := range names {
		x, err := os.ReadFile(filepath.Join(a, name))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b, name))
		require.NoError(t, err)
		assert.Equal(t, x, y, name)
	}
}

func TestExport_ReferentialCompleteness(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "releases.xml", manyReleases(30))
	out := t.TempDir()

	res, err := runExport(t, Options{Kind: dump.Release, InputPath: in, OutputDir: out})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, row := range readCSVFile(t, filepath.Join(out, "release.csv"))[1:] {
		ids[row[0]] = true
	}
	require.Len(t, ids, 30)

	reg := schema.Default()
	for _, stat := range res.Tables {
		records := readCSVFile(t, stat.Path)
		cols, _ := reg.Columns(stat.Table)
		assert.Equal(t, cols, records[0], "header of %s", stat.Table)
		assert.EqualValues(t, stat.Rows, len(records)-1, stat.Table)
		if stat.Table == schema.TableRelease {
			continue
		}
		for _, row := range records[1:] {
			assert.True(t, ids[row[0]], "%s row references unknown release %s", stat.Table, row[0])
		}
	}

	// Every third release has an empty tracklist; the rest have three tracks.
	assert.EqualValues(t, 20*3, res.TableRows(schema.TableReleaseTrack))
}

func TestExport_LocatesDumpInDataDir(t *testing.T) {
	data := t.TempDir()
	writeFixture(t, data, "discogs_20240101_artists.xml", threeArtists)

	res, err := runExport(t, Options{Kind: dump.Artist, DataDir: data, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(data, "discogs_20240101_artists.xml"), res.InputPath)

	_, err = runExport(t, Options{Kind: dump.Label, DataDir: data, DryRun: true})
	var ee *ExportError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "IO001", ee.Code)
	assert.ErrorIs(t, err, dump.ErrNoDump)
}

func TestExport_ProgressCallback(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "releases.xml", manyReleases(100))

	var mu sync.Mutex
	var got []Progress
	_, err := runExport(t, Options{
		Kind: dump.Release, InputPath: in, DryRun: true,
		SizeHint: 200, ProgressEvery: 10,
		Progress: func(p Progress) {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(got), 10)
	assert.EqualValues(t, 10, got[0].Entities)
	last := got[len(got)-1]
	assert.EqualValues(t, 100, last.Entities)
	assert.Equal(t, StateCompleted, last.State)
	assert.Equal(t, 50, last.Percent())
	assert.Equal(t, last.BytesTotal, last.BytesRead)
}

func TestExport_Cancelled(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "artists.xml", threeArtists)
	out := t.TempDir()

	exp, err := NewExporter(schema.Default(), Options{
		Kind: dump.Artist, InputPath: in, OutputDir: out,
		Logger: logging.Discard(), Guard: NewOutputGuard(1, time.Second),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.Run(ctx)

	var ee *ExportError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Equal(t, "RUN001", ee.Code)
	assert.Equal(t, StateAborted, exp.State())
	assert.Empty(t, dirNames(t, out))
}

func TestExport_OutputBusy(t *testing.T) {
	in := writeFixture(t, t.TempDir(), "artists.xml", threeArtists)
	out := t.TempDir()
	guard := NewOutputGuard(4, time.Second)

	key := GuardKey(out, dump.Artist)
	require.NoError(t, guard.Acquire(context.Background(), key))
	defer guard.Release(key)

	_, err := runExport(t, Options{Kind: dump.Artist, InputPath: in, OutputDir: out, Guard: guard})
	assert.ErrorIs(t, err, ErrOutputBusy)
	assert.Equal(t, "RUN002", MapError(err).Code)

	// A different kind into the same directory is a different table set.
	_, err = runExport(t, Options{Kind: dump.Label, InputPath: in, OutputDir: out, Guard: guard})
	var ee *ExportError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ClassParse, ee.Class, "labels parser should reject an artists document")
}

func TestNewExporter_Validation(t *testing.T) {
	reg := schema.Default()
	tests := []struct {
		name string
		opts Options
	}{
		{"unknown kind", Options{Kind: 0, InputPath: "x", OutputDir: "y"}},
		{"no input", Options{Kind: dump.Artist, OutputDir: "y"}},
		{"no output", Options{Kind: dump.Artist, InputPath: "x"}},
		{"negative limit", Options{Kind: dump.Artist, InputPath: "x", OutputDir: "y", Limit: -1}},
		{"bad codec", Options{Kind: dump.Artist, InputPath: "x", OutputDir: "y", Codec: "rar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExporter(reg, tt.opts)
			assert.Error(t, err)
		})
	}

	exp, err := NewExporter(reg, Options{Kind: dump.Artist, InputPath: "x", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, exp.State())
	assert.Len(t, exp.RunID(), 36)
}

func TestExportAll_IndependentRuns(t *testing.T) {
	data := t.TempDir()
	writeFixture(t, data, "artists.xml", threeArtists)
	writeFixture(t, data, "releases.xml", manyReleases(10))
	writeFixture(t, data, "labels.xml", `<labels><label><name>no id</name></label></labels>`)
	out := t.TempDir()
	guard := NewOutputGuard(4, time.Second)

	var jobs []Options
	for _, k := range []dump.Kind{dump.Artist, dump.Label, dump.Release} {
		jobs = append(jobs, Options{Kind: k, DataDir: data, OutputDir: out, Guard: guard, Logger: logging.Discard()})
	}
	results, err := ExportAll(context.Background(), schema.Default(), jobs, 2)
	require.Error(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, StateCompleted, results[0].State)
	assert.Equal(t, StateAborted, results[1].State)
	assert.Equal(t, StateCompleted, results[2].State)
	assert.Equal(t, "PARSE002", MapError(err).Code)

	assert.FileExists(t, filepath.Join(out, "artist.csv"))
	assert.FileExists(t, filepath.Join(out, "release.csv"))
	assert.NoFileExists(t, filepath.Join(out, "label.csv"))
	assert.Equal(t, 0, guard.ActiveCount())
}

func TestExportAll_RejectedJobsKeepTheirOwnError(t *testing.T) {
	data := t.TempDir()
	writeFixture(t, data, "artists.xml", threeArtists)
	out := t.TempDir()

	jobs := []Options{
		{Kind: dump.Label, DataDir: data, OutputDir: out, Codec: "zip", Logger: logging.Discard()},
		{Kind: dump.Artist, DataDir: data, OutputDir: out, Logger: logging.Discard()},
		{Kind: dump.Master, DataDir: data, OutputDir: out, Limit: -1, Logger: logging.Discard()},
	}
	results, err := ExportAll(context.Background(), schema.Default(), jobs, 1)
	require.Error(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		require.NotNil(t, r)
	}
	assert.Equal(t, dump.Label, results[0].Kind)
	assert.Equal(t, StateAborted, results[0].State)
	assert.Contains(t, results[0].Err.Error(), "zip")
	assert.NotContains(t, results[0].Err.Error(), "negative limit")

	assert.Equal(t, StateCompleted, results[1].State)
	assert.NoError(t, results[1].Err)

	assert.Equal(t, dump.Master, results[2].Kind)
	assert.Equal(t, StateAborted, results[2].State)
	assert.Contains(t, results[2].Err.Error(), "negative limit")
	assert.NotContains(t, results[2].Err.Error(), "zip")

	var ee *ExportError
	require.ErrorAs(t, results[2].Err, &ee)
	assert.Equal(t, dump.Master, ee.Kind)
	assert.Equal(t, out, results[2].OutputDir)
}
