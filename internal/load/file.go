// Package load bulk-loads exported CSV files into PostgreSQL or SQLite.
//
// A file is matched to its table by name: <table>.csv, optionally followed
// by a codec suffix (.bz2, .gz, .zst, .lz4). The header line must equal the
// registry columns of the table.
package load

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JonMunkholm/dd2db/internal/codec"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

// ErrNotCSV is returned for file names outside the <table>.csv[.codec]
// convention.
var ErrNotCSV = errors.New("not an exported csv file")

// File is a CSV file resolved to its table.
type File struct {
	Path  string
	Table schema.TableDef
	Codec codec.Codec
}

// Resolve maps path to a registered table and codec.
func Resolve(reg *schema.Registry, path string) (File, error) {
	base := filepath.Base(path)
	table, ext, ok := strings.Cut(base, ".")
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrNotCSV, base)
	}

	var c codec.Codec
	switch {
	case ext == "csv":
		c = codec.None
	case strings.HasPrefix(ext, "csv."):
		var err error
		if c, err = codec.Parse(strings.TrimPrefix(ext, "csv.")); err != nil || c == codec.None {
			return File{}, fmt.Errorf("%w: %s has an unknown suffix", ErrNotCSV, base)
		}
	default:
		return File{}, fmt.Errorf("%w: %s", ErrNotCSV, base)
	}

	def, ok := reg.Table(table)
	if !ok {
		return File{}, fmt.Errorf("%s: unknown table %q", base, table)
	}
	return File{Path: path, Table: def, Codec: c}, nil
}

// Open returns the decompressed content of the file.
func (f File) Open() (io.ReadCloser, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	r, err := f.Codec.NewReader(fh)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("open %s: %w", filepath.Base(f.Path), err)
	}
	return &stackedCloser{Reader: r, closers: []io.Closer{r, fh}}, nil
}

// stackedCloser closes the decompressor before the file.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// HeaderError reports a header line that differs from the registry.
type HeaderError struct {
	Table string
	Want  []string
	Got   []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s: header %v does not match columns %v", e.Table, e.Got, e.Want)
}

// checkHeader compares a header record with the table columns.
func checkHeader(def schema.TableDef, header []string) error {
	want := def.Columns()
	if !slices.Equal(want, header) {
		return &HeaderError{Table: def.Name, Want: want, Got: header}
	}
	return nil
}

// readHeader reads only the first record of the file.
func (f File) readHeader() ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	header, err := csv.NewReader(rc).Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", filepath.Base(f.Path))
	}
	return header, err
}
