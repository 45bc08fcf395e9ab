// Package sink writes decomposed rows to one CSV file per table.
//
// Files are created lazily on the first row of a table, start with the
// registry header, and are written under a ".partial" name until Commit
// renames them. Abort removes every partial file. Commit also removes
// files of owned tables that the run did not write, so the directory never
// mixes output of different runs.
package sink

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/dd2db/internal/codec"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

// PartialSuffix marks files of a run that has not been committed.
const PartialSuffix = ".partial"

// DefaultBufferSize is the write buffer in front of each file.
const DefaultBufferSize = 256 * 1024

// ErrClosed is returned by Write after Commit or Abort.
var ErrClosed = errors.New("sink is closed")

// WriteError reports an output failure for one table.
type WriteError struct {
	Table string
	Path  string
	Err   error
}

func (e *WriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("write %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("write %s (%s): %v", e.Table, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Options configures a Sink.
type Options struct {
	Dir        string
	Codec      codec.Codec
	DryRun     bool
	BufferSize int
	// Owned lists the tables whose files belong to this run. Their files
	// in any codec are removed by Commit unless the run wrote them.
	Owned []string
}

// TableStat is the row count of one table, header excluded.
type TableStat struct {
	Table string
	Path  string
	Rows  int64
}

// FileName returns the committed file name of a table for a codec.
func FileName(table string, c codec.Codec) string {
	return table + ".csv" + c.Suffix()
}

// Sink is a per-run set of table writers. It is not safe for concurrent use.
type Sink struct {
	reg   *schema.Registry
	opts  Options
	files map[string]*tableFile
	order []string
	done  bool
}

type tableFile struct {
	table   string
	final   string
	partial string

	file *os.File
	buf  *bufio.Writer
	comp io.WriteCloser
	csv  *csv.Writer
	rows int64
}

// New returns a sink writing into opts.Dir. The directory is created unless
// the sink is a dry run.
func New(reg *schema.Registry, opts Options) (*Sink, error) {
	if reg == nil {
		return nil, errors.New("sink: nil registry")
	}
	if opts.Codec == "" {
		opts.Codec = codec.None
	}
	if _, err := codec.Parse(string(opts.Codec)); err != nil {
		return nil, err
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if !opts.DryRun {
		if opts.Dir == "" {
			return nil, errors.New("sink: output directory is required")
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, &WriteError{Table: "*", Path: opts.Dir, Err: err}
		}
	}
	return &Sink{
		reg:   reg,
		opts:  opts,
		files: make(map[string]*tableFile),
	}, nil
}

// Write appends one row to its table. The row must match the registry width.
func (s *Sink) Write(table string, row []string) error {
	if s.done {
		return ErrClosed
	}
	if err := s.reg.Check(table, row); err != nil {
		return err
	}

	tf, ok := s.files[table]
	if !ok {
		var err error
		if tf, err = s.open(table); err != nil {
			return err
		}
		s.files[table] = tf
		s.order = append(s.order, table)
	}

	if err := tf.csv.Write(row); err != nil {
		return &WriteError{Table: table, Path: tf.partial, Err: err}
	}
	tf.rows++
	return nil
}

func (s *Sink) open(table string) (*tableFile, error) {
	cols, _ := s.reg.Columns(table)
	tf := &tableFile{table: table}

	if s.opts.DryRun {
		tf.csv = csv.NewWriter(io.Discard)
	} else {
		tf.final = filepath.Join(s.opts.Dir, FileName(table, s.opts.Codec))
		tf.partial = tf.final + PartialSuffix

		f, err := os.OpenFile(tf.partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, &WriteError{Table: table, Path: tf.partial, Err: err}
		}
		tf.file = f
		tf.buf = bufio.NewWriterSize(f, s.opts.BufferSize)

		comp, err := s.opts.Codec.NewWriter(tf.buf)
		if err != nil {
			f.Close()
			os.Remove(tf.partial)
			return nil, &WriteError{Table: table, Path: tf.partial, Err: err}
		}
		tf.comp = comp
		tf.csv = csv.NewWriter(comp)
	}

	if err := tf.csv.Write(cols); err != nil {
		tf.close()
		if tf.partial != "" {
			os.Remove(tf.partial)
		}
		return nil, &WriteError{Table: table, Path: tf.partial, Err: err}
	}
	return tf, nil
}

// close flushes every layer and closes the file. The first error wins.
func (tf *tableFile) close() error {
	tf.csv.Flush()
	err := tf.csv.Error()
	if tf.comp != nil {
		if cerr := tf.comp.Close(); err == nil {
			err = cerr
		}
	}
	if tf.buf != nil {
		if ferr := tf.buf.Flush(); err == nil {
			err = ferr
		}
	}
	if tf.file != nil {
		if ferr := tf.file.Close(); err == nil {
			err = ferr
		}
		tf.file = nil
	}
	return err
}

// Stats returns row counts per table in first-seen order.
func (s *Sink) Stats() []TableStat {
	out := make([]TableStat, 0, len(s.order))
	for _, table := range s.order {
		tf := s.files[table]
		out = append(out, TableStat{Table: table, Path: tf.final, Rows: tf.rows})
	}
	return out
}

// Rows returns the row count of one table.
func (s *Sink) Rows(table string) int64 {
	if tf, ok := s.files[table]; ok {
		return tf.rows
	}
	return 0
}

// Commit flushes every table and renames the partial files into place.
// On failure the remaining partial files are removed.
func (s *Sink) Commit() error {
	if s.done {
		return ErrClosed
	}
	s.done = true

	for _, table := range s.order {
		tf := s.files[table]
		if err := tf.close(); err != nil {
			s.cleanup()
			return &WriteError{Table: table, Path: tf.partial, Err: err}
		}
	}
	if s.opts.DryRun {
		return nil
	}
	for _, table := range s.order {
		tf := s.files[table]
		if err := os.Rename(tf.partial, tf.final); err != nil {
			s.cleanup()
			return &WriteError{Table: table, Path: tf.final, Err: err}
		}
		tf.partial = ""
	}
	return s.prune()
}

// prune removes committed files of owned tables left by earlier runs,
// including files of written tables in another codec.
func (s *Sink) prune() error {
	var errs []error
	for _, table := range s.opts.Owned {
		var keep string
		if tf, ok := s.files[table]; ok {
			keep = filepath.Base(tf.final)
		}
		for _, c := range codec.All {
			name := FileName(table, c)
			if name == keep {
				continue
			}
			err := os.Remove(filepath.Join(s.opts.Dir, name))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, &WriteError{Table: table, Path: filepath.Join(s.opts.Dir, name), Err: err})
			}
		}
	}
	return errors.Join(errs...)
}

// Abort closes and removes every file written so far. It is safe to call
// after Commit and more than once.
func (s *Sink) Abort() error {
	if s.done {
		s.cleanup()
		return nil
	}
	s.done = true
	for _, table := range s.order {
		s.files[table].close()
	}
	return s.cleanup()
}

func (s *Sink) cleanup() error {
	var errs []error
	for _, table := range s.order {
		tf := s.files[table]
		if tf.file != nil {
			tf.file.Close()
			tf.file = nil
		}
		if tf.partial == "" {
			continue
		}
		if err := os.Remove(tf.partial); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		tf.partial = ""
	}
	return errors.Join(errs...)
}
