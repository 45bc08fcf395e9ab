package dump

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/JonMunkholm/dd2db/internal/codec"
)

// ErrNoDump is returned by Locate when a data directory holds no dump for a
// kind.
var ErrNoDump = errors.New("no dump file found")

// Locate finds the dump file of a kind inside dir. Discogs names its files
// discogs_YYYYMMDD_<plural>.xml.gz; a bare <plural>.xml[.*] is accepted too.
// With several candidates the lexically greatest (newest) name wins.
func Locate(dir string, kind Kind) (string, error) {
	var matches []string
	for _, pattern := range []string{
		"*_" + kind.Plural() + ".xml*",
		kind.Plural() + ".xml*",
	} {
		found, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", fmt.Errorf("locate %s dump: %w", kind, err)
		}
		matches = append(matches, found...)
	}

	var files []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w for %s in %s", ErrNoDump, kind.Plural(), dir)
	}

	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files[len(files)-1], nil
}

// Source is an opened dump file with transparent decompression.
type Source struct {
	Path  string
	Size  int64
	Codec codec.Codec

	file    *os.File
	counter *CountingReader
	stream  io.ReadCloser
}

// Open opens a dump file and detects its compression from the first bytes.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat dump: %w", err)
	}

	counter := NewCountingReader(f)
	stream, c, err := codec.AutoReader(counter)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open dump %s: %w", filepath.Base(path), err)
	}

	return &Source{
		Path:    path,
		Size:    info.Size(),
		Codec:   c,
		file:    f,
		counter: counter,
		stream:  stream,
	}, nil
}

// Read implements io.Reader over the decompressed content.
func (s *Source) Read(p []byte) (int, error) {
	return s.stream.Read(p)
}

// BytesRead returns the number of file bytes consumed so far.
func (s *Source) BytesRead() int64 {
	return s.counter.Count()
}

// Close releases the decompressor and the file.
func (s *Source) Close() error {
	err := s.stream.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
