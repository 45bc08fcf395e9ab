// Package codec wraps the compression formats used for dump input and CSV
// output behind one small type.
package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression format.
type Codec string

const (
	None  Codec = "none"
	Bzip2 Codec = "bz2"
	Gzip  Codec = "gz"
	Zstd  Codec = "zst"
	LZ4   Codec = "lz4"
)

// All lists the supported codecs.
var All = []Codec{None, Bzip2, Gzip, Zstd, LZ4}

var magic = []struct {
	codec  Codec
	prefix []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{Bzip2, []byte("BZh")},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{LZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
}

// Parse converts a user supplied name. The empty string means None.
func Parse(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "", "none", "plain":
		return None, nil
	case "bz2", "bzip2":
		return Bzip2, nil
	case "gz", "gzip":
		return Gzip, nil
	case "zst", "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	}
	return None, fmt.Errorf("unknown compression %q (want one of none, bz2, gz, zst, lz4)", name)
}

// Suffix returns the file suffix appended after ".csv", including the dot.
func (c Codec) Suffix() string {
	if c == None || c == "" {
		return ""
	}
	return "." + string(c)
}

// FromName picks the codec from a file name suffix. Names without a known
// compression suffix are plain.
func FromName(name string) Codec {
	lower := strings.ToLower(name)
	for _, c := range All[1:] {
		if strings.HasSuffix(lower, c.Suffix()) {
			return c
		}
	}
	return None
}

// Detect sniffs the codec from the first bytes of a stream.
func Detect(head []byte) Codec {
	for _, m := range magic {
		if bytes.HasPrefix(head, m.prefix) {
			return m.codec
		}
	}
	return None
}

// NewWriter wraps w. Closing the returned writer flushes the codec but does
// not close w.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case None, "":
		return nopWriteCloser{w}, nil
	case Bzip2:
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w)
	case LZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("unsupported codec %q", string(c))
}

// NewReader wraps r with a decompressor. Closing the returned reader
// releases codec state but does not close r.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case None, "":
		return io.NopCloser(r), nil
	case Bzip2:
		return bzip2.NewReader(r, nil)
	case Gzip:
		return gzip.NewReader(r)
	case Zstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, fmt.Errorf("unsupported codec %q", string(c))
}

// AutoReader sniffs the codec of r and returns a decompressing reader.
func AutoReader(r io.Reader) (io.ReadCloser, Codec, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, None, err
	}
	c := Detect(head)
	rc, err := c.NewReader(br)
	if err != nil {
		return nil, c, fmt.Errorf("open %s stream: %w", c, err)
	}
	return rc, c, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
