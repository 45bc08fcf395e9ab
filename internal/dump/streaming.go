package dump

// streaming.go provides the io.Reader wrappers placed between the
// decompressor and the XML decoder. None of them buffer more than a few
// bytes beyond the caller's slice.
//
//   - sanitizer: replaces invalid UTF-8 and characters XML forbids with '?'
//   - bomSkipper: drops a leading UTF-8 BOM
//   - CountingReader: counts bytes for progress reporting

import (
	"io"
	"sync/atomic"
	"unicode/utf8"
)

// sanitizer rewrites its input in place so that encoding/xml never sees a
// byte sequence it rejects. Invalid sequences become '?', which never
// expands the data.
type sanitizer struct {
	r io.Reader

	// Bytes of an incomplete multi-byte sequence held back from the last read.
	pending []byte
}

func newSanitizer(r io.Reader) *sanitizer {
	return &sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < utf8.UTFMax {
		// Too small to guarantee progress with held-back bytes.
		buf := make([]byte, utf8.UTFMax)
		n, err := s.Read(buf)
		copy(p, buf[:n])
		if n > len(p) {
			s.pending = append(buf[len(p):n:n], s.pending...)
			n = len(p)
		}
		return n, err
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	return s.clean(p[:n], err != nil), err
}

// clean sanitizes data in place and returns the number of bytes to hand out.
// Unless atEOF, an incomplete trailing sequence is kept for the next read.
func (s *sanitizer) clean(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		b := data[read]
		if b < utf8.RuneSelf {
			if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
				b = '?'
			}
			data[write] = b
			write++
			read++
			continue
		}

		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		r, size := utf8.DecodeRune(data[read:])
		if (r == utf8.RuneError && size == 1) || !xmlChar(r) {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// xmlChar reports whether a decoded multi-byte rune is allowed in XML 1.0
// text. Surrogates never decode from valid UTF-8, which leaves the two
// noncharacters at the end of the basic plane.
func xmlChar(r rune) bool {
	return r != 0xFFFE && r != 0xFFFF
}

// bomSkipper drops the UTF-8 byte order mark if the stream starts with one.
type bomSkipper struct {
	r       io.Reader
	checked bool
	buf     []byte
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{r: r}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head := make([]byte, 3)
		n, err := io.ReadFull(b.r, head)
		head = head[:n]
		if n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
			head = head[:0]
		}
		b.buf = head
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if len(b.buf) == 0 && err != nil {
			return 0, io.EOF
		}
	}

	if len(b.buf) > 0 {
		n := copy(p, b.buf)
		b.buf = b.buf[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// CountingReader tracks how many bytes passed through it. Count may be read
// from another goroutine while the stream is being consumed.
type CountingReader struct {
	r     io.Reader
	count atomic.Int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count.Add(int64(n))
	return n, err
}

// Count returns the bytes read so far.
func (c *CountingReader) Count() int64 {
	return c.count.Load()
}

// wrapForDecoder applies the BOM skipper and the sanitizer, in that order.
func wrapForDecoder(r io.Reader) io.Reader {
	return newSanitizer(newBOMSkipper(r))
}
