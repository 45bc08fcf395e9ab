// Package dump reads Discogs XML dumps one entity at a time.
//
// A dump is a single document element (<artists>, <labels>, <masters> or
// <releases>) wrapping a very long list of entity elements. The Reader pulls
// tokens from encoding/xml until it meets the next entity start tag and then
// decodes only that subtree, so memory is bounded by the largest entity, not
// by the document.
package dump

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
)

// ParseError reports a malformed required structure: broken XML, a wrong
// document element, or an entity without a usable id.
type ParseError struct {
	Kind   Kind
	Index  int64 // 1-based index of the entity being read, 0 before the first
	Offset int64 // Byte offset in the decompressed stream
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s dump: entity %d, offset %d, line %d: %v",
		e.Kind.Plural(), e.Index, e.Offset, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadError reports a failure of the underlying stream (disk, decompression).
type ReadError struct {
	Kind   Kind
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s dump at offset %d: %v", e.Kind.Plural(), e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Options tune a Reader.
type Options struct {
	// Limit stops the sequence after this many entities. 0 means no limit.
	Limit int64
}

// Reader yields the entities of one dump in document order. It is not safe
// for concurrent use and cannot be rewound.
type Reader struct {
	kind  Kind
	dec   *xml.Decoder
	limit int64

	count        int64
	rootSeen     bool
	rootClosed   bool
	done         bool
	limitReached bool
}

// NewReader creates a reader for a dump of the given kind. r must already be
// decompressed; use Open for files.
func NewReader(r io.Reader, kind Kind, opts Options) (*Reader, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("negative limit %d", opts.Limit)
	}

	dec := xml.NewDecoder(wrapForDecoder(failureReader{r}))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity

	return &Reader{kind: kind, dec: dec, limit: opts.Limit}, nil
}

// Kind returns the entity kind the reader was created for.
func (r *Reader) Kind() Kind { return r.kind }

// Count returns the number of entities yielded so far.
func (r *Reader) Count() int64 { return r.count }

// LimitReached reports whether the sequence ended because of the limit.
func (r *Reader) LimitReached() bool { return r.limitReached }

// Next returns the next entity, or io.EOF once the document or the limit
// is exhausted. Any other error is a *ParseError or *ReadError and ends
// the sequence.
func (r *Reader) Next() (Entity, error) {
	if r.done {
		return nil, io.EOF
	}
	if r.limit > 0 && r.count >= r.limit {
		r.done = true
		r.limitReached = true
		return nil, io.EOF
	}

	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			r.done = true
			if !r.rootSeen {
				return nil, r.parseErr(fmt.Errorf("no <%s> document element", r.kind.Root()))
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, r.fail(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !r.rootSeen {
				if t.Name.Local != r.kind.Root() {
					return nil, r.fail(fmt.Errorf("expected <%s> document element, found <%s>", r.kind.Root(), t.Name.Local))
				}
				r.rootSeen = true
				continue
			}
			if r.rootClosed {
				return nil, r.fail(fmt.Errorf("unexpected <%s> after </%s>", t.Name.Local, r.kind.Root()))
			}
			if t.Name.Local != r.kind.Element() {
				if err := r.dec.Skip(); err != nil {
					return nil, r.fail(err)
				}
				continue
			}
			return r.decode(t)

		case xml.EndElement:
			r.rootClosed = true
		}
	}
}

func (r *Reader) decode(start xml.StartElement) (Entity, error) {
	ent := r.kind.newEntity()
	if err := r.dec.DecodeElement(ent, &start); err != nil {
		return nil, r.fail(err)
	}
	if ent.EntityID() <= 0 {
		return nil, r.fail(fmt.Errorf("<%s> without a positive id: %w", r.kind.Element(), ErrInvalidID))
	}
	r.count++
	return ent, nil
}

// All returns the remaining entities as a single-use sequence. Iteration
// stops after the first error.
func (r *Reader) All() iter.Seq2[Entity, error] {
	return func(yield func(Entity, error) bool) {
		for {
			ent, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(ent, err) || err != nil {
				return
			}
		}
	}
}

// fail classifies a decoder error and ends the sequence. Errors of the
// source stream are tagged by failureReader; everything else is a problem
// with the document itself.
func (r *Reader) fail(err error) error {
	r.done = true

	var rf readFailure
	if errors.As(err, &rf) {
		return &ReadError{Kind: r.kind, Offset: r.dec.InputOffset(), Err: rf.err}
	}
	return r.parseErr(err)
}

func (r *Reader) parseErr(err error) *ParseError {
	line, _ := r.dec.InputPos()
	return &ParseError{
		Kind:   r.kind,
		Index:  r.count + 1,
		Offset: r.dec.InputOffset(),
		Line:   line,
		Err:    err,
	}
}

// readFailure marks errors coming out of the source stream.
type readFailure struct{ err error }

func (f readFailure) Error() string { return f.err.Error() }
func (f readFailure) Unwrap() error { return f.err }

// failureReader tags non-EOF errors of r so the Reader can tell them from
// decoder errors.
type failureReader struct{ r io.Reader }

func (f failureReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err != nil && err != io.EOF {
		err = readFailure{err}
	}
	return n, err
}
