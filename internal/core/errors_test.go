package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/schema"
	"github.com/JonMunkholm/dd2db/internal/sink"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClass ErrorClass
		wantCode  string
	}{
		{
			name:      "broken xml",
			err:       &dump.ParseError{Kind: dump.Release, Index: 3, Err: errors.New("unexpected EOF")},
			wantClass: ClassParse,
			wantCode:  "PARSE001",
		},
		{
			name:      "missing id",
			err:       &dump.ParseError{Kind: dump.Artist, Index: 1, Err: fmt.Errorf("<artist> without a positive id: %w", dump.ErrInvalidID)},
			wantClass: ClassParse,
			wantCode:  "PARSE002",
		},
		{
			name:      "parse error whose text only mentions an id",
			err:       &dump.ParseError{Kind: dump.Artist, Index: 1, Err: errors.New("element <note> says invalid id")},
			wantClass: ClassParse,
			wantCode:  "PARSE001",
		},
		{
			name:      "read failure",
			err:       &dump.ReadError{Kind: dump.Label, Err: errors.New("gzip: invalid checksum")},
			wantClass: ClassIO,
			wantCode:  "IO001",
		},
		{
			name:      "no dump",
			err:       fmt.Errorf("%w for masters", dump.ErrNoDump),
			wantClass: ClassIO,
			wantCode:  "IO001",
		},
		{
			name:      "schema mismatch",
			err:       &schema.MismatchError{Table: "artist", Want: 5, Got: 4},
			wantClass: ClassSchema,
			wantCode:  "SCHEMA001",
		},
		{
			name:      "write failure",
			err:       &sink.WriteError{Table: "release", Err: errors.New("no space left on device")},
			wantClass: ClassIO,
			wantCode:  "IO002",
		},
		{
			name:      "busy",
			err:       ErrOutputBusy,
			wantClass: ClassBusy,
			wantCode:  "RUN002",
		},
		{
			name:      "cancelled",
			err:       fmt.Errorf("run: %w", context.Canceled),
			wantClass: ClassCancelled,
			wantCode:  "RUN001",
		},
		{
			name:      "anything else",
			err:       errors.New("boom"),
			wantClass: ClassUnknown,
			wantCode:  "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(dump.Release, 9, tt.err)
			if got.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", got.Class, tt.wantClass)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error does not wrap the cause")
			}
			if again := classify(dump.Release, 1, got); again != got {
				t.Error("classifying an ExportError should return it unchanged")
			}
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"export error by code", classify(dump.Artist, 0, ErrOutputBusy), "RUN002"},
		{"wrapped export error", fmt.Errorf("export: %w", classify(dump.Artist, 0, context.Canceled)), "RUN001"},
		{"duplicate key", errors.New(`ERROR: duplicate key value violates unique constraint "artist_pkey"`), "DB001"},
		{"missing postgres table", errors.New(`ERROR: relation "artist" does not exist`), "DB003"},
		{"missing sqlite table", errors.New("SQL logic error: no such table: artist"), "DB003"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "DB004"},
		{"case insensitive", errors.New("i/o TIMEOUT"), "DB006"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(classify(dump.Release, 0, &sink.WriteError{Table: "release", Err: errors.New("disk full")}))
	want := "An output file could not be written (Code: IO002). Check free disk space and permissions on the output directory"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("unmatched error should not be user facing")
	}
	if !IsUserFacing(classify(dump.Artist, 0, ErrOutputBusy)) {
		t.Error("classified busy error should be user facing")
	}
}

func TestExportError_Message(t *testing.T) {
	err := &ExportError{Code: "SCHEMA001", Kind: dump.Master, Index: 4, Table: "master_video", Err: errors.New("width")}
	want := "export master failed [SCHEMA001] at entity 4 table master_video: width"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
