package core

// errors.go maps technical errors to coded messages for the command line.
//
// # Error Codes Reference
//
// Export errors are classified from their type first (see classify); the
// pattern table below covers everything else, mostly database errors raised
// by the loaders.
//
// # Export Errors
//
//	PARSE001 - Malformed dump: the XML is broken or has the wrong document element
//	           Action: Re-download the dump; check that the kind matches the file
//
//	PARSE002 - Missing id: an entity has no usable integer id
//	           Action: Report the entity index and offset from the log
//
//	SCHEMA001 - Schema mismatch: a row does not match its table's column list
//	            Action: This is a bug in the exporter; report it with the table name
//
//	IO001 - Read failure: the dump could not be found, opened or decompressed
//	        Action: Check the data directory and the file's integrity
//
//	IO002 - Write failure: an output file could not be written
//	        Action: Check free disk space and permissions on the output directory
//
//	RUN001 - Cancelled: the run was interrupted
//	         Action: Start the export again
//
//	RUN002 - Output busy: another run is writing the same tables
//	         Action: Wait for the other run or choose another output directory
//
// # Loader Errors
//
//	DB001-DB006 - duplicate keys, missing tables, connection and timeout problems
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the log for the original error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/schema"
	"github.com/JonMunkholm/dd2db/internal/sink"
)

// ErrorClass groups export errors by cause.
type ErrorClass string

const (
	ClassParse     ErrorClass = "parse"
	ClassSchema    ErrorClass = "schema"
	ClassIO        ErrorClass = "io"
	ClassCancelled ErrorClass = "cancelled"
	ClassBusy      ErrorClass = "busy"
	ClassUnknown   ErrorClass = "unknown"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var classMessages = map[string]UserMessage{
	"PARSE001": {
		Message: "The dump is not well-formed",
		Action:  "Re-download the dump and check that the entity kind matches the file",
		Code:    "PARSE001",
	},
	"PARSE002": {
		Message: "An entity has no usable id",
		Action:  "Report the entity index and offset shown in the log",
		Code:    "PARSE002",
	},
	"SCHEMA001": {
		Message: "A row does not match its table's column list",
		Action:  "This is an exporter bug; report it with the table name",
		Code:    "SCHEMA001",
	},
	"IO001": {
		Message: "The dump could not be read",
		Action:  "Check the data directory and the file's integrity",
		Code:    "IO001",
	},
	"IO002": {
		Message: "An output file could not be written",
		Action:  "Check free disk space and permissions on the output directory",
		Code:    "IO002",
	},
	"RUN001": {
		Message: "The export was cancelled",
		Action:  "Start the export again",
		Code:    "RUN001",
	},
	"RUN002": {
		Message: "Another export is writing the same tables",
		Action:  "Wait for it to finish or choose another output directory",
		Code:    "RUN002",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A row with this key already exists",
			Action:  "Truncate the table before importing again",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Import parent tables first or drop the constraint",
			Code:    "DB002",
		},
	},
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "Target table does not exist",
			Action:  "Create the tables first (postgres exec / sqlite importcsv --create)",
			Code:    "DB003",
		},
	},
	{
		pattern: "no such table",
		msg: UserMessage{
			Message: "Target table does not exist",
			Action:  "Create the tables first (postgres exec / sqlite importcsv --create)",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check the database URL and that the server is running",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again or raise the timeout",
			Code:    "DB006",
		},
	},
	{
		pattern: "context canceled",
		msg:     classMessages["RUN001"],
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log for details",
	Code:    "ERR000",
}

// ExportError is the error returned by a failed export run.
type ExportError struct {
	Class  ErrorClass
	Code   string
	Kind   dump.Kind
	Index  int64  // 1-based entity index, 0 when not tied to an entity
	Offset int64  // decompressed byte offset, 0 when unknown
	Table  string // output table, for schema and write errors
	Err    error
}

func (e *ExportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "export %s failed [%s]", e.Kind, e.Code)
	if e.Index > 0 {
		fmt.Fprintf(&b, " at entity %d", e.Index)
	}
	if e.Table != "" {
		fmt.Fprintf(&b, " table %s", e.Table)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ExportError) Unwrap() error { return e.Err }

// classify wraps err into an ExportError. index is the entity being
// processed when the error is not a reader error.
func classify(kind dump.Kind, index int64, err error) *ExportError {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee
	}

	out := &ExportError{Class: ClassUnknown, Code: defaultMessage.Code, Kind: kind, Index: index, Err: err}

	var (
		pe *dump.ParseError
		re *dump.ReadError
		mm *schema.MismatchError
		we *sink.WriteError
	)
	switch {
	case errors.As(err, &pe):
		out.Class, out.Code = ClassParse, "PARSE001"
		out.Index, out.Offset = pe.Index, pe.Offset
		if errors.Is(pe.Err, dump.ErrInvalidID) {
			out.Code = "PARSE002"
		}
	case errors.As(err, &re):
		out.Class, out.Code, out.Offset = ClassIO, "IO001", re.Offset
	case errors.Is(err, dump.ErrNoDump):
		out.Class, out.Code = ClassIO, "IO001"
	case errors.As(err, &mm):
		out.Class, out.Code, out.Table = ClassSchema, "SCHEMA001", mm.Table
	case errors.As(err, &we):
		out.Class, out.Code, out.Table = ClassIO, "IO002", we.Table
	case errors.Is(err, ErrOutputBusy):
		out.Class, out.Code = ClassBusy, "RUN002"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Class, out.Code = ClassCancelled, "RUN001"
	}
	return out
}

// MapError converts an error to a user-friendly message. Export errors map
// by their code; anything else is matched against the pattern table.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ee *ExportError
	if errors.As(err, &ee) {
		if msg, ok := classMessages[ee.Code]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
