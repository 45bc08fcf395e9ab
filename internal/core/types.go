package core

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/sink"
)

// State is the lifecycle state of an export run.
type State string

const (
	StateIdle        State = "idle"
	StateReading     State = "reading"
	StateDecomposing State = "decomposing"
	StateWriting     State = "writing"
	StateCompleted   State = "completed"
	StateAborted     State = "aborted"
)

// transitions lists the states reachable from each state. Completed and
// Aborted are terminal.
var transitions = map[State][]State{
	StateIdle:        {StateReading, StateAborted},
	StateReading:     {StateDecomposing, StateCompleted, StateAborted},
	StateDecomposing: {StateWriting, StateAborted},
	StateWriting:     {StateDecomposing, StateCompleted, StateAborted},
}

// CanTransition reports whether a run may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError reports an illegal state change. It indicates a bug.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal run transition %s -> %s", e.From, e.To)
}

// Progress represents the current state of an export run.
type Progress struct {
	RunID    string
	Kind     dump.Kind
	State    State
	Entities int64 // entities read so far
	Rows     int64 // rows written so far, all tables
	// Hint is the expected entity count, 0 when unknown. It only feeds
	// Percent.
	Hint int64
	// Source file bytes, used when no hint is available.
	BytesRead  int64
	BytesTotal int64
	Elapsed    time.Duration
}

// Percent returns the progress as a percentage (0-100).
// Uses the entity hint if known, otherwise falls back to source bytes.
func (p Progress) Percent() int {
	var pct int64
	switch {
	case p.Hint > 0:
		pct = p.Entities * 100 / p.Hint
	case p.BytesTotal > 0:
		pct = p.BytesRead * 100 / p.BytesTotal
	}
	return int(min(pct, 100))
}

// ProgressCallback is called periodically during an export run.
type ProgressCallback func(Progress)

// Result contains the outcome of one export run.
type Result struct {
	RunID        string
	Kind         dump.Kind
	State        State
	InputPath    string
	OutputDir    string
	DryRun       bool
	Entities     int64
	LimitReached bool
	// Tables holds per-table row counts in first-seen order.
	Tables   []sink.TableStat
	Duration time.Duration
	Err      error // non-nil when State is StateAborted
}

// Rows returns the number of rows written over all tables.
func (r *Result) Rows() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.Rows
	}
	return n
}

// TableRows returns the row count of one table, 0 when it got no rows.
func (r *Result) TableRows(table string) int64 {
	for _, t := range r.Tables {
		if t.Table == table {
			return t.Rows
		}
	}
	return 0
}
