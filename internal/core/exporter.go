package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dd2db/internal/codec"
	"github.com/JonMunkholm/dd2db/internal/decompose"
	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/logging"
	"github.com/JonMunkholm/dd2db/internal/schema"
	"github.com/JonMunkholm/dd2db/internal/sink"
)

// DefaultProgressEvery is the number of entities between progress callbacks.
const DefaultProgressEvery = 10_000

// ErrAlreadyRun is returned by Run on an exporter that has been used.
var ErrAlreadyRun = errors.New("exporter has already run")

// Options configures one export run.
type Options struct {
	Kind dump.Kind

	// InputPath is the dump file. When empty, the newest dump of Kind is
	// located in DataDir.
	InputPath string
	DataDir   string

	OutputDir string
	// Limit stops after this many entities. 0 means no limit.
	Limit      int64
	Codec      codec.Codec
	DryRun     bool
	BufferSize int

	// SizeHint is the expected number of entities, for progress only.
	SizeHint      int64
	ProgressEvery int64
	Progress      ProgressCallback

	// Debug logs every entity at debug level.
	Debug  bool
	Logger *slog.Logger
	Guard  *OutputGuard
}

// Exporter runs a single export of one kind. Create one per run.
type Exporter struct {
	reg  *schema.Registry
	opts Options
	dec  decompose.Decomposer
	log  *slog.Logger

	mu    sync.Mutex
	state State
	runID string
}

// NewExporter validates opts and resolves the decomposer of the kind.
func NewExporter(reg *schema.Registry, opts Options) (*Exporter, error) {
	if reg == nil {
		return nil, errors.New("nil schema registry")
	}
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", dump.ErrUnknownKind, int(opts.Kind))
	}
	if opts.InputPath == "" && opts.DataDir == "" {
		return nil, errors.New("either an input file or a data directory is required")
	}
	if opts.OutputDir == "" && !opts.DryRun {
		return nil, errors.New("output directory is required")
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("negative limit %d", opts.Limit)
	}
	if opts.Codec == "" {
		opts.Codec = codec.None
	}
	if _, err := codec.Parse(string(opts.Codec)); err != nil {
		return nil, err
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Guard == nil {
		opts.Guard = defaultGuard
	}

	dec, err := decompose.New(opts.Kind, reg)
	if err != nil {
		return nil, classify(opts.Kind, 0, err)
	}

	return &Exporter{
		reg:   reg,
		opts:  opts,
		dec:   dec,
		log:   opts.Logger,
		state: StateIdle,
		runID: uuid.NewString(),
	}, nil
}

// RunID returns the id of the run, assigned at construction.
func (e *Exporter) RunID() string { return e.runID }

// State returns the current run state.
func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Exporter) transition(to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == to {
		return nil
	}
	if !CanTransition(e.state, to) {
		return &TransitionError{From: e.state, To: to}
	}
	e.state = to
	return nil
}

// run is the mutable bookkeeping of one Run call.
type run struct {
	start    time.Time
	src      *dump.Source
	reader   *dump.Reader
	out      *sink.Sink
	res      *Result
	rows     int64
	lastSent int64
}

// Run performs the export. A failed run returns its Result (state Aborted)
// together with an *ExportError; no committed file is left behind for the
// failed tables.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	e.mu.Unlock()

	kind := e.opts.Kind
	ctx = logging.WithRun(ctx, e.runID, kind.String())
	log := logging.With(ctx, e.log)

	r := &run{
		start: time.Now(),
		res: &Result{
			RunID:     e.runID,
			Kind:      kind,
			InputPath: e.opts.InputPath,
			OutputDir: e.opts.OutputDir,
			DryRun:    e.opts.DryRun,
		},
	}

	if err := e.prepare(ctx, r); err != nil {
		return e.abort(log, r, 0, err)
	}
	defer r.src.Close()
	if !e.opts.DryRun {
		key := GuardKey(e.opts.OutputDir, kind)
		defer e.opts.Guard.Release(key)
	}

	log.Info("export started",
		"input", r.res.InputPath,
		"codec_in", r.src.Codec,
		"output", e.opts.OutputDir,
		"codec_out", e.opts.Codec,
		"limit", e.opts.Limit,
		"dry_run", e.opts.DryRun,
		"size_hint", e.opts.SizeHint,
		"active_runs", e.opts.Guard.ActiveCount(),
	)

	if err := e.transition(StateReading); err != nil {
		return e.abort(log, r, 0, err)
	}

	for ent, err := range r.reader.All() {
		if err != nil {
			return e.abort(log, r, r.reader.Count()+1, err)
		}
		index := r.reader.Count()
		if err := ctx.Err(); err != nil {
			return e.abort(log, r, index, err)
		}
		if err := e.process(ctx, r, ent); err != nil {
			return e.abort(log, r, index, err)
		}
		if e.opts.Debug {
			log.Debug("entity exported", "index", index, "id", ent.EntityID())
		}
		if index-r.lastSent >= e.opts.ProgressEvery {
			e.notify(r)
		}
	}
	if err := ctx.Err(); err != nil {
		return e.abort(log, r, r.reader.Count(), err)
	}

	if err := r.out.Commit(); err != nil {
		return e.abort(log, r, r.reader.Count(), err)
	}
	if err := e.transition(StateCompleted); err != nil {
		return e.abort(log, r, r.reader.Count(), err)
	}

	e.finish(r)
	e.notify(r)
	log.Info("export completed",
		"entities", r.res.Entities,
		"rows", r.res.Rows(),
		"tables", len(r.res.Tables),
		"limit_reached", r.res.LimitReached,
		"duration", r.res.Duration.Round(time.Millisecond),
	)
	return r.res, nil
}

// prepare resolves the input, claims the output and opens every stage.
func (e *Exporter) prepare(ctx context.Context, r *run) error {
	if r.res.InputPath == "" {
		path, err := dump.Locate(e.opts.DataDir, e.opts.Kind)
		if err != nil {
			return err
		}
		r.res.InputPath = path
	}

	if !e.opts.DryRun {
		if err := e.opts.Guard.Acquire(ctx, GuardKey(e.opts.OutputDir, e.opts.Kind)); err != nil {
			return err
		}
	}
	release := func() {
		if !e.opts.DryRun {
			e.opts.Guard.Release(GuardKey(e.opts.OutputDir, e.opts.Kind))
		}
	}

	src, err := dump.Open(r.res.InputPath)
	if err != nil {
		release()
		return err
	}

	reader, err := dump.NewReader(src, e.opts.Kind, dump.Options{Limit: e.opts.Limit})
	if err != nil {
		src.Close()
		release()
		return err
	}

	out, err := sink.New(e.reg, sink.Options{
		Dir:        e.opts.OutputDir,
		Codec:      e.opts.Codec,
		DryRun:     e.opts.DryRun,
		BufferSize: e.opts.BufferSize,
		Owned:      e.dec.Tables(),
	})
	if err != nil {
		src.Close()
		release()
		return err
	}

	r.src, r.reader, r.out = src, reader, out
	return nil
}

// process decomposes one entity and writes its rows.
func (e *Exporter) process(ctx context.Context, r *run, ent dump.Entity) error {
	if err := e.transition(StateDecomposing); err != nil {
		return err
	}
	res, err := e.dec.Decompose(ent)
	if err != nil {
		return err
	}

	if err := e.transition(StateWriting); err != nil {
		return err
	}
	if err := r.out.Write(res.Table, res.Primary); err != nil {
		return err
	}
	for _, c := range res.Children {
		for _, row := range c.Rows {
			if err := r.out.Write(c.Table, row); err != nil {
				return err
			}
		}
	}
	r.rows += int64(res.RowCount())
	return nil
}

func (e *Exporter) notify(r *run) {
	if e.opts.Progress == nil {
		return
	}
	p := Progress{
		RunID:    e.runID,
		Kind:     e.opts.Kind,
		State:    e.State(),
		Entities: r.reader.Count(),
		Rows:     r.rows,
		Hint:     e.opts.SizeHint,
		Elapsed:  time.Since(r.start),
	}
	if r.src != nil {
		p.BytesRead, p.BytesTotal = r.src.BytesRead(), r.src.Size
	}
	r.lastSent = p.Entities
	e.opts.Progress(p)
}

func (e *Exporter) finish(r *run) {
	r.res.State = e.State()
	r.res.Duration = time.Since(r.start)
	if r.reader != nil {
		r.res.Entities = r.reader.Count()
		r.res.LimitReached = r.reader.LimitReached()
	}
	if r.out != nil {
		r.res.Tables = r.out.Stats()
	}
}

// abort removes partial output and moves the run to Aborted.
func (e *Exporter) abort(log *slog.Logger, r *run, index int64, cause error) (*Result, error) {
	if r.out != nil {
		if err := r.out.Abort(); err != nil {
			log.Warn("removing partial output failed", "error", err)
		}
	}

	e.mu.Lock()
	e.state = StateAborted
	e.mu.Unlock()

	err := classify(e.opts.Kind, index, cause)
	e.finish(r)
	r.res.Err = err

	log.Error("export aborted",
		"code", err.Code,
		"class", err.Class,
		"entity", err.Index,
		"offset", err.Offset,
		"entities", r.res.Entities,
		"error", cause,
	)
	return r.res, err
}
