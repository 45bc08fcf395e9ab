package core

// guard.go limits concurrent export runs inside one process.
//
// Two rules apply. A given output table set (output directory plus entity
// kind) is written by at most one run at a time; a second run fails at once
// with ErrOutputBusy. On top of that the total number of runs is bounded by a
// semaphore, and runs that cannot get a slot within maxWait fail with
// ErrTooManyRuns.

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/JonMunkholm/dd2db/internal/dump"
)

// ErrOutputBusy is returned when another run is writing the same tables.
var ErrOutputBusy = errors.New("output busy: another run is writing the same tables")

// ErrTooManyRuns is returned when all run slots stay occupied past the wait
// timeout.
var ErrTooManyRuns = errors.New("too many concurrent export runs")

// DefaultMaxConcurrentRuns bounds parallel runs; there are only four kinds.
const DefaultMaxConcurrentRuns = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// OutputGuard tracks active runs by output key.
type OutputGuard struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active map[string]struct{}
}

// defaultGuard is shared by exporters that are not given one.
var defaultGuard = NewOutputGuard(DefaultMaxConcurrentRuns, DefaultMaxWaitTime)

// NewOutputGuard creates a guard allowing at most maxConcurrent runs.
func NewOutputGuard(maxConcurrent int, maxWait time.Duration) *OutputGuard {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &OutputGuard{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
		active:    make(map[string]struct{}),
	}
}

// GuardKey identifies the table set a run writes.
func GuardKey(outputDir string, kind dump.Kind) string {
	dir := filepath.Clean(outputDir)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir + "#" + kind.String()
}

// Acquire claims key and a run slot. The caller MUST call Release(key)
// when the run ends (use defer).
func (g *OutputGuard) Acquire(ctx context.Context, key string) error {
	g.mu.Lock()
	if _, busy := g.active[key]; busy {
		g.mu.Unlock()
		return ErrOutputBusy
	}
	g.active[key] = struct{}{}
	g.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.semaphore <- struct{}{}:
		return nil

	case <-waitCtx.Done():
		g.forget(key)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}
}

// Release frees key and its slot. Must be called exactly once per
// successful Acquire.
func (g *OutputGuard) Release(key string) {
	g.forget(key)
	<-g.semaphore
}

func (g *OutputGuard) forget(key string) {
	g.mu.Lock()
	delete(g.active, key)
	g.mu.Unlock()
}

// ActiveCount returns the number of runs holding a slot.
func (g *OutputGuard) ActiveCount() int {
	return len(g.semaphore)
}
