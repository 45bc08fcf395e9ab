package core

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/dd2db/internal/schema"
)

// ExportAll runs one export per job with at most parallel runs at a time.
// Runs are independent: a failing kind does not stop the others. Results
// are returned in job order and are never nil: a job whose exporter could
// not be built gets an aborted Result carrying its own error. The returned
// error joins every failure.
func ExportAll(ctx context.Context, reg *schema.Registry, jobs []Options, parallel int) ([]*Result, error) {
	if parallel <= 0 {
		parallel = len(jobs)
	}

	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(max(parallel, 1))
	for i, job := range jobs {
		g.Go(func() error {
			exp, err := NewExporter(reg, job)
			if err != nil {
				results[i] = rejected(job, err)
				errs[i] = results[i].Err
				return nil
			}
			results[i], errs[i] = exp.Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// rejected is the Result of a job that never started.
func rejected(job Options, err error) *Result {
	return &Result{
		Kind:      job.Kind,
		State:     StateAborted,
		InputPath: job.InputPath,
		OutputDir: job.OutputDir,
		DryRun:    job.DryRun,
		Err:       classify(job.Kind, 0, err),
	}
}
