// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// Map calls fn for every path on at most workers goroutines (NumCPU when
// workers <= 0). Results keep the order of paths. The first failure cancels
// the remaining calls and is returned as a *ProcessingError.
func Map[T any](
	ctx context.Context,
	paths []string,
	workers int,
	fn func(ctx context.Context, path string) (T, error),
	onProgress ProgressFunc,
) ([]T, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]T, len(paths))
	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i, path := range paths {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := fn(ctx, path)
			if err != nil {
				return &ProcessingError{Path: path, Err: err}
			}
			results[i] = result
			if onProgress != nil {
				onProgress()
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
