// Package parallel runs row-indexed work on a bounded pool of goroutines.
// Results are written by index, so output order always matches input order
// whichever worker handled a row.
package parallel

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a requested worker count for n items. Non-positive
// requests mean GOMAXPROCS.
func Workers(requested, n int) int {
	if requested <= 0 {
		requested = runtime.GOMAXPROCS(0)
	}
	if requested > n {
		requested = n
	}
	if requested < 1 {
		requested = 1
	}
	return requested
}

// For calls fn for every index in [0, n). The first error cancels the
// remaining work and is returned.
func For(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	return ForWithState(ctx, n, workers,
		func() (struct{}, error) { return struct{}{}, nil },
		nil,
		func(ctx context.Context, _ struct{}, i int) error { return fn(ctx, i) },
	)
}

// ForWithState is For with per-worker state: acquire runs once per worker
// before its first item and release once after its last. State is never
// shared between workers, which makes it a home for scratch buffers.
func ForWithState[S any](
	ctx context.Context,
	n, workers int,
	acquire func() (S, error),
	release func(S),
	fn func(ctx context.Context, state S, i int) error,
) error {
	if n <= 0 {
		return ctx.Err()
	}
	workers = Workers(workers, n)

	if workers == 1 {
		return runWorker(ctx, n, new(atomic.Int64), acquire, release, fn)
	}

	g, gctx := errgroup.WithContext(ctx)
	next := new(atomic.Int64)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return runWorker(gctx, n, next, acquire, release, fn)
		})
	}
	return g.Wait()
}

func runWorker[S any](
	ctx context.Context,
	n int,
	next *atomic.Int64,
	acquire func() (S, error),
	release func(S),
	fn func(ctx context.Context, state S, i int) error,
) error {
	state, err := acquire()
	if err != nil {
		return err
	}
	if release != nil {
		defer release(state)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		i := int(next.Add(1) - 1)
		if i >= n {
			return nil
		}
		if err := fn(ctx, state, i); err != nil {
			return err
		}
	}
}
