// Package nonconformity implements the scoring functions that measure how
// strange a labelled example looks to a trained predictor.
package nonconformity

import (
	"context"
	"sync/atomic"

	"gocp/domain/core"
	"gocp/internal"
	"gocp/internal/parallel"

	"gonum.org/v1/gonum/mat"
)

// Function names understood by the factories.
const (
	KindClassProbability = "class_probability"
	KindHingeLoss        = "hinge_loss"
	KindSVMDistance      = "svm_distance"
	KindAverage          = "average"
	KindAbsoluteError    = "absolute_error"
	KindSquaredError     = "squared_error"
)

type settings struct {
	workers int
	logger  *internal.Logger
}

// Option configures a nonconformity function.
type Option func(*settings)

// WithWorkers bounds the goroutines used by Scores. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *internal.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func newSettings(opts []Option) settings {
	s := settings{logger: internal.NewNopLogger()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// scoreFunc scores one row. scratch has one slot per class and belongs to the calling worker.
type scoreFunc func(row []float64, label float64, scratch []float64) float64

// scoreRows evaluates score over every row of x on a worker pool, keeping row order.
func scoreRows(ctx context.Context, workers int, x mat.Matrix, y []float64, width int, score scoreFunc) ([]float64, error) {
	rows, cols := x.Dims()
	if rows != len(y) {
		return nil, core.NewDimensionError("targets", rows, len(y))
	}
	out := make([]float64, rows)

	type scratch struct {
		row   []float64
		probs []float64
	}
	err := parallel.ForWithState(ctx, rows, workers,
		func() (*scratch, error) {
			return &scratch{row: make([]float64, cols), probs: make([]float64, width)}, nil
		},
		nil,
		func(_ context.Context, s *scratch, i int) error {
			mat.Row(s.row, i, x)
			out[i] = score(s.row, y[i], s.probs)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// disagreementCounter tallies two-class rows where the model prefers the other label.
type disagreementCounter struct {
	n atomic.Int64
}

func (d *disagreementCounter) observe(probs []float64, idx int) {
	if len(probs) == 2 && probs[idx] < probs[1-idx] {
		d.n.Add(1)
	}
}
