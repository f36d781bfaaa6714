package app

import (
	"testing"

	"gocp/domain/dataset"
	"gocp/internal"
	"gocp/internal/pvalue"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// constSource always draws the same value, pinning the smoothing theta to 1-v.
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

func unsmoothed() Option {
	return WithEngine(pvalue.NewEngine(pvalue.WithSmoothing(false)))
}

func quiet() Option {
	return WithLogger(internal.NewNopLogger())
}

func observed(level zapcore.Level) (Option, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return WithLogger(internal.NewLoggerFromZap(zap.New(core))), logs
}

func mustRows(t *testing.T, rows [][]float64, y []float64) dataset.DataSet {
	t.Helper()
	ds, err := dataset.FromRows(rows, y)
	require.NoError(t, err)
	return ds
}

// relabel maps class indices onto arbitrary label values.
func relabel(ds dataset.DataSet, values ...float64) dataset.DataSet {
	out := ds.Clone()
	for i, y := range out.Y {
		out.Y[i] = values[int(y)]
	}
	return out
}
