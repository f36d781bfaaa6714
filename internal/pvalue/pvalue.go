// Package pvalue turns a test nonconformity score and a sorted calibration
// array into a conformal p-value.
package pvalue

import (
	"fmt"
	"math"
	"sort"

	"gocp/adapters/rng"
	"gocp/domain/core"
	"gocp/ports"
)

// Engine computes p-values, optionally smoothed. It is safe for concurrent
// use as long as its random source is.
type Engine struct {
	smoothing bool
	source    ports.RandomSource
}

// Option configures an Engine.
type Option func(*Engine)

// WithSmoothing toggles randomised tie-breaking.
func WithSmoothing(on bool) Option {
	return func(e *Engine) { e.smoothing = on }
}

// WithRandomSource injects the source of tie-breaking draws.
func WithRandomSource(src ports.RandomSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.source = src
		}
	}
}

// NewEngine returns a smoothed engine with a clock-seeded source unless
// configured otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{smoothing: true}
	for _, opt := range opts {
		opt(e)
	}
	if e.source == nil {
		e.source = rng.NewTimeSeededSource()
	}
	return e
}

// Smoothing reports whether ties are broken randomly.
func (e *Engine) Smoothing() bool { return e.smoothing }

// PValue returns the p-value of score against the ascending calibration
// scores. An empty calibration array yields 0.
func (e *Engine) PValue(score float64, sorted []float64) float64 {
	if !e.smoothing {
		return Unsmoothed(score, sorted)
	}
	// Float64 draws from [0, 1); flip it so theta lies in (0, 1] and p stays positive.
	return PValueWithTheta(score, sorted, 1-e.source.Float64())
}

// Included reports whether score's label belongs in the prediction set at
// the given significance. Against an empty calibration array the p-value is
// 0, so nothing is included at any positive significance.
func (e *Engine) Included(score float64, sorted []float64, significance float64) bool {
	return e.PValue(score, sorted) >= significance
}

// PValueWithTheta is the smoothed p-value with an explicit tie-breaking draw.
// Scores equal to the test score contribute theta*(ties+1) instead of ties+1.
func PValueWithTheta(score float64, sorted []float64, theta float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	lo, ties := bracket(score, sorted)
	if ties == 0 {
		return float64(n-lo+1) / float64(n+1)
	}
	greater := n - lo - ties
	return (float64(greater) + theta*float64(ties+1)) / float64(n+1)
}

// Unsmoothed counts calibration scores at least as large as score, plus one
// for the test example itself.
func Unsmoothed(score float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	lo, _ := bracket(score, sorted)
	return float64(n-lo+1) / float64(n+1)
}

// bracket returns the first index holding a value >= score and the length of
// the run of values equal to score starting there. NaN scores sort past the
// end so they receive the smallest p-value.
func bracket(score float64, sorted []float64) (lo, ties int) {
	if math.IsNaN(score) {
		return len(sorted), 0
	}
	lo = sort.SearchFloat64s(sorted, score)
	ties = sort.Search(len(sorted)-lo, func(i int) bool { return sorted[lo+i] > score })
	return lo, ties
}

// ValidateSignificance rejects levels outside [0, 1].
func ValidateSignificance(significance float64) error {
	if math.IsNaN(significance) || significance < 0 || significance > 1 {
		return fmt.Errorf("%w: got %v", core.ErrInvalidSignificance, significance)
	}
	return nil
}
