package app

import (
	"sync/atomic"

	"gocp/domain/dataset"
	"gocp/internal"
	"gocp/internal/isotonic"
	"gocp/internal/pvalue"

	"gonum.org/v1/gonum/mat"
)

// IntervalRule selects how the inductive regressor picks its threshold from
// the sorted calibration scores.
type IntervalRule string

const (
	// IntervalLowerRank takes the ceil((1-c)(n+1))-th smallest score.
	IntervalLowerRank IntervalRule = "lower_rank"
	// IntervalQuantile takes the ceil(c(n+1))-th smallest score, the
	// split-conformal quantile, or +Inf when that rank exceeds n.
	IntervalQuantile IntervalRule = "quantile"
)

type settings struct {
	engine           *pvalue.Engine
	engineSet        bool
	workers          int
	labelConditional bool
	logger           *internal.Logger
	maxRefits        int64
	grid             isotonic.Config
	intervalRule     IntervalRule
}

// Option configures a conformal predictor. Options a predictor has no use
// for are ignored.
type Option func(*settings)

// WithEngine sets the p-value engine.
func WithEngine(e *pvalue.Engine) Option {
	return func(s *settings) {
		if e != nil {
			s.engine, s.engineSet = e, true
		}
	}
}

// WithWorkers bounds batch parallelism. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithLabelConditional compares each class only against calibration
// examples of that class.
func WithLabelConditional(on bool) Option {
	return func(s *settings) { s.labelConditional = on }
}

// WithLogger sets the logger.
func WithLogger(l *internal.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxConcurrentRefits caps how many transductive refits run at once
// across all callers. Zero leaves refits bounded only by the worker count.
func WithMaxConcurrentRefits(n int64) Option {
	return func(s *settings) { s.maxRefits = n }
}

// WithGridConfig configures the multi-probabilistic calibration grid.
func WithGridConfig(cfg isotonic.Config) Option {
	return func(s *settings) { s.grid = cfg }
}

// WithIntervalRule selects the regression threshold rule.
func WithIntervalRule(rule IntervalRule) Option {
	return func(s *settings) { s.intervalRule = rule }
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:       internal.DefaultLogger,
		grid:         isotonic.DefaultConfig(),
		intervalRule: IntervalLowerRank,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.engine == nil {
		s.engine = pvalue.NewEngine()
	}
	return s
}

// aligner repairs instances whose width differs from the model's, warning
// once per predictor.
type aligner struct {
	component string
	logger    *internal.Logger
	warned    atomic.Bool
}

func newAligner(component string, logger *internal.Logger) *aligner {
	return &aligner{component: component, logger: logger}
}

func (a *aligner) instance(x []float64, width int) []float64 {
	out, changed := dataset.Align(x, width)
	if changed {
		a.warn(len(x), width)
	}
	return out
}

// matrix returns x unchanged when it already has width columns, otherwise a
// truncated or zero-extended copy.
func (a *aligner) matrix(x *mat.Dense, width int) *mat.Dense {
	rows, cols := x.Dims()
	if width < 0 || cols == width {
		return x
	}
	a.warn(cols, width)
	out := mat.NewDense(rows, width, nil)
	n := min(cols, width)
	for i := 0; i < rows; i++ {
		copy(out.RawRowView(i), x.RawRowView(i)[:n])
	}
	return out
}

func (a *aligner) warn(got, want int) {
	if a.warned.CompareAndSwap(false, true) {
		a.logger.Warn("%s: instance has %d attributes but the model was trained on %d; truncating or zero-extending (further mismatches are not logged)",
			a.component, got, want)
	}
}
