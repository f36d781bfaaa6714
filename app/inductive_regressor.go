package app

import (
	"context"
	"fmt"
	"math"

	"gocp/domain/conformal"
	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/internal/calibration"
	"gocp/internal/errors"
	"gocp/internal/parallel"
	"gocp/internal/pvalue"
	"gocp/ports"

	"gonum.org/v1/gonum/mat"
)

// rankSlack absorbs floating-point error in (1-c)(n+1) so that exact
// products such as 0.2*6 do not round up to the next rank.
const rankSlack = 1e-12

// InductiveRegressor turns a regressor's point predictions into symmetric
// intervals whose half-width is read from sorted calibration residuals.
type InductiveRegressor struct {
	id         core.ModelID
	nc         ports.RegressionNonconformityFunction
	settings   settings
	align      *aligner
	store      *calibration.Store
	attributes int
}

// NewInductiveRegressor creates an unfitted regressor.
func NewInductiveRegressor(nc ports.RegressionNonconformityFunction, opts ...Option) (*InductiveRegressor, error) {
	if nc == nil {
		return nil, errors.InvalidInput("nonconformity function is required")
	}
	s := newSettings(opts)
	switch s.intervalRule {
	case IntervalLowerRank, IntervalQuantile:
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown interval rule %q", s.intervalRule))
	}
	s.logger = s.logger.Named("icr")
	return &InductiveRegressor{
		id:         core.NewModelID(),
		nc:         nc,
		settings:   s,
		align:      newAligner("inductive regressor", s.logger),
		attributes: -1,
	}, nil
}

// Fit trains the regressor on train and calibrates on cal.
func (r *InductiveRegressor) Fit(ctx context.Context, train, cal dataset.DataSet) error {
	if err := train.Validate(); err != nil {
		return errors.Wrap(err, "invalid training set")
	}
	if train.IsEmpty() {
		return errors.DataMismatch("cannot fit on an empty training set", core.ErrEmptyTrainingSet)
	}
	if err := r.nc.Fit(train.X, train.Y); err != nil {
		return errors.Wrapf(err, "fit %s nonconformity function", r.nc.Kind())
	}
	r.attributes = train.Columns()
	return r.Calibrate(ctx, cal)
}

// Calibrate stores the sorted residual scores of cal.
func (r *InductiveRegressor) Calibrate(ctx context.Context, cal dataset.DataSet) error {
	if !r.nc.IsTrained() {
		return errors.NotTrained(r.nc.Kind() + " nonconformity function")
	}
	if err := cal.Validate(); err != nil {
		return errors.Wrap(err, "invalid calibration set")
	}
	if cal.IsEmpty() {
		return errors.DataMismatch("cannot calibrate on an empty calibration set", core.ErrEmptyCalibration)
	}
	if r.attributes < 0 {
		r.attributes = r.nc.AttributeCount()
	}
	scores, err := r.nc.Scores(ctx, r.align.matrix(cal.X, r.attributes), cal.Y)
	if err != nil {
		return errors.Wrap(err, "score calibration set")
	}
	store, err := calibration.NewStore(scores, nil, 0, false)
	if err != nil {
		return errors.Wrap(err, "build calibration store")
	}
	r.store = store
	if summary, err := store.Summary(); err == nil {
		r.settings.logger.Info("calibrated %s on %d residuals (median %.4f, p90 %.4f, max %.4f)",
			r.nc.Kind(), summary.Count, summary.Median, summary.P90, summary.Max)
	}
	return nil
}

// Threshold returns the nonconformity threshold used at the given
// confidence level, before it is mapped back to target units.
func (r *InductiveRegressor) Threshold(confidence float64) (float64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if math.IsNaN(confidence) || confidence <= 0 || confidence >= 1 {
		return 0, errors.Wrap(fmt.Errorf("%w: got %v", core.ErrInvalidConfidence, confidence), "interval threshold")
	}
	sorted := r.store.Global()
	n := len(sorted)

	switch r.settings.intervalRule {
	case IntervalQuantile:
		k := int(math.Ceil(confidence*float64(n+1) - rankSlack))
		if k > n {
			return math.Inf(1), nil
		}
		return sorted[max(k, 1)-1], nil
	default:
		k := int(math.Ceil((1-confidence)*float64(n+1) - rankSlack))
		k = min(max(k, 1), n)
		return sorted[k-1], nil
	}
}

// PredictInterval returns the interval for instance at the given confidence.
func (r *InductiveRegressor) PredictInterval(ctx context.Context, instance []float64, confidence float64) (conformal.Interval, error) {
	threshold, err := r.Threshold(confidence)
	if err != nil {
		return conformal.Interval{}, err
	}
	if err := ctx.Err(); err != nil {
		return conformal.Interval{}, err
	}
	x := r.align.instance(instance, r.attributes)
	return conformal.NewInterval(r.nc.Predict(x), r.nc.Epsilon(threshold)), nil
}

// PredictIntervals returns one interval per row of x, in row order. The
// threshold is computed once for the whole batch.
func (r *InductiveRegressor) PredictIntervals(ctx context.Context, x mat.Matrix, confidence float64) ([]conformal.Interval, error) {
	threshold, err := r.Threshold(confidence)
	if err != nil {
		return nil, err
	}
	epsilon := r.nc.Epsilon(threshold)
	rows, cols := x.Dims()
	out := make([]conformal.Interval, rows)
	err = parallel.ForWithState(ctx, rows, r.settings.workers,
		func() ([]float64, error) { return make([]float64, cols), nil },
		nil,
		func(_ context.Context, row []float64, i int) error {
			mat.Row(row, i, x)
			out[i] = conformal.NewInterval(r.nc.Predict(r.align.instance(row, r.attributes)), epsilon)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PValue returns the p-value of target y for instance.
func (r *InductiveRegressor) PValue(ctx context.Context, instance []float64, y float64) (float64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	score := r.nc.Score(r.align.instance(instance, r.attributes), y)
	return r.settings.engine.PValue(score, r.store.Global()), nil
}

func (r *InductiveRegressor) ready() error {
	if r.store == nil {
		return errors.NotTrained("inductive regressor")
	}
	return nil
}

func (r *InductiveRegressor) ID() core.ModelID { return r.id }

func (r *InductiveRegressor) AttributeCount() int { return r.attributes }

func (r *InductiveRegressor) IsTrained() bool { return r.store != nil }

func (r *InductiveRegressor) IntervalRule() IntervalRule { return r.settings.intervalRule }

// Calibration returns the residual store, or nil before calibration.
func (r *InductiveRegressor) Calibration() *calibration.Store { return r.store }

// InductiveRegressorState is the serialisable part of a calibrated regressor.
type InductiveRegressorState struct {
	ID            core.ModelID `json:"id"`
	Nonconformity string       `json:"nonconformity"`
	Attributes    int          `json:"attributes"`
	Smoothing     bool         `json:"smoothing"`
	IntervalRule  IntervalRule `json:"interval_rule"`
	Calibration   []float64    `json:"calibration"`
}

// State captures the calibrated regressor.
func (r *InductiveRegressor) State() (InductiveRegressorState, error) {
	if err := r.ready(); err != nil {
		return InductiveRegressorState{}, err
	}
	return InductiveRegressorState{
		ID:            r.id,
		Nonconformity: r.nc.Kind(),
		Attributes:    r.attributes,
		Smoothing:     r.settings.engine.Smoothing(),
		IntervalRule:  r.settings.intervalRule,
		Calibration:   r.store.Global(),
	}, nil
}

// RestoreInductiveRegressor rebuilds a regressor from its state and the
// trained nonconformity function it was calibrated with.
func RestoreInductiveRegressor(state InductiveRegressorState, nc ports.RegressionNonconformityFunction, opts ...Option) (*InductiveRegressor, error) {
	if nc == nil || !nc.IsTrained() {
		return nil, errors.NotTrained("restored nonconformity function")
	}
	if nc.Kind() != state.Nonconformity {
		return nil, errors.InvalidInput(fmt.Sprintf("state was calibrated with %s, got %s", state.Nonconformity, nc.Kind()))
	}
	store, err := calibration.Restore(state.Calibration, nil, false)
	if err != nil {
		return nil, errors.Wrap(err, "restore calibration")
	}
	if store.Len() == 0 {
		return nil, errors.DataMismatch("restore calibration", core.ErrEmptyCalibration)
	}

	defaults := []Option{WithEngine(pvalue.NewEngine(pvalue.WithSmoothing(state.Smoothing)))}
	if state.IntervalRule != "" {
		defaults = append(defaults, WithIntervalRule(state.IntervalRule))
	}
	r, err := NewInductiveRegressor(nc, append(defaults, opts...)...)
	if err != nil {
		return nil, err
	}
	if state.ID != "" {
		r.id = state.ID
	}
	r.store = store
	r.attributes = state.Attributes
	return r, nil
}
