package app

import (
	"context"

	"gocp/domain/conformal"
	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/internal/errors"
	"gocp/internal/isotonic"
	"gocp/ports"

	"gonum.org/v1/gonum/mat"
)

// MultiProbabilisticClassifier wraps a trained conformal classifier and
// attaches to each prediction an interval for the probability that its point
// prediction is correct. The interval is read from an isotonic grid fitted
// on a second calibration set.
type MultiProbabilisticClassifier struct {
	base     ports.ConformalClassifier
	settings settings
	grid     *isotonic.Grid
}

// NewMultiProbabilisticClassifier wraps base, which must already be trained.
func NewMultiProbabilisticClassifier(base ports.ConformalClassifier, opts ...Option) (*MultiProbabilisticClassifier, error) {
	if base == nil {
		return nil, errors.InvalidInput("conformal classifier is required")
	}
	if !base.IsTrained() {
		return nil, errors.NotTrained("wrapped conformal classifier")
	}
	s := newSettings(opts)
	if s.grid.Resolution < 1 {
		return nil, errors.ConfigInvalid("grid resolution must be at least 1")
	}
	s.logger = s.logger.Named("mpc")
	return &MultiProbabilisticClassifier{base: base, settings: s}, nil
}

// Calibrate predicts every row of cal with the wrapped classifier, records
// whether the point prediction was right in the (confidence, credibility)
// cell of that prediction, and fits the grid. cal should be disjoint from
// the data the wrapped classifier was calibrated on.
func (m *MultiProbabilisticClassifier) Calibrate(ctx context.Context, cal dataset.DataSet) error {
	if err := cal.Validate(); err != nil {
		return errors.Wrap(err, "invalid calibration set")
	}
	if cal.IsEmpty() {
		return errors.DataMismatch("cannot calibrate on an empty calibration set", core.ErrEmptyCalibration)
	}
	predictions, err := m.base.PredictBatch(ctx, cal.X)
	if err != nil {
		return errors.Wrap(err, "predict calibration set")
	}

	grid := isotonic.NewGrid(m.settings.grid)
	correct := 0
	for i, p := range predictions {
		label, ok := p.LabelPointPrediction()
		hit := ok && label == cal.Y[i]
		if hit {
			correct++
		}
		grid.Add(p.Confidence(), p.Credibility(), hit)
	}
	passes := grid.Fit()
	m.grid = grid
	m.settings.logger.Info("fitted %d grid cells from %d calibration rows (%d correct) in %d passes",
		grid.Len(), len(predictions), correct, passes)
	return nil
}

// Predict returns the wrapped prediction with its probability bounds.
func (m *MultiProbabilisticClassifier) Predict(ctx context.Context, instance []float64) (conformal.MultiProbabilisticClassification, error) {
	if err := m.ready(); err != nil {
		return conformal.MultiProbabilisticClassification{}, err
	}
	p, err := m.base.Predict(ctx, instance)
	if err != nil {
		return conformal.MultiProbabilisticClassification{}, err
	}
	return m.bound(p), nil
}

// PredictBatch returns one bounded prediction per row of x, in row order.
func (m *MultiProbabilisticClassifier) PredictBatch(ctx context.Context, x mat.Matrix) ([]conformal.MultiProbabilisticClassification, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	predictions, err := m.base.PredictBatch(ctx, x)
	if err != nil {
		return nil, err
	}
	out := make([]conformal.MultiProbabilisticClassification, len(predictions))
	for i, p := range predictions {
		out[i] = m.bound(p)
	}
	return out, nil
}

// PredictPValues delegates to the wrapped classifier.
func (m *MultiProbabilisticClassifier) PredictPValues(ctx context.Context, instance []float64) ([]float64, error) {
	return m.base.PredictPValues(ctx, instance)
}

func (m *MultiProbabilisticClassifier) bound(p conformal.Classification) conformal.MultiProbabilisticClassification {
	confidence, credibility := p.Confidence(), p.Credibility()
	lower, upper := m.grid.Bounds(confidence, credibility)
	if lower > upper {
		m.settings.logger.Warn("inconsistent probability bounds [%.4f, %.4f] at confidence %.4f, credibility %.4f",
			lower, upper, confidence, credibility)
	}
	return conformal.MultiProbabilisticClassification{Classification: p, Lower: lower, Upper: upper}
}

func (m *MultiProbabilisticClassifier) ready() error {
	if m.grid == nil {
		return errors.NotTrained("multi-probabilistic classifier")
	}
	return nil
}

// Grid returns the fitted grid, or nil before calibration.
func (m *MultiProbabilisticClassifier) Grid() *isotonic.Grid { return m.grid }

// Base returns the wrapped classifier.
func (m *MultiProbabilisticClassifier) Base() ports.ConformalClassifier { return m.base }

func (m *MultiProbabilisticClassifier) Labels() dataset.Labels { return m.base.Labels() }

func (m *MultiProbabilisticClassifier) IsTrained() bool { return m.grid != nil }
