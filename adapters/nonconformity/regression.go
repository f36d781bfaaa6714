package nonconformity

import (
	"context"
	"math"

	"gocp/ports"

	"gonum.org/v1/gonum/mat"
)

// Residual scores a regression example by the absolute or squared error of
// the wrapped regressor's prediction.
type Residual struct {
	kind    string
	model   ports.Regressor
	squared bool
	settings
}

var _ ports.RegressionNonconformityFunction = (*Residual)(nil)

// NewAbsoluteError scores |y - f(x)|.
func NewAbsoluteError(model ports.Regressor, opts ...Option) *Residual {
	return &Residual{kind: KindAbsoluteError, model: model, settings: newSettings(opts)}
}

// NewSquaredError scores (y - f(x))^2.
func NewSquaredError(model ports.Regressor, opts ...Option) *Residual {
	return &Residual{kind: KindSquaredError, model: model, squared: true, settings: newSettings(opts)}
}

func (f *Residual) Fit(x mat.Matrix, y []float64) error {
	return f.model.Fit(x, y)
}

func (f *Residual) Score(instance []float64, y float64) float64 {
	r := y - f.model.Predict(instance)
	if f.squared {
		return r * r
	}
	return math.Abs(r)
}

func (f *Residual) Scores(ctx context.Context, x mat.Matrix, y []float64) ([]float64, error) {
	return scoreRows(ctx, f.workers, x, y, 0, func(row []float64, target float64, _ []float64) float64 {
		return f.Score(row, target)
	})
}

func (f *Residual) Predict(instance []float64) float64 {
	return f.model.Predict(instance)
}

// Epsilon maps a score threshold back to target units.
func (f *Residual) Epsilon(threshold float64) float64 {
	if f.squared {
		return math.Sqrt(threshold)
	}
	return threshold
}

func (f *Residual) Regressor() ports.Regressor { return f.model }

func (f *Residual) Kind() string { return f.kind }

func (f *Residual) AttributeCount() int { return f.model.AttributeCount() }

func (f *Residual) IsTrained() bool { return f.model.IsTrained() }
