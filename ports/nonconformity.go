package ports

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// ClassificationNonconformityFunction scores how unusual a labelled instance
// is relative to the model it wraps. Higher scores mean stranger examples.
type ClassificationNonconformityFunction interface {
	// Fit trains the underlying predictor in place.
	Fit(x mat.Matrix, y []float64) error

	// FitNew returns an independent function trained on x and y. The
	// receiver is not modified, so FitNew may run concurrently.
	FitNew(x mat.Matrix, y []float64) (ClassificationNonconformityFunction, error)

	// Score returns the nonconformity of instance under label.
	Score(instance []float64, label float64) float64

	// Scores computes one score per row of x, preserving row order.
	Scores(ctx context.Context, x mat.Matrix, y []float64) ([]float64, error)

	// Classifier returns the wrapped model, or nil when there is none.
	Classifier() Classifier

	// Kind is the factory name of the function.
	Kind() string

	AttributeCount() int
	IsTrained() bool
}

// LabelScorer is implemented by classification functions that can score an
// instance under every class in one pass. dst is indexed like the function's
// class list.
type LabelScorer interface {
	ScoreLabels(instance []float64, dst []float64)
}

// RegressionNonconformityFunction scores residuals of a wrapped regressor.
type RegressionNonconformityFunction interface {
	Fit(x mat.Matrix, y []float64) error

	// Score returns the nonconformity of target y for instance.
	Score(instance []float64, y float64) float64

	Scores(ctx context.Context, x mat.Matrix, y []float64) ([]float64, error)

	// Predict returns the wrapped regressor's point prediction.
	Predict(instance []float64) float64

	// Epsilon converts a nonconformity threshold into an interval half-width.
	Epsilon(threshold float64) float64

	Regressor() Regressor
	Kind() string
	AttributeCount() int
	IsTrained() bool
}
