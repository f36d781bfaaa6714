package ports

import (
	"context"

	"gocp/domain/conformal"
	"gocp/domain/dataset"

	"gonum.org/v1/gonum/mat"
)

// ConformalClassifier is the prediction surface shared by the inductive and
// transductive classifiers.
type ConformalClassifier interface {
	PredictPValues(ctx context.Context, instance []float64) ([]float64, error)
	Predict(ctx context.Context, instance []float64) (conformal.Classification, error)
	PredictBatch(ctx context.Context, x mat.Matrix) ([]conformal.Classification, error)

	Labels() dataset.Labels
	AttributeCount() int
	IsTrained() bool
}
