package ports

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier is the minimal contract a learning algorithm must satisfy to be
// wrapped by a conformal predictor.
type Classifier interface {
	// Fit trains the model in place.
	Fit(x mat.Matrix, y []float64) error

	// FitNew trains an independent copy with the same hyper-parameters and
	// returns it, leaving the receiver untouched. The copy may keep a
	// reference to x only for as long as the caller keeps the copy.
	FitNew(x mat.Matrix, y []float64) (Classifier, error)

	// Predict returns the predicted label of a single instance.
	Predict(instance []float64) float64

	// AttributeCount is the number of attributes seen during training, or -1.
	AttributeCount() int

	IsTrained() bool
}

// ClassProbabilityClassifier can report a probability per class.
type ClassProbabilityClassifier interface {
	Classifier

	// PredictProbabilities writes one probability per class into dst,
	// ordered by ascending label, and returns the predicted label.
	PredictProbabilities(instance []float64, dst []float64) float64
}

// SVMClassifier exposes the signed distance to its separating hyperplane.
// Positive distances point towards the larger of the two labels.
type SVMClassifier interface {
	Classifier

	DistanceFromSeparatingPlane(instance []float64) float64
}

// Regressor is the contract for the model wrapped by an inductive conformal regressor.
type Regressor interface {
	Fit(x mat.Matrix, y []float64) error
	Predict(instance []float64) float64
	AttributeCount() int
	IsTrained() bool
}
