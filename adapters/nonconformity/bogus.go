package nonconformity

import (
	"fmt"

	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/ports"

	"gonum.org/v1/gonum/mat"
)

// BogusProbabilities gives a hard binary classifier a probability interface:
// a prediction of the larger label becomes [0, 1], of the smaller [1, 0].
// It is a heuristic for one- and two-class problems only.
type BogusProbabilities struct {
	ports.Classifier
	labels dataset.Labels
}

var _ ports.ClassProbabilityClassifier = (*BogusProbabilities)(nil)

// NewBogusProbabilities wraps c. More than two classes are rejected.
func NewBogusProbabilities(c ports.Classifier, labels dataset.Labels) (*BogusProbabilities, error) {
	if labels.Len() > 2 {
		return nil, fmt.Errorf("%w: probability adapter supports at most 2 classes, got %d", core.ErrTooManyClasses, labels.Len())
	}
	return &BogusProbabilities{Classifier: c, labels: labels}, nil
}

func (b *BogusProbabilities) FitNew(x mat.Matrix, y []float64) (ports.Classifier, error) {
	trained, err := b.Classifier.FitNew(x, y)
	if err != nil {
		return nil, err
	}
	return &BogusProbabilities{Classifier: trained, labels: b.labels}, nil
}

// PredictProbabilities writes [0.5-0.5p, 0.5+0.5p] with p = +1 for the larger
// label and -1 otherwise. With a single class the only slot gets 1.
func (b *BogusProbabilities) PredictProbabilities(instance []float64, dst []float64) float64 {
	predicted := b.Classifier.Predict(instance)
	if len(dst) == 1 {
		dst[0] = 1
		return predicted
	}
	p := -1.0
	if idx, ok := b.labels.Index(predicted); ok && idx == 1 {
		p = 1
	}
	dst[0] = 0.5 - 0.5*p
	dst[1] = 0.5 + 0.5*p
	return predicted
}
