package nonconformity

import (
	"context"
	"fmt"

	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/ports"

	"gonum.org/v1/gonum/mat"
)

// SVMDistance scores an example as -s * d(x), where d is the signed distance
// to the classifier's separating hyperplane and s is +1 for the larger label
// and -1 for the smaller one. Examples deep on their own side score low.
type SVMDistance struct {
	model  ports.SVMClassifier
	labels dataset.Labels
	settings
}

var _ ports.ClassificationNonconformityFunction = (*SVMDistance)(nil)

// NewSVMDistance wraps a binary margin classifier. More than two classes are rejected.
func NewSVMDistance(model ports.SVMClassifier, labels dataset.Labels, opts ...Option) (*SVMDistance, error) {
	if labels.Len() > 2 {
		return nil, fmt.Errorf("%w: %s supports at most 2 classes, got %d", core.ErrTooManyClasses, KindSVMDistance, labels.Len())
	}
	return &SVMDistance{model: model, labels: labels, settings: newSettings(opts)}, nil
}

func (f *SVMDistance) Fit(x mat.Matrix, y []float64) error {
	return f.model.Fit(x, y)
}

func (f *SVMDistance) FitNew(x mat.Matrix, y []float64) (ports.ClassificationNonconformityFunction, error) {
	trained, err := f.model.FitNew(x, y)
	if err != nil {
		return nil, err
	}
	model, ok := trained.(ports.SVMClassifier)
	if !ok {
		return nil, fmt.Errorf("%s: retrained model %T has no separating plane", KindSVMDistance, trained)
	}
	return &SVMDistance{model: model, labels: f.labels, settings: f.settings}, nil
}

func (f *SVMDistance) Score(instance []float64, label float64) float64 {
	return -f.orientation(label) * f.model.DistanceFromSeparatingPlane(instance)
}

func (f *SVMDistance) orientation(label float64) float64 {
	if idx, ok := f.labels.Index(label); ok && idx == 0 && f.labels.Len() == 2 {
		return -1
	}
	return 1
}

func (f *SVMDistance) Scores(ctx context.Context, x mat.Matrix, y []float64) ([]float64, error) {
	return scoreRows(ctx, f.workers, x, y, 0, func(row []float64, label float64, _ []float64) float64 {
		return f.Score(row, label)
	})
}

func (f *SVMDistance) Classifier() ports.Classifier { return f.model }

func (f *SVMDistance) Kind() string { return KindSVMDistance }

func (f *SVMDistance) AttributeCount() int { return f.model.AttributeCount() }

func (f *SVMDistance) IsTrained() bool { return f.model.IsTrained() }

// ScoreLabels evaluates the distance once for all classes.
func (f *SVMDistance) ScoreLabels(instance []float64, dst []float64) {
	d := f.model.DistanceFromSeparatingPlane(instance)
	for i := range dst {
		dst[i] = -f.orientation(f.labels.At(i)) * d
	}
}
