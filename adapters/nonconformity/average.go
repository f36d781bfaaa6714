package nonconformity

import (
	"context"

	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/ports"

	"gonum.org/v1/gonum/mat"
)

// ClassFrequency ignores the attributes and scores an example by how rare
// its label is in the data it was fitted on: 1 - count(label)/n.
type ClassFrequency struct {
	labels     dataset.Labels
	counts     []float64
	total      float64
	attributes int
	settings
}

var _ ports.ClassificationNonconformityFunction = (*ClassFrequency)(nil)

func NewClassFrequency(labels dataset.Labels, opts ...Option) *ClassFrequency {
	return &ClassFrequency{labels: labels, attributes: -1, settings: newSettings(opts)}
}

func (f *ClassFrequency) Fit(x mat.Matrix, y []float64) error {
	rows, cols := x.Dims()
	if rows != len(y) {
		return core.NewDimensionError("targets", rows, len(y))
	}
	if rows == 0 {
		return core.ErrEmptyTrainingSet
	}
	counts := make([]float64, f.labels.Len())
	for _, label := range y {
		if idx, ok := f.labels.Index(label); ok {
			counts[idx]++
		}
	}
	f.counts, f.total, f.attributes = counts, float64(rows), cols
	return nil
}

func (f *ClassFrequency) FitNew(x mat.Matrix, y []float64) (ports.ClassificationNonconformityFunction, error) {
	clone := &ClassFrequency{labels: f.labels, attributes: -1, settings: f.settings}
	if err := clone.Fit(x, y); err != nil {
		return nil, err
	}
	return clone, nil
}

func (f *ClassFrequency) Score(_ []float64, label float64) float64 {
	idx, ok := f.labels.Index(label)
	if !ok || f.total == 0 {
		return 1
	}
	return 1 - f.counts[idx]/f.total
}

func (f *ClassFrequency) Scores(ctx context.Context, x mat.Matrix, y []float64) ([]float64, error) {
	return scoreRows(ctx, f.workers, x, y, 0, func(row []float64, label float64, _ []float64) float64 {
		return f.Score(row, label)
	})
}

// Classifier returns nil: the function has no underlying model.
func (f *ClassFrequency) Classifier() ports.Classifier { return nil }

func (f *ClassFrequency) Kind() string { return KindAverage }

func (f *ClassFrequency) AttributeCount() int { return f.attributes }

func (f *ClassFrequency) IsTrained() bool { return f.counts != nil }

func (f *ClassFrequency) ScoreLabels(instance []float64, dst []float64) {
	for i := range dst {
		dst[i] = f.Score(instance, f.labels.At(i))
	}
}
