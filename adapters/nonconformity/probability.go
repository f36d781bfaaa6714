package nonconformity

import (
	"context"
	"fmt"

	"gocp/domain/dataset"
	"gocp/ports"

	"gonum.org/v1/gonum/mat"
)

// ProbabilityFunction scores an example as 1 - P(label | x). It backs both
// the class-probability and the hinge-loss functions, which share a formula.
type ProbabilityFunction struct {
	kind   string
	model  ports.ClassProbabilityClassifier
	labels dataset.Labels
	settings
}

var _ ports.ClassificationNonconformityFunction = (*ProbabilityFunction)(nil)

// NewClassProbability wraps a probabilistic classifier.
func NewClassProbability(model ports.ClassProbabilityClassifier, labels dataset.Labels, opts ...Option) *ProbabilityFunction {
	return &ProbabilityFunction{kind: KindClassProbability, model: model, labels: labels, settings: newSettings(opts)}
}

// NewHingeLoss wraps a probabilistic classifier under the hinge-loss name.
func NewHingeLoss(model ports.ClassProbabilityClassifier, labels dataset.Labels, opts ...Option) *ProbabilityFunction {
	return &ProbabilityFunction{kind: KindHingeLoss, model: model, labels: labels, settings: newSettings(opts)}
}

func (f *ProbabilityFunction) Fit(x mat.Matrix, y []float64) error {
	return f.model.Fit(x, y)
}

func (f *ProbabilityFunction) FitNew(x mat.Matrix, y []float64) (ports.ClassificationNonconformityFunction, error) {
	trained, err := f.model.FitNew(x, y)
	if err != nil {
		return nil, err
	}
	model, ok := trained.(ports.ClassProbabilityClassifier)
	if !ok {
		return nil, fmt.Errorf("%s: retrained model %T lost class probabilities", f.kind, trained)
	}
	return &ProbabilityFunction{kind: f.kind, model: model, labels: f.labels, settings: f.settings}, nil
}

func (f *ProbabilityFunction) Score(instance []float64, label float64) float64 {
	probs := make([]float64, f.labels.Len())
	idx, score := f.score(instance, label, probs)
	if idx >= 0 && len(probs) == 2 && probs[idx] < probs[1-idx] {
		f.logger.Debug("%s: model prefers the other class for label %v (p=%.3f)", f.kind, label, probs[idx])
	}
	return score
}

// score returns the class index of label (or -1) and the nonconformity.
// Labels outside the class list are maximally nonconforming.
func (f *ProbabilityFunction) score(instance []float64, label float64, probs []float64) (int, float64) {
	f.model.PredictProbabilities(instance, probs)
	idx, ok := f.labels.Index(label)
	if !ok {
		return -1, 1
	}
	return idx, 1 - probs[idx]
}

func (f *ProbabilityFunction) Scores(ctx context.Context, x mat.Matrix, y []float64) ([]float64, error) {
	var poor disagreementCounter
	scores, err := scoreRows(ctx, f.workers, x, y, f.labels.Len(), func(row []float64, label float64, probs []float64) float64 {
		idx, s := f.score(row, label, probs)
		if idx >= 0 {
			poor.observe(probs, idx)
		}
		return s
	})
	if err != nil {
		return nil, err
	}
	if n := poor.n.Load(); n > 0 {
		f.logger.Warn("%s: model prefers the wrong class on %d of %d rows", f.kind, n, len(scores))
	}
	return scores, nil
}

func (f *ProbabilityFunction) Classifier() ports.Classifier { return f.model }

func (f *ProbabilityFunction) Kind() string { return f.kind }

func (f *ProbabilityFunction) AttributeCount() int { return f.model.AttributeCount() }

func (f *ProbabilityFunction) IsTrained() bool { return f.model.IsTrained() }

// ScoreLabels scores instance under every class with a single probability query.
func (f *ProbabilityFunction) ScoreLabels(instance []float64, dst []float64) {
	f.model.PredictProbabilities(instance, dst)
	for i := range dst {
		dst[i] = 1 - dst[i]
	}
}
