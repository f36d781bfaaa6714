package testkit

import (
	"fmt"
	"math"
	"sync"

	"gocp/domain/core"
	"gocp/domain/dataset"
	"gocp/ports"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NearestCentroid is a probabilistic classifier: class probabilities are a
// softmax over negative squared distances to the class centroids.
type NearestCentroid struct {
	Temperature float64

	labels     dataset.Labels
	centroids  *mat.Dense
	attributes int
}

var _ ports.ClassProbabilityClassifier = (*NearestCentroid)(nil)

// NewNearestCentroid creates an untrained classifier. Non-positive
// temperatures default to 1.
func NewNearestCentroid(temperature float64) *NearestCentroid {
	if temperature <= 0 {
		temperature = 1
	}
	return &NearestCentroid{Temperature: temperature, attributes: -1}
}

func (c *NearestCentroid) Fit(x mat.Matrix, y []float64) error {
	rows, cols := x.Dims()
	if rows != len(y) {
		return core.NewDimensionError("targets", rows, len(y))
	}
	if rows == 0 {
		return core.ErrEmptyTrainingSet
	}
	labels := dataset.NewLabels(y)
	centroids := mat.NewDense(labels.Len(), cols, nil)
	counts := make([]float64, labels.Len())
	for i := 0; i < rows; i++ {
		k, ok := labels.Index(y[i])
		if !ok {
			continue
		}
		counts[k]++
		for j := 0; j < cols; j++ {
			centroids.Set(k, j, centroids.At(k, j)+x.At(i, j))
		}
	}
	for k, n := range counts {
		floats.Scale(1/n, centroids.RawRowView(k))
	}
	c.labels, c.centroids, c.attributes = labels, centroids, cols
	return nil
}

func (c *NearestCentroid) FitNew(x mat.Matrix, y []float64) (ports.Classifier, error) {
	clone := NewNearestCentroid(c.Temperature)
	if err := clone.Fit(x, y); err != nil {
		return nil, err
	}
	return clone, nil
}

func (c *NearestCentroid) Predict(instance []float64) float64 {
	return c.PredictProbabilities(instance, make([]float64, c.labels.Len()))
}

// PredictProbabilities fills dst with up to one probability per trained class.
func (c *NearestCentroid) PredictProbabilities(instance []float64, dst []float64) float64 {
	k := c.labels.Len()
	logits := make([]float64, k)
	for i := 0; i < k; i++ {
		d := floats.Distance(instance, c.centroids.RawRowView(i), 2)
		logits[i] = -d * d / c.Temperature
	}
	maxLogit := floats.Max(logits)
	var total float64
	for i := range logits {
		logits[i] = math.Exp(logits[i] - maxLogit)
		total += logits[i]
	}
	for i := range dst {
		dst[i] = 0
		if i < k {
			dst[i] = logits[i] / total
		}
	}
	return c.labels.At(floats.MaxIdx(logits))
}

func (c *NearestCentroid) AttributeCount() int { return c.attributes }

func (c *NearestCentroid) IsTrained() bool { return c.centroids != nil }

// LinearClassifier is a two-class least-squares classifier. The smaller
// label is coded -1 and the larger +1; the norm of the separating hyperplane
// w.x + b = 0 is computed lazily the first time a distance is requested.
type LinearClassifier struct {
	labels     dataset.Labels
	weights    []float64
	bias       float64
	attributes int

	normOnce sync.Once
	norm     float64
}

var _ ports.SVMClassifier = (*LinearClassifier)(nil)

// NewLinearClassifier creates an untrained classifier.
func NewLinearClassifier() *LinearClassifier {
	return &LinearClassifier{attributes: -1}
}

// Fit trains the classifier. It must not be called again once distances
// have been requested; use FitNew for retraining.
func (c *LinearClassifier) Fit(x mat.Matrix, y []float64) error {
	rows, cols := x.Dims()
	if rows != len(y) {
		return core.NewDimensionError("targets", rows, len(y))
	}
	labels := dataset.NewLabels(y)
	if labels.Len() != 2 {
		return fmt.Errorf("%w: linear classifier needs exactly 2 classes, got %d", core.ErrUnsupportedOperation, labels.Len())
	}
	positive := labels.At(1)
	w, b, err := leastSquares(x, y, func(v float64) float64 {
		if v == positive {
			return 1
		}
		return -1
	})
	if err != nil {
		return err
	}
	c.labels, c.weights, c.bias, c.attributes = labels, w, b, cols
	return nil
}

func (c *LinearClassifier) FitNew(x mat.Matrix, y []float64) (ports.Classifier, error) {
	clone := NewLinearClassifier()
	if err := clone.Fit(x, y); err != nil {
		return nil, err
	}
	return clone, nil
}

func (c *LinearClassifier) Predict(instance []float64) float64 {
	if c.decision(instance) >= 0 {
		return c.labels.At(1)
	}
	return c.labels.At(0)
}

// DistanceFromSeparatingPlane is the signed Euclidean distance to the hyperplane.
func (c *LinearClassifier) DistanceFromSeparatingPlane(instance []float64) float64 {
	c.normOnce.Do(func() {
		c.norm = floats.Norm(c.weights, 2)
	})
	if c.norm == 0 {
		return 0
	}
	return c.decision(instance) / c.norm
}

func (c *LinearClassifier) decision(instance []float64) float64 {
	return floats.Dot(c.weights, instance) + c.bias
}

func (c *LinearClassifier) AttributeCount() int { return c.attributes }

func (c *LinearClassifier) IsTrained() bool { return c.weights != nil }

// LeastSquaresRegressor is ordinary least squares with an intercept.
type LeastSquaresRegressor struct {
	weights    []float64
	bias       float64
	attributes int
}

var _ ports.Regressor = (*LeastSquaresRegressor)(nil)

func NewLeastSquaresRegressor() *LeastSquaresRegressor {
	return &LeastSquaresRegressor{attributes: -1}
}

func (r *LeastSquaresRegressor) Fit(x mat.Matrix, y []float64) error {
	rows, cols := x.Dims()
	if rows != len(y) {
		return core.NewDimensionError("targets", rows, len(y))
	}
	w, b, err := leastSquares(x, y, func(v float64) float64 { return v })
	if err != nil {
		return err
	}
	r.weights, r.bias, r.attributes = w, b, cols
	return nil
}

func (r *LeastSquaresRegressor) Predict(instance []float64) float64 {
	return floats.Dot(r.weights, instance) + r.bias
}

func (r *LeastSquaresRegressor) AttributeCount() int { return r.attributes }

func (r *LeastSquaresRegressor) IsTrained() bool { return r.weights != nil }

// leastSquares solves [x 1] beta = code(y) and splits beta into weights and bias.
func leastSquares(x mat.Matrix, y []float64, code func(float64) float64) ([]float64, float64, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, 0, core.ErrEmptyTrainingSet
	}
	design := mat.NewDense(rows, cols+1, nil)
	target := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			design.Set(i, j, x.At(i, j))
		}
		design.Set(i, cols, 1)
		target.SetVec(i, code(y[i]))
	}

	var beta mat.VecDense
	if err := beta.SolveVec(design, target); err != nil {
		return nil, 0, fmt.Errorf("least squares: %w", err)
	}
	weights := make([]float64, cols)
	for j := range weights {
		weights[j] = beta.AtVec(j)
	}
	return weights, beta.AtVec(cols), nil
}

// ScriptedClassifier returns probabilities from a fixed function of the
// instance. Fitting only records the labels and width, so scores are exact.
type ScriptedClassifier struct {
	Probabilities func(instance []float64) []float64

	labels     dataset.Labels
	attributes int
}

var _ ports.ClassProbabilityClassifier = (*ScriptedClassifier)(nil)

func NewScriptedClassifier(fn func(instance []float64) []float64) *ScriptedClassifier {
	return &ScriptedClassifier{Probabilities: fn, attributes: -1}
}

func (s *ScriptedClassifier) Fit(x mat.Matrix, y []float64) error {
	rows, cols := x.Dims()
	if rows != len(y) {
		return core.NewDimensionError("targets", rows, len(y))
	}
	s.labels, s.attributes = dataset.NewLabels(y), cols
	return nil
}

func (s *ScriptedClassifier) FitNew(x mat.Matrix, y []float64) (ports.Classifier, error) {
	clone := NewScriptedClassifier(s.Probabilities)
	if err := clone.Fit(x, y); err != nil {
		return nil, err
	}
	return clone, nil
}

func (s *ScriptedClassifier) Predict(instance []float64) float64 {
	return s.labels.At(floats.MaxIdx(s.Probabilities(instance)))
}

func (s *ScriptedClassifier) PredictProbabilities(instance []float64, dst []float64) float64 {
	probs := s.Probabilities(instance)
	for i := range dst {
		dst[i] = 0
		if i < len(probs) {
			dst[i] = probs[i]
		}
	}
	return s.labels.At(floats.MaxIdx(probs))
}

func (s *ScriptedClassifier) AttributeCount() int { return s.attributes }

func (s *ScriptedClassifier) IsTrained() bool { return s.attributes >= 0 }

// ScriptedRegressor predicts a fixed function of the instance.
type ScriptedRegressor struct {
	Fn func(instance []float64) float64

	attributes int
}

var _ ports.Regressor = (*ScriptedRegressor)(nil)

func NewScriptedRegressor(fn func(instance []float64) float64) *ScriptedRegressor {
	return &ScriptedRegressor{Fn: fn, attributes: -1}
}

func (s *ScriptedRegressor) Fit(x mat.Matrix, y []float64) error {
	rows, cols := x.Dims()
	if rows != len(y) {
		return core.NewDimensionError("targets", rows, len(y))
	}
	s.attributes = cols
	return nil
}

func (s *ScriptedRegressor) Predict(instance []float64) float64 { return s.Fn(instance) }

func (s *ScriptedRegressor) AttributeCount() int { return s.attributes }

func (s *ScriptedRegressor) IsTrained() bool { return s.attributes >= 0 }
