// Package measures scores the efficiency and validity of conformal
// classifications, one prediction at a time or aggregated over a test set.
//
// Prior measures look only at the prediction. Observed measures also take
// the true label. For every measure smaller values are better, except the
// accuracy and one-class measures and the multi-probabilistic lower bound.
package measures

import (
	"fmt"

	"gocp/domain/conformal"
)

// DefaultSignificances are the levels the default batteries evaluate at.
var DefaultSignificances = []float64{0.10, 0.05, 0.01}

// Prior is a measure of a single prediction.
type Prior interface {
	Name() string
	Compute(p conformal.Classification) float64
}

// Observed is a measure of a single prediction given the true label.
type Observed interface {
	Name() string
	Compute(p conformal.Classification, trueLabel float64) float64
}

// MultiProbabilistic is a measure of a multi-probabilistic prediction.
type MultiProbabilistic interface {
	Name() string
	Compute(p conformal.MultiProbabilisticClassification) float64
}

type prior struct {
	name string
	fn   func(conformal.Classification) float64
}

func (m prior) Name() string { return m.name }
func (m prior) Compute(p conformal.Classification) float64 { return m.fn(p) }

type observed struct {
	name string
	fn   func(conformal.Classification, float64) float64
}

func (m observed) Name() string { return m.name }
func (m observed) Compute(p conformal.Classification, trueLabel float64) float64 {
	return m.fn(p, trueLabel)
}

type multiProbabilistic struct {
	name string
	fn   func(conformal.MultiProbabilisticClassification) float64
}

func (m multiProbabilistic) Name() string { return m.name }
func (m multiProbabilistic) Compute(p conformal.MultiProbabilisticClassification) float64 {
	return m.fn(p)
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func withSignificance(name string, significance float64) string {
	return fmt.Sprintf("%s(%.2f)", name, significance)
}

// contains reports whether trueLabel is a known class inside the prediction
// set, and returns the set size.
func contains(p conformal.Classification, trueLabel, significance float64) (bool, int) {
	size := p.SetSize(significance)
	idx, ok := p.Labels.Index(trueLabel)
	return ok && p.Includes(idx, significance), size
}

// Sum is the S criterion: the sum of all p-values.
func Sum() Prior {
	return prior{"Sum", func(p conformal.Classification) float64 { return p.Sum() }}
}

// Number is the N criterion: the size of the prediction set.
func Number(significance float64) Prior {
	return prior{withSignificance("Number", significance), func(p conformal.Classification) float64 {
		return float64(p.SetSize(significance))
	}}
}

// Fuzziness is the F criterion: the sum of the p-values minus the largest.
func Fuzziness() Prior {
	return prior{"Fuzziness", func(p conformal.Classification) float64 {
		return p.Sum() - p.Credibility()
	}}
}

// Unconfidence is the U criterion: the second largest p-value.
func Unconfidence() Prior {
	return prior{"Unconfidence", func(p conformal.Classification) float64 {
		return 1 - p.Confidence()
	}}
}

// Multiple is the M criterion: 1 when the prediction set holds several labels.
func Multiple(significance float64) Prior {
	return prior{withSignificance("Multiple", significance), func(p conformal.Classification) float64 {
		return indicator(p.SetSize(significance) > 1)
	}}
}

// Excess is the E criterion: the number of labels beyond the first.
func Excess(significance float64) Prior {
	return prior{withSignificance("Excess", significance), func(p conformal.Classification) float64 {
		return float64(max(0, p.SetSize(significance)-1))
	}}
}

// OneC is 1 when the prediction set holds exactly one label.
func OneC(significance float64) Prior {
	return prior{withSignificance("OneC", significance), func(p conformal.Classification) float64 {
		return indicator(p.SetSize(significance) == 1)
	}}
}

// Accuracy is 1 when the true label is in the prediction set.
func Accuracy(significance float64) Observed {
	return observed{withSignificance("Accuracy", significance), func(p conformal.Classification, y float64) float64 {
		in, _ := contains(p, y, significance)
		return indicator(in)
	}}
}

// ObservedUnconfidence is the second largest p-value when the point
// prediction is right and the largest otherwise.
func ObservedUnconfidence() Observed {
	return observed{"ObservedUnconfidence", func(p conformal.Classification, y float64) float64 {
		if label, ok := p.LabelPointPrediction(); ok && label == y {
			return 1 - p.Confidence()
		}
		return p.Credibility()
	}}
}

// ObservedFuzziness is the sum of the p-values of the false labels.
func ObservedFuzziness() Observed {
	return observed{"ObservedFuzziness", func(p conformal.Classification, y float64) float64 {
		sum := 0.0
		for i, pv := range p.PValues {
			if p.Labels.At(i) != y {
				sum += pv
			}
		}
		return sum
	}}
}

// ObservedMultiple is 1 when the prediction set holds any false label.
func ObservedMultiple(significance float64) Observed {
	return observed{withSignificance("ObservedMultiple", significance), func(p conformal.Classification, y float64) float64 {
		in, size := contains(p, y, significance)
		return indicator(size-int(indicator(in)) > 0)
	}}
}

// ObservedExcess is the number of false labels in the prediction set.
func ObservedExcess(significance float64) Observed {
	return observed{withSignificance("ObservedExcess", significance), func(p conformal.Classification, y float64) float64 {
		in, size := contains(p, y, significance)
		return float64(size) - indicator(in)
	}}
}

// ObservedOneC is 1 when the prediction set is exactly the true label.
func ObservedOneC(significance float64) Observed {
	return observed{withSignificance("ObservedOneC", significance), func(p conformal.Classification, y float64) float64 {
		in, size := contains(p, y, significance)
		return indicator(in && size == 1)
	}}
}

// LowerBound is the calibrated lower probability of a correct point prediction.
func LowerBound() MultiProbabilistic {
	return multiProbabilistic{"LowerBound", func(p conformal.MultiProbabilisticClassification) float64 { return p.Lower }}
}

// UpperBound is the calibrated upper probability of a correct point prediction.
func UpperBound() MultiProbabilistic {
	return multiProbabilistic{"UpperBound", func(p conformal.MultiProbabilisticClassification) float64 { return p.Upper }}
}

// DefaultPrior returns the standard prior battery.
func DefaultPrior() []Prior {
	out := []Prior{Sum()}
	for _, eps := range DefaultSignificances {
		out = append(out, Number(eps))
	}
	out = append(out, Fuzziness(), Unconfidence())
	for _, build := range []func(float64) Prior{Multiple, Excess, OneC} {
		for _, eps := range DefaultSignificances {
			out = append(out, build(eps))
		}
	}
	return out
}

// DefaultObserved returns the standard observed battery.
func DefaultObserved() []Observed {
	var out []Observed
	for _, eps := range DefaultSignificances {
		out = append(out, Accuracy(eps))
	}
	out = append(out, ObservedUnconfidence(), ObservedFuzziness())
	for _, build := range []func(float64) Observed{ObservedMultiple, ObservedExcess, ObservedOneC} {
		for _, eps := range DefaultSignificances {
			out = append(out, build(eps))
		}
	}
	return out
}
