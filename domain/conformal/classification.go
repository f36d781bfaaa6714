package conformal

import (
	"gocp/domain/dataset"
)

// NoPrediction is the class index reported when the largest p-value is shared.
const NoPrediction = -1

// Classification is the conformal result for one instance: a p-value per
// class, indexed like Labels.
type Classification struct {
	PValues []float64      `json:"p_values"`
	Labels  dataset.Labels `json:"-"`
}

// NewClassification pairs p-values with their class list.
func NewClassification(pValues []float64, labels dataset.Labels) Classification {
	return Classification{PValues: pValues, Labels: labels}
}

// Includes reports whether class idx belongs to the prediction set at the
// given significance level.
func (c Classification) Includes(idx int, significance float64) bool {
	return c.PValues[idx] >= significance
}

// ClassSet returns the class indices whose p-value reaches the significance level.
func (c Classification) ClassSet(significance float64) []int {
	set := make([]int, 0, len(c.PValues))
	for i, p := range c.PValues {
		if p >= significance {
			set = append(set, i)
		}
	}
	return set
}

// LabelSet returns the label values of ClassSet.
func (c Classification) LabelSet(significance float64) []float64 {
	set := make([]float64, 0, len(c.PValues))
	for i, p := range c.PValues {
		if p >= significance {
			set = append(set, c.Labels.At(i))
		}
	}
	return set
}

// SetSize returns the size of the prediction set.
func (c Classification) SetSize(significance float64) int {
	n := 0
	for _, p := range c.PValues {
		if p >= significance {
			n++
		}
	}
	return n
}

// ClassPointPrediction returns the index of the class with the strictly
// largest p-value, or NoPrediction on a tie.
func (c Classification) ClassPointPrediction() int {
	best := NoPrediction
	unique := false
	for i, p := range c.PValues {
		switch {
		case best == NoPrediction || p > c.PValues[best]:
			best = i
			unique = true
		case p == c.PValues[best]:
			unique = false
		}
	}
	if !unique {
		return NoPrediction
	}
	return best
}

// LabelPointPrediction is ClassPointPrediction mapped to its label.
func (c Classification) LabelPointPrediction() (float64, bool) {
	idx := c.ClassPointPrediction()
	if idx == NoPrediction {
		return 0, false
	}
	return c.Labels.At(idx), true
}

// Confidence is one minus the second largest p-value. A single-class problem
// has confidence 1.
func (c Classification) Confidence() float64 {
	_, second := c.topTwo()
	return 1 - second
}

// Credibility is the largest p-value.
func (c Classification) Credibility() float64 {
	first, _ := c.topTwo()
	return first
}

// Sum returns the sum of all p-values.
func (c Classification) Sum() float64 {
	var s float64
	for _, p := range c.PValues {
		s += p
	}
	return s
}

func (c Classification) topTwo() (first, second float64) {
	for _, p := range c.PValues {
		if p > first {
			first, second = p, first
		} else if p > second {
			second = p
		}
	}
	return first, second
}
