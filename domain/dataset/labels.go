package dataset

import (
	"math"
	"sort"
)

// Labels is the ordered class list of a classification problem. Classes are
// deduplicated and sorted ascending; a class's position is its index in every
// p-value vector, probability vector and calibration bucket.
type Labels struct {
	values []float64
	index  map[float64]int
}

// NewLabels builds the class list from raw targets. NaN targets are dropped.
func NewLabels(targets []float64) Labels {
	seen := make(map[float64]struct{}, len(targets))
	values := make([]float64, 0, len(targets))
	for _, y := range targets {
		if math.IsNaN(y) {
			continue
		}
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		values = append(values, y)
	}
	sort.Float64s(values)

	index := make(map[float64]int, len(values))
	for i, v := range values {
		index[v] = i
	}
	return Labels{values: values, index: index}
}

// Len returns the number of classes.
func (l Labels) Len() int { return len(l.values) }

// At returns the label at class index i.
func (l Labels) At(i int) float64 { return l.values[i] }

// Index returns the class index of label and whether it is known.
func (l Labels) Index(label float64) (int, bool) {
	i, ok := l.index[label]
	return i, ok
}

// Contains reports whether label is one of the classes.
func (l Labels) Contains(label float64) bool {
	_, ok := l.index[label]
	return ok
}

// Values returns a copy of the sorted class labels.
func (l Labels) Values() []float64 {
	out := make([]float64, len(l.values))
	copy(out, l.values)
	return out
}

// Equal reports whether both lists hold the same classes.
func (l Labels) Equal(other Labels) bool {
	if len(l.values) != len(other.values) {
		return false
	}
	for i := range l.values {
		if l.values[i] != other.values[i] {
			return false
		}
	}
	return true
}
