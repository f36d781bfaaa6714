// Package calibration holds the sorted nonconformity scores a conformal
// predictor compares test scores against.
package calibration

import (
	"fmt"
	"sort"

	"gocp/domain/core"

	"github.com/montanaflynn/stats"
)

// Store keeps the calibration scores sorted ascending, either as one global
// array or additionally split into one bucket per class. It is immutable
// once built and may be read concurrently without locking.
type Store struct {
	labelConditional bool
	global           []float64
	classes          [][]float64
}

// Summary describes the distribution of calibration scores.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// NewStore sorts scores into a store. classOf gives the class index of each
// score and is required only for label-conditional stores; numClasses fixes
// the number of buckets so that classes with no scores get an empty bucket.
func NewStore(scores []float64, classOf []int, numClasses int, labelConditional bool) (*Store, error) {
	global := make([]float64, len(scores))
	copy(global, scores)
	sort.Float64s(global)

	s := &Store{labelConditional: labelConditional, global: global}
	if !labelConditional {
		return s, nil
	}

	if len(classOf) != len(scores) {
		return nil, core.NewDimensionError("class indices", len(scores), len(classOf))
	}
	s.classes = make([][]float64, numClasses)
	for k := range s.classes {
		s.classes[k] = []float64{}
	}
	for i, score := range scores {
		k := classOf[i]
		if k < 0 || k >= numClasses {
			return nil, fmt.Errorf("%w: class index %d outside [0, %d)", core.ErrDimensionMismatch, k, numClasses)
		}
		s.classes[k] = append(s.classes[k], score)
	}
	for _, bucket := range s.classes {
		sort.Float64s(bucket)
	}
	return s, nil
}

// Restore rebuilds a store from previously sorted arrays, checking the order.
func Restore(global []float64, classes [][]float64, labelConditional bool) (*Store, error) {
	if !sort.Float64sAreSorted(global) {
		return nil, fmt.Errorf("calibration scores are not sorted")
	}
	s := &Store{labelConditional: labelConditional, global: append([]float64(nil), global...)}
	if !labelConditional {
		return s, nil
	}
	s.classes = make([][]float64, len(classes))
	for k, bucket := range classes {
		if !sort.Float64sAreSorted(bucket) {
			return nil, fmt.Errorf("calibration bucket %d is not sorted", k)
		}
		s.classes[k] = append([]float64{}, bucket...)
	}
	return s, nil
}

// Scores returns the array a test score for class k is compared against.
// Callers must not modify it.
func (s *Store) Scores(k int) []float64 {
	if s.labelConditional {
		return s.classes[k]
	}
	return s.global
}

// Global returns all calibration scores, sorted.
func (s *Store) Global() []float64 { return s.global }

// ClassScores returns the per-class buckets, or nil for a global store.
func (s *Store) ClassScores() [][]float64 { return s.classes }

// LabelConditional reports whether scores are bucketed by class.
func (s *Store) LabelConditional() bool { return s.labelConditional }

// Len returns the total number of calibration scores.
func (s *Store) Len() int { return len(s.global) }

// BucketSizes returns the number of scores per class bucket.
func (s *Store) BucketSizes() []int {
	sizes := make([]int, len(s.classes))
	for k, bucket := range s.classes {
		sizes[k] = len(bucket)
	}
	return sizes
}

// Summary computes descriptive statistics over all calibration scores.
func (s *Store) Summary() (Summary, error) {
	if len(s.global) == 0 {
		return Summary{}, core.ErrEmptyCalibration
	}
	data := stats.Float64Data(s.global)

	mean, err := stats.Mean(data)
	if err != nil {
		return Summary{}, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return Summary{}, err
	}
	p90, err := stats.Percentile(data, 90)
	if err != nil {
		return Summary{}, err
	}
	maxScore, err := stats.Max(data)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Count: len(s.global), Mean: mean, Median: median, P90: p90, Max: maxScore}, nil
}
