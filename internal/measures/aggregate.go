package measures

import (
	"sync"

	"gocp/domain/conformal"

	"github.com/montanaflynn/stats"
)

// Aggregate collects the values of one measure over many predictions. It
// is safe for concurrent use.
type Aggregate struct {
	name   string
	mu     sync.Mutex
	values stats.Float64Data
}

// NewAggregate creates an empty aggregate.
func NewAggregate(name string) *Aggregate {
	return &Aggregate{name: name}
}

func (a *Aggregate) Name() string { return a.name }

// Add records one value.
func (a *Aggregate) Add(v float64) {
	a.mu.Lock()
	a.values = append(a.values, v)
	a.mu.Unlock()
}

// Count returns the number of recorded values.
func (a *Aggregate) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.values)
}

// Mean returns the mean value, or an error when nothing was recorded.
func (a *Aggregate) Mean() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return stats.Mean(a.values)
}

// StdDev returns the population standard deviation.
func (a *Aggregate) StdDev() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return stats.StandardDeviation(a.values)
}

// Result is a summary line of an aggregate.
type Result struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Result summarises the aggregate. An empty aggregate reports zeros.
func (a *Aggregate) Result() Result {
	r := Result{Name: a.name, Count: a.Count()}
	if r.Count == 0 {
		return r
	}
	r.Mean, _ = a.Mean()
	r.StdDev, _ = a.StdDev()
	return r
}

// PriorSet aggregates a battery of prior measures.
type PriorSet struct {
	measures   []Prior
	aggregates []*Aggregate
}

// NewPriorSet aggregates the given measures, or the default battery when none are given.
func NewPriorSet(ms ...Prior) *PriorSet {
	if len(ms) == 0 {
		ms = DefaultPrior()
	}
	s := &PriorSet{measures: ms, aggregates: make([]*Aggregate, len(ms))}
	for i, m := range ms {
		s.aggregates[i] = NewAggregate(m.Name())
	}
	return s
}

// Add evaluates every measure on p.
func (s *PriorSet) Add(p conformal.Classification) {
	for i, m := range s.measures {
		s.aggregates[i].Add(m.Compute(p))
	}
}

// Results returns one summary per measure, in battery order.
func (s *PriorSet) Results() []Result {
	return results(s.aggregates)
}

// ObservedSet aggregates a battery of observed measures.
type ObservedSet struct {
	measures   []Observed
	aggregates []*Aggregate
}

// NewObservedSet aggregates the given measures, or the default battery when none are given.
func NewObservedSet(ms ...Observed) *ObservedSet {
	if len(ms) == 0 {
		ms = DefaultObserved()
	}
	s := &ObservedSet{measures: ms, aggregates: make([]*Aggregate, len(ms))}
	for i, m := range ms {
		s.aggregates[i] = NewAggregate(m.Name())
	}
	return s
}

// Add evaluates every measure on p with its true label.
func (s *ObservedSet) Add(p conformal.Classification, trueLabel float64) {
	for i, m := range s.measures {
		s.aggregates[i].Add(m.Compute(p, trueLabel))
	}
}

func (s *ObservedSet) Results() []Result {
	return results(s.aggregates)
}

func results(aggregates []*Aggregate) []Result {
	out := make([]Result, len(aggregates))
	for i, a := range aggregates {
		out[i] = a.Result()
	}
	return out
}
