// Package augment manages the (n+1)-row training copies the transductive
// classifier refits on for every candidate label.
package augment

import (
	"sync"
	"sync/atomic"

	"gocp/domain/core"
	"gocp/domain/dataset"

	"gonum.org/v1/gonum/mat"
)

// Buffer is a training set with one extra trailing row reserved for the
// query instance. Only the trailing row is ever rewritten, so the training
// rows stay valid across reuse as long as learners do not modify their input.
type Buffer struct {
	X *mat.Dense
	Y []float64

	// Scores and Calibration are scratch space for one refit: a score per
	// row and the scores kept for comparison.
	Scores      []float64
	Calibration []float64

	n int
}

// Set writes the query instance and its candidate label into the trailing row.
func (b *Buffer) Set(instance []float64, label float64) {
	b.X.SetRow(b.n, instance)
	b.Y[b.n] = label
}

// QueryIndex is the row index of the query instance.
func (b *Buffer) QueryIndex() int { return b.n }

// TrainingRows is the number of rows before the query row.
func (b *Buffer) TrainingRows() int { return b.n }

// Pool hands out Buffers preloaded with one training set. A buffer obtained
// from Get belongs to a single goroutine until it is returned with Put.
type Pool struct {
	train     dataset.DataSet
	pool      sync.Pool
	allocated atomic.Int64
}

// NewPool prepares buffers for train. The pool keeps its own copy of the data.
func NewPool(train dataset.DataSet) (*Pool, error) {
	if train.IsEmpty() {
		return nil, core.ErrEmptyTrainingSet
	}
	if err := train.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{train: train.Clone()}
	p.pool.New = func() any {
		p.allocated.Add(1)
		return p.newBuffer()
	}
	return p, nil
}

func (p *Pool) newBuffer() *Buffer {
	n, d := p.train.Rows(), p.train.Columns()
	x := mat.NewDense(n+1, d, nil)
	x.Slice(0, n, 0, d).(*mat.Dense).Copy(p.train.X)
	y := make([]float64, n+1)
	copy(y, p.train.Y)
	return &Buffer{
		X:           x,
		Y:           y,
		Scores:      make([]float64, n+1),
		Calibration: make([]float64, 0, n),
		n:           n,
	}
}

// Get returns a buffer for exclusive use.
func (p *Pool) Get() *Buffer {
	return p.pool.Get().(*Buffer)
}

// Put returns a buffer for reuse.
func (p *Pool) Put(b *Buffer) {
	if b != nil {
		p.pool.Put(b)
	}
}

// Allocated reports how many buffers have been built so far.
func (p *Pool) Allocated() int64 { return p.allocated.Load() }

// Training returns the pooled training set. Callers must not modify it.
func (p *Pool) Training() dataset.DataSet { return p.train }
