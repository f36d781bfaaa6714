package dataset

import (
	"fmt"
	"math/rand"

	"gocp/domain/core"

	"gonum.org/v1/gonum/mat"
)

// DataSet is a feature matrix with one target per row. An empty data set has a nil X.
type DataSet struct {
	X *mat.Dense
	Y []float64
}

// New validates that x and y agree on the row count.
func New(x *mat.Dense, y []float64) (DataSet, error) {
	ds := DataSet{X: x, Y: y}
	if err := ds.Validate(); err != nil {
		return DataSet{}, err
	}
	return ds, nil
}

// FromRows builds a data set from row slices. All rows must share one length.
func FromRows(rows [][]float64, y []float64) (DataSet, error) {
	if len(rows) != len(y) {
		return DataSet{}, core.NewDimensionError("targets", len(rows), len(y))
	}
	if len(rows) == 0 {
		return DataSet{}, nil
	}
	cols := len(rows[0])
	if cols == 0 {
		return DataSet{}, fmt.Errorf("%w: rows have no attributes", core.ErrDimensionMismatch)
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return DataSet{}, core.NewDimensionError(fmt.Sprintf("attributes of row %d", i), cols, len(row))
		}
		data = append(data, row...)
	}
	targets := make([]float64, len(y))
	copy(targets, y)
	return DataSet{X: mat.NewDense(len(rows), cols, data), Y: targets}, nil
}

// Validate checks the row/target agreement.
func (d DataSet) Validate() error {
	if d.Rows() != len(d.Y) {
		return core.NewDimensionError("targets", d.Rows(), len(d.Y))
	}
	return nil
}

// Rows returns the number of instances.
func (d DataSet) Rows() int {
	if d.X == nil {
		return 0
	}
	r, _ := d.X.Dims()
	return r
}

// Columns returns the number of attributes.
func (d DataSet) Columns() int {
	if d.X == nil {
		return 0
	}
	_, c := d.X.Dims()
	return c
}

// IsEmpty reports whether the data set has no rows.
func (d DataSet) IsEmpty() bool { return d.Rows() == 0 }

// Row returns a copy of instance i.
func (d DataSet) Row(i int) []float64 {
	return mat.Row(nil, i, d.X)
}

// Labels returns the sorted distinct targets.
func (d DataSet) Labels() Labels {
	return NewLabels(d.Y)
}

// Subset copies the rows at the given indices into a new data set.
func (d DataSet) Subset(indices []int) DataSet {
	if len(indices) == 0 {
		return DataSet{}
	}
	cols := d.Columns()
	x := mat.NewDense(len(indices), cols, nil)
	y := make([]float64, len(indices))
	for i, idx := range indices {
		x.SetRow(i, d.X.RawRowView(idx))
		y[i] = d.Y[idx]
	}
	return DataSet{X: x, Y: y}
}

// Clone returns a deep copy.
func (d DataSet) Clone() DataSet {
	if d.X == nil {
		return DataSet{}
	}
	y := make([]float64, len(d.Y))
	copy(y, d.Y)
	return DataSet{X: mat.DenseCopyOf(d.X), Y: y}
}

// Partition randomly splits the rows into three disjoint sets holding roughly
// the given fractions of the data (the third set receives the remainder).
// A typical use is a training / calibration / test split.
func (d DataSet) Partition(rng *rand.Rand, first, second float64) (DataSet, DataSet, DataSet, error) {
	if first < 0 || second < 0 || first+second > 1 {
		return DataSet{}, DataSet{}, DataSet{}, fmt.Errorf("invalid partition fractions %.3f and %.3f", first, second)
	}
	n := d.Rows()
	perm := rng.Perm(n)
	n1 := int(float64(n) * first)
	n2 := int(float64(n) * second)
	if n1+n2 > n {
		n2 = n - n1
	}
	return d.Subset(perm[:n1]), d.Subset(perm[n1 : n1+n2]), d.Subset(perm[n1+n2:]), nil
}

// Align fits instance to n attributes: longer instances are truncated and
// shorter ones are zero-extended. The boolean reports whether a change was made.
func Align(instance []float64, n int) ([]float64, bool) {
	if n < 0 || len(instance) == n {
		return instance, false
	}
	if len(instance) > n {
		return instance[:n], true
	}
	out := make([]float64, n)
	copy(out, instance)
	return out, true
}
