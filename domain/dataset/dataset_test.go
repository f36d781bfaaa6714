package dataset

import (
	"math/rand"
	"sort"
	"testing"

	"gocp/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLabelsSortsAndDeduplicates(t *testing.T) {
	labels := NewLabels([]float64{2, 0, 1, 2, 0, 1, 1})

	assert.Equal(t, []float64{0, 1, 2}, labels.Values())
	assert.Equal(t, 3, labels.Len())
	for i := 0; i < labels.Len(); i++ {
		idx, ok := labels.Index(labels.At(i))
		assert.True(t, ok)
		assert.Equal(t, i, idx)
	}
	_, ok := labels.Index(7)
	assert.False(t, ok)
	assert.True(t, labels.Equal(NewLabels([]float64{1, 2, 0})))
	assert.False(t, labels.Equal(NewLabels([]float64{1, 2})))
}

func TestFromRows(t *testing.T) {
	ds, err := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}}, []float64{0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Rows())
	assert.Equal(t, 2, ds.Columns())
	assert.Equal(t, []float64{3, 4}, ds.Row(1))

	_, err = FromRows([][]float64{{1, 2}, {3}}, []float64{0, 1})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = FromRows([][]float64{{1, 2}}, []float64{0, 1})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	empty, err := FromRows(nil, nil)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestPartitionIsDisjointAndComplete(t *testing.T) {
	rows := make([][]float64, 100)
	y := make([]float64, 100)
	for i := range rows {
		rows[i] = []float64{float64(i)}
		y[i] = float64(i)
	}
	ds, err := FromRows(rows, y)
	require.NoError(t, err)

	train, cal, test, err := ds.Partition(rand.New(rand.NewSource(7)), 0.5, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 50, train.Rows())
	assert.Equal(t, 30, cal.Rows())
	assert.Equal(t, 20, test.Rows())

	var all []float64
	for _, part := range []DataSet{train, cal, test} {
		for i := 0; i < part.Rows(); i++ {
			assert.Equal(t, part.Y[i], part.Row(i)[0], "row and target must travel together")
		}
		all = append(all, part.Y...)
	}
	sort.Float64s(all)
	assert.Equal(t, y, all)

	_, _, _, err = ds.Partition(rand.New(rand.NewSource(7)), 0.8, 0.3)
	assert.Error(t, err)
}

func TestAlign(t *testing.T) {
	tests := []struct {
		name    string
		in      []float64
		n       int
		want    []float64
		changed bool
	}{
		{"exact", []float64{1, 2}, 2, []float64{1, 2}, false},
		{"truncate", []float64{1, 2, 3}, 2, []float64{1, 2}, true},
		{"extend", []float64{1}, 3, []float64{1, 0, 0}, true},
		{"unknown width", []float64{1}, -1, []float64{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Align(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ds, err := FromRows([][]float64{{1}, {2}}, []float64{0, 1})
	require.NoError(t, err)
	c := ds.Clone()
	c.X.Set(0, 0, 99)
	c.Y[0] = 5
	assert.Equal(t, 1.0, ds.X.At(0, 0))
	assert.Equal(t, 0.0, ds.Y[0])
}
