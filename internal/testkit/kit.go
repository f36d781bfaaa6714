// Package testkit provides deterministic fixtures for exercising conformal
// predictors: seeded random streams, synthetic data and small reference
// learners.
package testkit

import (
	"context"
	"math/rand"

	"gocp/adapters/rng"
	"gocp/domain/dataset"
	"gocp/ports"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	seed int64
	rng  *rng.Adapter
}

// NewTestKit creates a kit whose streams all derive from seed.
func NewTestKit(seed int64) *TestKit {
	return &TestKit{seed: seed, rng: rng.NewAdapter()}
}

// RNGAdapter returns the seeded RNG port
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return t.rng
}

// Stream returns a deterministic generator for a named fixture.
func (t *TestKit) Stream(name string) *rand.Rand {
	r, _ := t.rng.SeededStream(context.Background(), name, t.seed)
	return r
}

// Source returns a deterministic concurrency-safe source for a named fixture.
func (t *TestKit) Source(name string) ports.RandomSource {
	src, _ := t.rng.Source(context.Background(), name, t.seed)
	return src
}

// GaussianBlobs draws perClass points around each center with isotropic
// spread sigma. Row labels are the class indices 0..len(centers)-1.
func (t *TestKit) GaussianBlobs(name string, perClass int, centers [][]float64, sigma float64) dataset.DataSet {
	r := t.Stream(name)
	dims := len(centers[0])
	rows := make([][]float64, 0, perClass*len(centers))
	y := make([]float64, 0, perClass*len(centers))
	for k, center := range centers {
		for i := 0; i < perClass; i++ {
			row := make([]float64, dims)
			for j := range row {
				row[j] = normal(r, center[j], sigma)
			}
			rows = append(rows, row)
			y = append(y, float64(k))
		}
	}
	shuffle(r, rows, y)
	ds, _ := dataset.FromRows(rows, y)
	return ds
}

// TwoBlobs is a well separated binary problem in two dimensions.
func (t *TestKit) TwoBlobs(name string, perClass int) dataset.DataSet {
	return t.GaussianBlobs(name, perClass, [][]float64{{-2, 0}, {2, 0}}, 1)
}

// ThreeBlobs is an overlapping three-class problem in two dimensions.
func (t *TestKit) ThreeBlobs(name string, perClass int) dataset.DataSet {
	return t.GaussianBlobs(name, perClass, [][]float64{{0, 0}, {2, 2}, {-2, 2}}, 1)
}

// LinearData draws y = w.x + intercept + N(0, noise) with x uniform in [-1, 1].
func (t *TestKit) LinearData(name string, n int, weights []float64, intercept, noise float64) dataset.DataSet {
	r := t.Stream(name)
	rows := make([][]float64, n)
	y := make([]float64, n)
	for i := range rows {
		row := make([]float64, len(weights))
		target := intercept
		for j := range row {
			row[j] = 2*r.Float64() - 1
			target += weights[j] * row[j]
		}
		rows[i] = row
		y[i] = target + normal(r, 0, noise)
	}
	ds, _ := dataset.FromRows(rows, y)
	return ds
}

// Coverage returns the fraction of true values in hits.
func Coverage(hits []bool) float64 {
	if len(hits) == 0 {
		return 0
	}
	xs := make([]float64, len(hits))
	for i, h := range hits {
		if h {
			xs[i] = 1
		}
	}
	return stat.Mean(xs, nil)
}

// Rows returns the data set rows as slices, for table-style assertions.
func Rows(x mat.Matrix) [][]float64 {
	r, _ := x.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, x)
	}
	return out
}

// normal draws through the inverse CDF so a single seeded uniform stream drives every fixture.
func normal(r *rand.Rand, mu, sigma float64) float64 {
	u := r.Float64()
	for u == 0 {
		u = r.Float64()
	}
	return distuv.Normal{Mu: mu, Sigma: sigma}.Quantile(u)
}

func shuffle(r *rand.Rand, rows [][]float64, y []float64) {
	r.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
		y[i], y[j] = y[j], y[i]
	})
}
