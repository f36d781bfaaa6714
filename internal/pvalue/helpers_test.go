package pvalue

import (
	"math"
	"sort"
)

func nan() float64 { return math.NaN() }

func sortFloats(xs []float64) { sort.Float64s(xs) }
