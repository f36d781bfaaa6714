package ports

import (
	"context"
	"math/rand"
)

// RandomSource yields uniform draws in [0, 1). Implementations used by the
// p-value engine must be safe for concurrent use.
type RandomSource interface {
	Float64() float64
}

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Source returns a concurrency-safe random source for a named operation
	Source(ctx context.Context, name string, seed int64) (RandomSource, error)
}
