package rng

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"gocp/ports"
)

// LockedSource is a mutex-guarded *rand.Rand usable from many goroutines.
type LockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedSource creates a deterministic concurrency-safe source.
func NewLockedSource(seed int64) *LockedSource {
	return &LockedSource{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededSource creates a source seeded from the wall clock.
func NewTimeSeededSource() *LockedSource {
	return NewLockedSource(time.Now().UnixNano())
}

// Float64 returns a uniform draw in [0, 1).
func (s *LockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Adapter implements ports.RNGPort. Streams are keyed by name so that two
// operations sharing a base seed still draw independent sequences.
type Adapter struct{}

var _ ports.RNGPort = (*Adapter)(nil)

// NewAdapter returns the seeded RNG adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (a *Adapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(streamSeed(name, seed))), nil
}

// Source returns a concurrency-safe source for a named operation. A zero
// seed asks for a clock-seeded source.
func (a *Adapter) Source(ctx context.Context, name string, seed int64) (ports.RandomSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seed == 0 {
		return NewTimeSeededSource(), nil
	}
	return NewLockedSource(streamSeed(name, seed)), nil
}

func streamSeed(name string, seed int64) int64 {
	if name == "" {
		return seed
	}
	return int64(hashString(name)) + seed
}

func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2
	}
	return hash
}
