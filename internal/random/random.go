// Package random isolates randomness behind a small interface so shuffles and
// the battle opponent can be replayed deterministically in tests.
package random

import (
	"math/rand"
	"sync"
	"time"
)

// Source yields uniformly distributed values.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n). It panics if n <= 0.
	Intn(n int) int
}

// lockedSource makes a math/rand generator safe for concurrent sessions.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Source seeded with seed, or with the current time when seed is 0.
func New(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// Shuffle returns a shuffled copy of items (Fisher-Yates). The input is not modified.
func Shuffle[T any](src Source, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Between returns a duration uniformly distributed in [min, max].
func Between(src Source, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(src.Float64()*float64(max-min))
}
