package device

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimulatedUsage produces synthetic usage increments drawn uniformly from [0, max].
type SimulatedUsage struct {
	mu  sync.Mutex
	rng *rand.Rand
	max time.Duration
}

// NewSimulatedUsage creates a usage source. A zero seed picks a random one.
func NewSimulatedUsage(seed int64, max time.Duration) *SimulatedUsage {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedUsage{rng: rand.New(rand.NewSource(seed)), max: max}
}

// Increment returns the usage accrued by app since the previous tick.
func (s *SimulatedUsage) Increment(ctx context.Context, app string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.max <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.rng.Int63n(s.max.Milliseconds() + 1)
	return time.Duration(ms) * time.Millisecond, nil
}

// FixedUsage returns the same increment for every app. Useful for deterministic runs.
type FixedUsage time.Duration

// Increment implements the usage provider contract.
func (f FixedUsage) Increment(ctx context.Context, app string) (time.Duration, error) {
	return time.Duration(f), ctx.Err()
}
