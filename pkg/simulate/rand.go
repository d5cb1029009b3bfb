package simulate

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is a *rand.Rand safe for use by several dispatch workers.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand seeds a generator. A zero seed picks one from the clock.
func NewRand(seed int64) *Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// Intn returns a value in [0, n).
func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Intn(n)
}

// IntRange returns a value in [lo, hi], both ends inclusive.
func (r *Rand) IntRange(lo, hi int) int {
	return lo + r.Intn(hi-lo+1)
}

// Float64 returns a value in [0.0, 1.0).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}
