// Package policy holds the random decisions made by the simulator and the
// risk scorer, behind an interface so tests can script them.
package policy

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"simguard/internal/registry"
)

// Tier is the coarse risk score returned for a sim.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// Policy makes every random choice in the service.
type Policy interface {
	// Interval returns a wait uniformly drawn from [min, max].
	Interval(min, max time.Duration) time.Duration
	// SwapBranch reports whether the simulator should stage a swap attempt
	// rather than a new registration.
	SwapBranch() bool
	// PickSim returns an index in [0, n).
	PickSim(n int) int
	// NewNumber returns a phone number for a simulated registration.
	NewNumber() string
	// NewRisk returns the risk tier for a simulated registration.
	NewRisk() registry.Risk
	// RiskTier draws a score for the risk query.
	RiskTier() Tier
	// CaseRef returns a five digit case reference.
	CaseRef() int
}

// Weights used by Random.
const (
	SwapProbability = 0.6
	lowWeight       = 60
	mediumWeight    = 30
	highWeight      = 10
)

// Random is the production Policy. It is safe for concurrent use.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var _ Policy = (*Random)(nil)

// NewRandom seeds a Random policy. A zero seed picks one from the clock.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Random) Interval(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + time.Duration(r.rng.Int64N(int64(max-min)+1))
}

func (r *Random) SwapBranch() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < SwapProbability
}

func (r *Random) PickSim(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func (r *Random) NewNumber() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("07%d", 100000000+r.rng.IntN(900000000))
}

func (r *Random) NewRisk() registry.Risk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []registry.Risk{registry.RiskLow, registry.RiskMedium, registry.RiskHigh}[r.rng.IntN(3)]
}

func (r *Random) RiskTier() Tier {
	r.mu.Lock()
	n := r.rng.IntN(lowWeight + mediumWeight + highWeight)
	r.mu.Unlock()
	switch {
	case n < lowWeight:
		return TierLow
	case n < lowWeight+mediumWeight:
		return TierMedium
	default:
		return TierHigh
	}
}

func (r *Random) CaseRef() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return 10000 + r.rng.IntN(90000)
}
