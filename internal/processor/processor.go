package processor

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"zephyr-router/internal/types"
)

// ErrTransientFault is the simulated execution failure a processor can raise
// instead of a clean approve/decline. Callers recover it locally; it never
// reaches a client.
var ErrTransientFault = errors.New("transient processor error")

// Rand is the random source a processor draws outcomes from. Seeded
// implementations keep simulations reproducible.
type Rand interface {
	Float64() float64
}

// Processor is a mock payment backend: stable identity plus a mutable
// success probability that admin collaborators can override.
type Processor struct {
	ID              string
	Name            string
	BaseSuccessRate float64
	FeePercent      float64

	mu          sync.RWMutex
	successRate float64
	errorRate   float64
}

func New(id, name string, baseSuccessRate, feePercent float64) *Processor {
	return &Processor{
		ID:              id,
		Name:            name,
		BaseSuccessRate: baseSuccessRate,
		FeePercent:      feePercent,
		successRate:     baseSuccessRate,
	}
}

func (p *Processor) SuccessRate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.successRate
}

// SetSuccessRate overrides the current probability, clamped to [0, 1].
func (p *Processor) SetSuccessRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.successRate = min(1.0, max(0.0, rate))
}

// Restore returns the probability to its configured baseline.
func (p *Processor) Restore() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.successRate = p.BaseSuccessRate
}

// SetErrorRate sets the probability of a simulated transient fault,
// clamped to [0, 1].
func (p *Processor) SetErrorRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorRate = min(1.0, max(0.0, rate))
}

// Process draws one outcome from the current probabilities.
func (p *Processor) Process(rng Rand) (types.TransactionStatus, error) {
	p.mu.RLock()
	errorRate := p.errorRate
	successRate := p.successRate
	p.mu.RUnlock()

	if errorRate > 0 && rng.Float64() < errorRate {
		return "", fmt.Errorf("%s: %w", p.ID, ErrTransientFault)
	}
	if rng.Float64() < successRate {
		return types.StatusApproved, nil
	}
	return types.StatusDeclined, nil
}

// DefaultFleet returns the stock processor set used by the demo deployment.
func DefaultFleet() []*Processor {
	return []*Processor{
		New("processor_a", "PayFlow Pro", 0.85, 2.9),
		New("processor_b", "GlobalPay", 0.90, 3.1),
		New("processor_c", "QuickCharge", 0.80, 2.7),
	}
}

// LockedRand is a seedable random source safe for concurrent use.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *LockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
