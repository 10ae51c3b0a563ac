package routing

import (
	"errors"
	"sort"
	"sync/atomic"

	"zephyr-router/internal/health"
	"zephyr-router/internal/processor"
)

// ErrNoProcessors means the router was built with an empty fleet. There is
// nothing to route to, so this is fatal at construction, never retried.
var ErrNoProcessors = errors.New("no processors registered")

// Rand picks probe targets. Seeded implementations keep probe selection
// reproducible.
type Rand interface {
	Intn(n int) int
}

// Decision is one routing outcome. Probe marks a deliberate transaction to
// an otherwise-excluded processor to test for recovery.
type Decision struct {
	Processor *processor.Processor
	Probe     bool
}

// Router picks a processor per transaction based on live health snapshots.
//
// Order of application: every probe_interval-th decision goes to a random
// unhealthy processor, otherwise the cheapest non-unhealthy processor wins,
// and when every processor is unhealthy the one with the best current rate
// takes the traffic. Ties break by processor id ascending so decisions stay
// reproducible.
//
// Probing is fixed-interval rather than backed off: a recovered processor
// is rediscovered within at most probe_interval transactions no matter how
// long the outage lasted.
type Router struct {
	processors    []*processor.Processor
	registry      *health.Registry
	rng           Rand
	probeInterval int64
	counter       atomic.Int64
}

func New(processors []*processor.Processor, registry *health.Registry, rng Rand, probeInterval int) (*Router, error) {
	if len(processors) == 0 {
		return nil, ErrNoProcessors
	}
	ordered := make([]*processor.Processor, len(processors))
	copy(ordered, processors)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})
	return &Router{
		processors:    ordered,
		registry:      registry,
		rng:           rng,
		probeInterval: int64(probeInterval),
	}, nil
}

// Select picks a processor for the next transaction. The shared counter
// advances exactly once per call, whichever path the decision takes, so
// probe spacing is measured in total routing decisions.
func (r *Router) Select() (Decision, error) {
	count := r.counter.Add(1)

	eligible := make([]*processor.Processor, 0, len(r.processors))
	unhealthy := make([]*processor.Processor, 0, len(r.processors))
	rates := make(map[string]float64, len(r.processors))

	for _, proc := range r.processors {
		snapshot, err := r.registry.Snapshot(proc.ID)
		if err != nil {
			return Decision{}, err
		}
		rates[proc.ID] = snapshot.SuccessRate
		if snapshot.Status == health.StatusUnhealthy {
			unhealthy = append(unhealthy, proc)
		} else {
			eligible = append(eligible, proc)
		}
	}

	if len(unhealthy) > 0 && count%r.probeInterval == 0 {
		return Decision{
			Processor: unhealthy[r.rng.Intn(len(unhealthy))],
			Probe:     true,
		}, nil
	}

	if len(eligible) > 0 {
		cheapest := eligible[0]
		for _, proc := range eligible[1:] {
			if proc.FeePercent < cheapest.FeePercent {
				cheapest = proc
			}
		}
		return Decision{Processor: cheapest}, nil
	}

	// Every processor is unhealthy: route to the least bad one rather than
	// rejecting the transaction outright.
	best := r.processors[0]
	for _, proc := range r.processors[1:] {
		if rates[proc.ID] > rates[best.ID] {
			best = proc
		}
	}
	return Decision{Processor: best}, nil
}

// Counter reports how many routing decisions have been made.
func (r *Router) Counter() int64 {
	return r.counter.Load()
}

// ResetCounter restarts probe scheduling from zero.
func (r *Router) ResetCounter() {
	r.counter.Store(0)
}
