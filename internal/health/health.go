package health

import (
	"fmt"
	"sort"
	"sync"
)

// Status classifies a processor by its windowed success rate. Higher rank
// means healthier; comparisons go through the rank, never the label.
type Status int

const (
	StatusUnhealthy Status = iota
	StatusDegraded
	StatusHealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// Snapshot is derived from the window contents at query time; it is never
// cached. Attempts and Successes are window-scoped, not lifetime totals.
type Snapshot struct {
	ProcessorID string
	SuccessRate float64
	Status      Status
	Attempts    int
	Successes   int
}

// Tracker keeps one bounded FIFO window of outcomes for a single processor.
// All methods serialize on the tracker's own mutex, so trackers for
// different processors never contend with each other.
type Tracker struct {
	processorID       string
	healthThreshold   float64
	degradedThreshold float64

	mu        sync.Mutex
	window    []bool
	head      int
	length    int
	successes int
}

func NewTracker(processorID string, windowSize int, healthThreshold, degradedThreshold float64) *Tracker {
	return &Tracker{
		processorID:       processorID,
		healthThreshold:   healthThreshold,
		degradedThreshold: degradedThreshold,
		window:            make([]bool, windowSize),
	}
}

// Record appends an outcome, evicting the oldest entry once the window
// is full.
func (t *Tracker) Record(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.length < len(t.window) {
		t.window[(t.head+t.length)%len(t.window)] = success
		t.length++
	} else {
		if t.window[t.head] {
			t.successes--
		}
		t.window[t.head] = success
		t.head = (t.head + 1) % len(t.window)
	}
	if success {
		t.successes++
	}
}

// Snapshot recomputes rate and status from the current window. An empty
// window reads as rate 1.0: new processors are trusted until proven
// otherwise.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	rate := 1.0
	if t.length > 0 {
		rate = float64(t.successes) / float64(t.length)
	}
	return Snapshot{
		ProcessorID: t.processorID,
		SuccessRate: rate,
		Status:      t.classify(rate),
		Attempts:    t.length,
		Successes:   t.successes,
	}
}

// Reset clears the window back to the empty baseline.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.head = 0
	t.length = 0
	t.successes = 0
}

func (t *Tracker) classify(rate float64) Status {
	switch {
	case rate >= t.degradedThreshold:
		return StatusHealthy
	case rate >= t.healthThreshold:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Registry owns one Tracker per registered processor id. The tracker set is
// fixed at construction; only window contents mutate afterwards.
type Registry struct {
	trackers map[string]*Tracker
}

func NewRegistry(processorIDs []string, windowSize int, healthThreshold, degradedThreshold float64) *Registry {
	trackers := make(map[string]*Tracker, len(processorIDs))
	for _, pid := range processorIDs {
		trackers[pid] = NewTracker(pid, windowSize, healthThreshold, degradedThreshold)
	}
	return &Registry{trackers: trackers}
}

func (r *Registry) Record(processorID string, success bool) error {
	tracker, ok := r.trackers[processorID]
	if !ok {
		return fmt.Errorf("unknown processor %q", processorID)
	}
	tracker.Record(success)
	return nil
}

func (r *Registry) Snapshot(processorID string) (Snapshot, error) {
	tracker, ok := r.trackers[processorID]
	if !ok {
		return Snapshot{}, fmt.Errorf("unknown processor %q", processorID)
	}
	return tracker.Snapshot(), nil
}

// SnapshotAll returns every tracker's snapshot ordered by processor id.
func (r *Registry) SnapshotAll() []Snapshot {
	snapshots := make([]Snapshot, 0, len(r.trackers))
	for _, tracker := range r.trackers {
		snapshots = append(snapshots, tracker.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ProcessorID < snapshots[j].ProcessorID
	})
	return snapshots
}

func (r *Registry) ResetTracker(processorID string) error {
	tracker, ok := r.trackers[processorID]
	if !ok {
		return fmt.Errorf("unknown processor %q", processorID)
	}
	tracker.Reset()
	return nil
}

// Reset clears every tracker back to the empty-window baseline.
func (r *Registry) Reset() {
	for _, tracker := range r.trackers {
		tracker.Reset()
	}
}
