package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"zephyr-router/internal/config"
	"zephyr-router/internal/health"
	"zephyr-router/internal/idempotency"
	"zephyr-router/internal/processor"
	"zephyr-router/internal/routing"
	"zephyr-router/internal/types"
)

// ErrUnknownProcessor is returned by admin operations naming a processor id
// that is not part of the fleet.
var ErrUnknownProcessor = errors.New("processor not found")

// Engine coordinates one transaction end to end: idempotency check, routing
// decision, simulated execution, health recording, result caching. It owns
// none of the shared state; every collaborator is injected.
type Engine struct {
	cfg        config.Config
	processors map[string]*processor.Processor
	registry   *health.Registry
	router     *routing.Router
	store      idempotency.Store
	rng        processor.Rand
	now        func() time.Time
}

func New(cfg config.Config, fleet []*processor.Processor, registry *health.Registry, router *routing.Router, store idempotency.Store, rng processor.Rand) *Engine {
	processors := make(map[string]*processor.Processor, len(fleet))
	for _, proc := range fleet {
		processors[proc.ID] = proc
	}
	return &Engine{
		cfg:        cfg,
		processors: processors,
		registry:   registry,
		router:     router,
		store:      store,
		rng:        rng,
		now:        time.Now,
	}
}

// Process handles one transaction. Per call: exactly one health record, at
// most one idempotency write, and zero of either on a cache hit.
func (e *Engine) Process(ctx context.Context, req types.TransactionRequest) (*types.TransactionResult, error) {
	var reservation idempotency.Reservation
	if req.IdempotencyKey != "" {
		cached, res, err := e.store.ReserveOrGet(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup failed: %w", err)
		}
		if cached != nil {
			log.Infof("idempotent replay for key %s: returning cached transaction %s", req.IdempotencyKey, cached.TransactionID)
			return cached, nil
		}
		reservation = res
	}

	decision, err := e.router.Select()
	if err != nil {
		return nil, err
	}
	if decision.Probe {
		log.Infof("probing unhealthy processor %s for recovery", decision.Processor.ID)
	}

	status, procErr := decision.Processor.Process(e.rng)
	message := "Transaction approved"
	if procErr != nil {
		// A transient fault counts as a decline for health purposes and
		// never surfaces to the caller as an error.
		status = types.StatusDeclined
		message = fmt.Sprintf("Transaction declined: %v", procErr)
		log.Warnf("processor %s fault recovered as decline: %v", decision.Processor.ID, procErr)
	} else if status == types.StatusDeclined {
		message = "Transaction declined by processor"
	}

	if err := e.registry.Record(decision.Processor.ID, status == types.StatusApproved); err != nil {
		return nil, err
	}

	result := &types.TransactionResult{
		TransactionID: uuid.NewString(),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        status,
		ProcessorID:   decision.Processor.ID,
		ProcessorName: decision.Processor.Name,
		FeePercent:    decision.Processor.FeePercent,
		Message:       message,
		Timestamp:     e.now().UTC(),
	}
	if req.RequestID != "" {
		requestID := req.RequestID
		result.RequestID = &requestID
	}

	if reservation != nil {
		if err := reservation.Commit(ctx, result); err != nil {
			log.Errorf("failed to commit idempotency entry for key %s: %v", req.IdempotencyKey, err)
		}
	}
	return result, nil
}

// HealthReport builds the snapshot list served to health collaborators.
func (e *Engine) HealthReport() types.HealthReport {
	snapshots := e.registry.SnapshotAll()
	processors := make([]types.ProcessorHealth, 0, len(snapshots))
	for _, snapshot := range snapshots {
		proc := e.processors[snapshot.ProcessorID]
		processors = append(processors, types.ProcessorHealth{
			ProcessorID:      proc.ID,
			ProcessorName:    proc.Name,
			SuccessRate:      round4(snapshot.SuccessRate),
			Status:           snapshot.Status.String(),
			TotalAttempts:    snapshot.Attempts,
			TotalSuccesses:   snapshot.Successes,
			FeePercent:       proc.FeePercent,
			IsRoutingEnabled: snapshot.SuccessRate >= e.cfg.HealthThreshold,
		})
	}
	return types.HealthReport{
		Processors:      processors,
		HealthThreshold: e.cfg.HealthThreshold,
	}
}

// OverrideProbability pins a processor's success probability, clamped to
// [0, 1]. The outage simulation endpoint uses it with 0.10.
func (e *Engine) OverrideProbability(processorID string, rate float64) (types.SimulationResponse, error) {
	proc, ok := e.processors[processorID]
	if !ok {
		return types.SimulationResponse{}, fmt.Errorf("%w: %q", ErrUnknownProcessor, processorID)
	}
	proc.SetSuccessRate(rate)
	log.Warnf("outage simulated for processor %s at rate %.2f", processorID, proc.SuccessRate())
	return types.SimulationResponse{
		Message:     fmt.Sprintf("Outage simulated for %s", proc.Name),
		ProcessorID: proc.ID,
		SuccessRate: proc.SuccessRate(),
	}, nil
}

// RestoreProbability returns a processor's probability to its baseline.
func (e *Engine) RestoreProbability(processorID string) (types.SimulationResponse, error) {
	proc, ok := e.processors[processorID]
	if !ok {
		return types.SimulationResponse{}, fmt.Errorf("%w: %q", ErrUnknownProcessor, processorID)
	}
	proc.Restore()
	log.Infof("processor %s recovered", processorID)
	return types.SimulationResponse{
		Message:     fmt.Sprintf("Processor %s recovered", proc.Name),
		ProcessorID: proc.ID,
		SuccessRate: proc.SuccessRate(),
	}, nil
}

// Reset restores every processor baseline, clears all health windows and
// idempotency entries, and restarts probe scheduling.
func (e *Engine) Reset(ctx context.Context) error {
	for _, proc := range e.processors {
		proc.Restore()
	}
	e.registry.Reset()
	if err := e.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to clear idempotency store: %w", err)
	}
	e.router.ResetCounter()
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
