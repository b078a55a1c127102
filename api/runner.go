/*
runner.go - In-process task queue and background worker

PURPOSE:
  Executes enqueued bulk jobs (priority recomputation, bulk auto-pick)
  off the request path. Enqueue returns immediately; a single worker
  goroutine drains the queue in order.

DESIGN:
  - Buffered channel as the queue; Enqueue fails fast when full
  - One worker goroutine with stop channel + WaitGroup shutdown
  - Failed jobs are retried with backoff; handlers are idempotent
    (auto-pick upserts by uniqueness, recompute overwrites scores),
    so a retry after partial completion is safe

USAGE:
  runner := NewRunner(plans, counters)
  runner.Start()
  // ... later
  runner.Stop()

SEE ALSO:
  - engine/jobs.go: Job kinds and payload shapes
  - plan/service.go, counter/service.go: Job handlers
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/strike-engine/counter"
	"github.com/warp/strike-engine/engine"
	"github.com/warp/strike-engine/plan"
)

// =============================================================================
// RUNNER
// =============================================================================

const (
	defaultQueueDepth = 256
	maxJobAttempts    = 3
	retryBackoff      = 2 * time.Second
)

type job struct {
	Kind    engine.JobKind
	Payload []byte
}

// Runner is the in-process TaskQueue implementation.
type Runner struct {
	Plans    *plan.Service
	Counters *counter.Service

	jobs chan job
	stop chan bool
	wg   sync.WaitGroup
	mu   sync.Mutex

	started bool
}

var _ engine.TaskQueue = (*Runner)(nil)

// NewRunner creates a runner with the default queue depth.
func NewRunner(plans *plan.Service, counters *counter.Service) *Runner {
	return &Runner{
		Plans:    plans,
		Counters: counters,
		jobs:     make(chan job, defaultQueueDepth),
		stop:     make(chan bool),
	}
}

// Enqueue queues a job for background execution. It never blocks; a full
// queue is reported as an error so the caller can surface it.
func (rn *Runner) Enqueue(_ context.Context, kind engine.JobKind, payload []byte) error {
	select {
	case rn.jobs <- job{Kind: kind, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("task queue full (%d pending)", cap(rn.jobs))
	}
}

// Start begins the worker goroutine.
func (rn *Runner) Start() {
	rn.mu.Lock()
	defer rn.mu.Unlock()

	if rn.started {
		return
	}
	rn.started = true
	rn.wg.Add(1)

	go rn.run()

	log.Printf("[Runner] Started with queue depth %d", cap(rn.jobs))
}

// Stop drains nothing: pending jobs are abandoned, running jobs finish.
func (rn *Runner) Stop() {
	rn.mu.Lock()
	defer rn.mu.Unlock()

	if !rn.started {
		return
	}
	close(rn.stop)
	rn.wg.Wait()
	rn.started = false
	log.Println("[Runner] Stopped")
}

func (rn *Runner) run() {
	defer rn.wg.Done()

	for {
		select {
		case j := <-rn.jobs:
			rn.execute(j)
		case <-rn.stop:
			return
		}
	}
}

func (rn *Runner) execute(j job) {
	ctx := context.Background()

	var err error
	for attempt := 1; attempt <= maxJobAttempts; attempt++ {
		err = rn.dispatch(ctx, j)
		if err == nil {
			return
		}
		log.Printf("[Runner] Job %s attempt %d/%d failed: %v", j.Kind, attempt, maxJobAttempts, err)
		if attempt < maxJobAttempts {
			select {
			case <-time.After(retryBackoff * time.Duration(attempt)):
			case <-rn.stop:
				return
			}
		}
	}
	log.Printf("[Runner] Job %s dropped after %d attempts: %v", j.Kind, maxJobAttempts, err)
}

func (rn *Runner) dispatch(ctx context.Context, j job) error {
	switch j.Kind {
	case engine.JobRecomputePriorities:
		var p engine.RecomputePrioritiesPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		return rn.Plans.RecomputePriorities(ctx, p.PlanID)

	case engine.JobAutoPickPlan:
		var p engine.AutoPickPlanPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		return rn.Plans.AutoPick(ctx, p.PlanID, p.TargetID, p.Mode)

	case engine.JobAutoPickCounter:
		var p engine.AutoPickCounterPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		return rn.Counters.AutoPick(ctx, p.CounterID, engine.EvalAuto)

	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
}
