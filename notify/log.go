/*
Package notify provides dispatcher implementations for finalized rosters.

PURPOSE:
  When a plan publishes or a counter finalizes, the assignment set is handed
  to a Dispatcher exactly once. This package ships two implementations:

  - Log: writes a summary to the process log. Always safe; the default.
  - Webhook: POSTs the roster as JSON to an external endpoint when the
    external-alert channel is selected.

  Fanout combines dispatchers so one publish can hit several channels.

SEE ALSO:
  - engine/notify.go: Dispatcher contract and channel selection
  - plan/service.go, counter/service.go: The two call sites
*/
package notify

import (
	"context"
	"log"

	"github.com/warp/strike-engine/engine"
)

// =============================================================================
// LOG DISPATCHER
// =============================================================================

// Log writes each notification as a single summary line.
type Log struct{}

var _ engine.Dispatcher = (*Log)(nil)

func NewLog() *Log { return &Log{} }

func (l *Log) Dispatch(_ context.Context, n engine.Notification) error {
	scope := "plan"
	id := ""
	switch {
	case n.PlanID != nil:
		id = string(*n.PlanID)
	case n.CounterID != nil:
		scope = "counter"
		id = string(*n.CounterID)
	}
	log.Printf("[Notify] %s %s: %q (%d assignments, in_game=%v external=%v room=%v)",
		scope, id, n.Subject, len(n.Assignments),
		n.Channels.InGame, n.Channels.ExternalAlert, n.Channels.CreateDiscussionRoom)
	return nil
}

// =============================================================================
// FANOUT
// =============================================================================

// Fanout forwards each notification to every dispatcher. The first error is
// returned after all dispatchers have been tried.
type Fanout struct {
	Dispatchers []engine.Dispatcher
}

var _ engine.Dispatcher = (*Fanout)(nil)

func NewFanout(dispatchers ...engine.Dispatcher) *Fanout {
	return &Fanout{Dispatchers: dispatchers}
}

func (f *Fanout) Dispatch(ctx context.Context, n engine.Notification) error {
	var first error
	for _, d := range f.Dispatchers {
		if err := d.Dispatch(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
