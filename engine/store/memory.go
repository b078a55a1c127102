// Package store provides Repositories implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/strike-engine/engine"
)

// =============================================================================
// MEMORY REPOSITORIES - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	plans       map[engine.PlanID]engine.Plan
	counters    map[engine.CounterID]engine.Counter
	links       map[engine.LinkID]engine.AllianceLink
	targets     map[engine.TargetID]engine.Target
	assignments map[engine.AssignmentID]engine.Assignment
	squads      map[engine.SquadID]engine.Squad
}

func NewMemory() *Memory {
	return &Memory{
		plans:       make(map[engine.PlanID]engine.Plan),
		counters:    make(map[engine.CounterID]engine.Counter),
		links:       make(map[engine.LinkID]engine.AllianceLink),
		targets:     make(map[engine.TargetID]engine.Target),
		assignments: make(map[engine.AssignmentID]engine.Assignment),
		squads:      make(map[engine.SquadID]engine.Squad),
	}
}

var _ engine.TxRepositories = (*Memory)(nil)

// -----------------------------------------------------------------------------
// Plans
// -----------------------------------------------------------------------------

func (m *Memory) SavePlan(_ context.Context, plan engine.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = plan
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id engine.PlanID) (*engine.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.plans[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) ListPlans(_ context.Context) ([]engine.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListPlansByStatus(_ context.Context, status engine.PlanStatus) ([]engine.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Plan
	for _, p := range m.plans {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// -----------------------------------------------------------------------------
// Counters
// -----------------------------------------------------------------------------

func (m *Memory) SaveCounter(_ context.Context, counter engine.Counter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[counter.ID] = counter
	return nil
}

func (m *Memory) GetCounter(_ context.Context, id engine.CounterID) (*engine.Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.counters[id]; ok {
		cp := c
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) ListCounters(_ context.Context) ([]engine.Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Counter, 0, len(m.counters))
	for _, c := range m.counters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) FindActiveCounterByAggressor(_ context.Context, aggressor engine.NationID) (*engine.Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.counters {
		if c.AggressorID == aggressor && !c.IsArchived() {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

// -----------------------------------------------------------------------------
// Alliance links
// -----------------------------------------------------------------------------

func (m *Memory) SaveLink(_ context.Context, link engine.AllianceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.ID] = link
	return nil
}

func (m *Memory) DeleteLink(_ context.Context, id engine.LinkID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, id)
	return nil
}

func (m *Memory) ListLinksByPlan(_ context.Context, planID engine.PlanID) ([]engine.AllianceLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.AllianceLink
	for _, l := range m.links {
		if l.PlanID == planID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListLinksByRole(ctx context.Context, planID engine.PlanID, role engine.AllianceRole) ([]engine.AllianceLink, error) {
	all, err := m.ListLinksByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	var out []engine.AllianceLink
	for _, l := range all {
		if l.Role == role {
			out = append(out, l)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Targets
// -----------------------------------------------------------------------------

func (m *Memory) SaveTarget(_ context.Context, target engine.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[target.ID] = target
	return nil
}

func (m *Memory) GetTarget(_ context.Context, id engine.TargetID) (*engine.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.targets[id]; ok {
		cp := t
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) FindTargetByPlanAndNation(_ context.Context, planID engine.PlanID, nation engine.NationID) (*engine.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.targets {
		if t.PlanID == planID && t.NationID == nation {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListTargetsByPlan(_ context.Context, planID engine.PlanID) ([]engine.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Target
	for _, t := range m.targets {
		if t.PlanID == planID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteTarget(_ context.Context, id engine.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, id)
	return nil
}

// -----------------------------------------------------------------------------
// Assignments
// -----------------------------------------------------------------------------

func (m *Memory) SaveAssignment(_ context.Context, assignment engine.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, id engine.AssignmentID) (*engine.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.assignments[id]; ok {
		cp := a
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) FindByTargetAndNation(_ context.Context, targetID engine.TargetID, nation engine.NationID) (*engine.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments {
		if a.TargetID == targetID && a.FriendlyNationID == nation {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindByCounterAndNation(_ context.Context, counterID engine.CounterID, nation engine.NationID) (*engine.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments {
		if a.CounterID != nil && *a.CounterID == counterID && a.FriendlyNationID == nation {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListByPlan(_ context.Context, planID engine.PlanID) ([]engine.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Assignment
	for _, a := range m.assignments {
		if a.PlanID != nil && *a.PlanID == planID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListByTarget(_ context.Context, targetID engine.TargetID) ([]engine.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Assignment
	for _, a := range m.assignments {
		if a.TargetID == targetID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListByCounter(_ context.Context, counterID engine.CounterID) ([]engine.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Assignment
	for _, a := range m.assignments {
		if a.CounterID != nil && *a.CounterID == counterID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteAssignment(_ context.Context, id engine.AssignmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments, id)
	return nil
}

// -----------------------------------------------------------------------------
// Squads
// -----------------------------------------------------------------------------

func (m *Memory) SaveSquad(_ context.Context, squad engine.Squad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.squads[squad.ID] = squad
	return nil
}

func (m *Memory) ListSquadsByPlan(_ context.Context, planID engine.PlanID) ([]engine.Squad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Squad
	for _, s := range m.squads {
		if s.PlanID == planID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (m *Memory) DeleteSquadsByPlan(_ context.Context, planID engine.PlanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.squads {
		if s.PlanID == planID {
			delete(m.squads, id)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback on error
// =============================================================================

// WithTx simulates a transaction by snapshotting state and restoring it when
// fn fails. The inner view reuses the Memory methods directly; the outer lock
// is not held so fn can call them.
func (m *Memory) WithTx(ctx context.Context, fn func(engine.Repositories) error) error {
	snapshot := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	plans       map[engine.PlanID]engine.Plan
	counters    map[engine.CounterID]engine.Counter
	links       map[engine.LinkID]engine.AllianceLink
	targets     map[engine.TargetID]engine.Target
	assignments map[engine.AssignmentID]engine.Assignment
	squads      map[engine.SquadID]engine.Squad
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memorySnapshot{
		plans:       copyMap(m.plans),
		counters:    copyMap(m.counters),
		links:       copyMap(m.links),
		targets:     copyMap(m.targets),
		assignments: copyMap(m.assignments),
		squads:      copyMap(m.squads),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = s.plans
	m.counters = s.counters
	m.links = s.links
	m.targets = s.targets
	m.assignments = s.assignments
	m.squads = s.squads
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
