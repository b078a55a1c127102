/*
store.go - Repository interfaces between domain logic and persistence

PURPOSE:
  One explicit repository per entity, with typed query methods. No relation
  is lazy - every load is an explicit call. Implementations exist for SQLite
  (store/sqlite) and in-memory (engine/store).

TRANSACTIONS:
  TxRepositories.WithTx runs a function against a transactional view of all
  repositories. The squad rebuild (destroy-and-recreate) and publish/finalize
  transitions run inside one such unit per plan so a concurrent reader never
  observes a half-rebuilt plan.

ARCHIVAL:
  Plans and counters are never deleted. Only derived squads (and individual
  assignments, at operator request) have delete methods.

SEE ALSO:
  - store/sqlite/sqlite.go: Production implementation
  - engine/store/memory.go: In-memory implementation for tests
*/
package engine

import "context"

// =============================================================================
// PER-ENTITY REPOSITORIES
// =============================================================================

type PlanRepository interface {
	// SavePlan inserts or updates a plan by ID.
	SavePlan(ctx context.Context, plan Plan) error

	// GetPlan returns nil when the plan does not exist.
	GetPlan(ctx context.Context, id PlanID) (*Plan, error)

	ListPlans(ctx context.Context) ([]Plan, error)
	ListPlansByStatus(ctx context.Context, status PlanStatus) ([]Plan, error)
}

type CounterRepository interface {
	SaveCounter(ctx context.Context, counter Counter) error
	GetCounter(ctx context.Context, id CounterID) (*Counter, error)
	ListCounters(ctx context.Context) ([]Counter, error)

	// FindActiveCounterByAggressor returns the non-archived counter for an
	// aggressor, or nil. At most one may exist (uniqueness invariant).
	FindActiveCounterByAggressor(ctx context.Context, aggressor NationID) (*Counter, error)
}

type AllianceLinkRepository interface {
	SaveLink(ctx context.Context, link AllianceLink) error
	DeleteLink(ctx context.Context, id LinkID) error
	ListLinksByPlan(ctx context.Context, planID PlanID) ([]AllianceLink, error)
	ListLinksByRole(ctx context.Context, planID PlanID, role AllianceRole) ([]AllianceLink, error)
}

type TargetRepository interface {
	// SaveTarget inserts or updates a target by ID.
	SaveTarget(ctx context.Context, target Target) error

	GetTarget(ctx context.Context, id TargetID) (*Target, error)

	// FindTargetByPlanAndNation supports the (plan, nation) uniqueness
	// invariant and transfer-document upserts.
	FindTargetByPlanAndNation(ctx context.Context, planID PlanID, nation NationID) (*Target, error)

	ListTargetsByPlan(ctx context.Context, planID PlanID) ([]Target, error)
	DeleteTarget(ctx context.Context, id TargetID) error
}

type AssignmentRepository interface {
	// SaveAssignment inserts or updates an assignment by ID.
	SaveAssignment(ctx context.Context, assignment Assignment) error

	GetAssignment(ctx context.Context, id AssignmentID) (*Assignment, error)

	// FindByTargetAndNation / FindByCounterAndNation support the pair
	// uniqueness invariants.
	FindByTargetAndNation(ctx context.Context, targetID TargetID, nation NationID) (*Assignment, error)
	FindByCounterAndNation(ctx context.Context, counterID CounterID, nation NationID) (*Assignment, error)

	ListByPlan(ctx context.Context, planID PlanID) ([]Assignment, error)
	ListByTarget(ctx context.Context, targetID TargetID) ([]Assignment, error)
	ListByCounter(ctx context.Context, counterID CounterID) ([]Assignment, error)

	DeleteAssignment(ctx context.Context, id AssignmentID) error
}

type SquadRepository interface {
	SaveSquad(ctx context.Context, squad Squad) error
	ListSquadsByPlan(ctx context.Context, planID PlanID) ([]Squad, error)

	// DeleteSquadsByPlan clears all squads for a rebuild. Squads are a
	// derived view; this is the only entity with bulk delete.
	DeleteSquadsByPlan(ctx context.Context, planID PlanID) error
}

// =============================================================================
// AGGREGATE + TRANSACTIONAL VIEW
// =============================================================================

// Repositories aggregates every per-entity repository.
type Repositories interface {
	PlanRepository
	CounterRepository
	AllianceLinkRepository
	TargetRepository
	AssignmentRepository
	SquadRepository
}

// TxRepositories adds atomic multi-write support.
type TxRepositories interface {
	Repositories

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Repositories) error) error
}
