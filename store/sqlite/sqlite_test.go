package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/strike-engine/engine"
	"github.com/warp/strike-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func samplePlan(id string) engine.Plan {
	now := time.Now().UTC()
	return engine.Plan{
		ID:                engine.PlanID(id),
		Name:              "border war",
		DefaultEngagement: engine.EngagementOrdinary,
		Status:            engine.PlanPlanning,
		Tunables: engine.PlanTunables{
			PreferredTargetsPerFriendly: 2,
			ActivityWindowHours:         72,
			MaxSquadSize:                4,
			SquadCohesionTolerance:      engine.NewScore(0.15),
			SuppressCountersWhenActive:  true,
		},
		Options:   map[string]string{"theater": "north"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleCounter(id string, aggressor int64) engine.Counter {
	now := time.Now().UTC()
	return engine.Counter{
		ID:                  engine.CounterID(id),
		AggressorID:         engine.NationID(aggressor),
		AllianceID:          100,
		Status:              engine.CounterDraft,
		TeamSize:            3,
		PreferredEngagement: engine.EngagementOrdinary,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func sampleTarget(id, planID string, nation int64) engine.Target {
	now := time.Now().UTC()
	return engine.Target{
		ID:                  engine.TargetID(id),
		PlanID:              engine.PlanID(planID),
		NationID:            engine.NationID(nation),
		PriorityScore:       engine.NewScoreFromInt(85),
		PreferredEngagement: engine.EngagementRaid,
		Meta:                map[string]string{"source": "manual"},
		ComputedAt:          now,
		CreatedAt:           now,
	}
}

func sampleAssignment(id, planID, targetID string, nation int64) engine.Assignment {
	now := time.Now().UTC()
	pid := engine.PlanID(planID)
	return engine.Assignment{
		ID:               engine.AssignmentID(id),
		PlanID:           &pid,
		TargetID:         engine.TargetID(targetID),
		FriendlyNationID: engine.NationID(nation),
		MatchScore:       engine.NewScore(0.8),
		Status:           engine.AssignmentProposed,
		Meta:             map[string]string{"source": "auto"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// =============================================================================
// PLAN TESTS
// =============================================================================

func TestPlan_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	p := samplePlan("plan-1")
	require.NoError(t, store.SavePlan(ctx, p))

	got, err := store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Status, got.Status)
	assert.Equal(t, p.Tunables.MaxSquadSize, got.Tunables.MaxSquadSize)
	assert.True(t, got.Tunables.SquadCohesionTolerance.Equal(engine.NewScore(0.15)))
	assert.Equal(t, "north", got.Options["theater"])
	assert.True(t, got.CreatedAt.Equal(p.CreatedAt))
	assert.Nil(t, got.ActivatedAt)
}

func TestPlan_MissingReturnsNil(t *testing.T) {
	store := newStore(t)
	got, err := store.GetPlan(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPlan_UpsertUpdatesInPlace(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	p := samplePlan("plan-1")
	require.NoError(t, store.SavePlan(ctx, p))

	now := time.Now().UTC()
	p.Status = engine.PlanActive
	p.ActivatedAt = &now
	require.NoError(t, store.SavePlan(ctx, p))

	got, err := store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, engine.PlanActive, got.Status)
	require.NotNil(t, got.ActivatedAt)

	all, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPlan_ListByStatus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	active := samplePlan("plan-1")
	active.Status = engine.PlanActive
	require.NoError(t, store.SavePlan(ctx, active))

	draft := samplePlan("plan-2")
	require.NoError(t, store.SavePlan(ctx, draft))

	got, err := store.ListPlansByStatus(ctx, engine.PlanActive)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, engine.PlanID("plan-1"), got[0].ID)
}

// =============================================================================
// COUNTER TESTS
// =============================================================================

func TestCounter_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	c := sampleCounter("counter-1", 9)
	suppressedBy := engine.PlanID("plan-1")
	c.SuppressedByPlanID = &suppressedBy
	c.Settings = map[string]string{"note": "raider"}
	require.NoError(t, store.SaveCounter(ctx, c))

	got, err := store.GetCounter(ctx, "counter-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, engine.NationID(9), got.AggressorID)
	assert.Equal(t, 3, got.TeamSize)
	require.NotNil(t, got.SuppressedByPlanID)
	assert.Equal(t, suppressedBy, *got.SuppressedByPlanID)
	assert.Equal(t, "raider", got.Settings["note"])
}

func TestCounter_OneLivePerAggressor(t *testing.T) {
	// GIVEN: A live counter against nation 9
	// WHEN: Inserting a second non-archived counter for the same aggressor
	// THEN: The schema-level index rejects it with the typed error

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCounter(ctx, sampleCounter("counter-1", 9)))

	err := store.SaveCounter(ctx, sampleCounter("counter-2", 9))
	assert.ErrorIs(t, err, engine.ErrDuplicateCounter)

	// Different aggressor is fine.
	assert.NoError(t, store.SaveCounter(ctx, sampleCounter("counter-3", 10)))
}

func TestCounter_ArchivedFreesAggressor(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := sampleCounter("counter-1", 9)
	require.NoError(t, store.SaveCounter(ctx, first))

	now := time.Now().UTC()
	first.Status = engine.CounterArchived
	first.ArchivedAt = &now
	require.NoError(t, store.SaveCounter(ctx, first))

	require.NoError(t, store.SaveCounter(ctx, sampleCounter("counter-2", 9)))
}

func TestFindActiveCounterByAggressor_IgnoresArchived(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	archived := sampleCounter("counter-1", 9)
	archived.Status = engine.CounterArchived
	require.NoError(t, store.SaveCounter(ctx, archived))

	got, err := store.FindActiveCounterByAggressor(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, got)

	live := sampleCounter("counter-2", 9)
	require.NoError(t, store.SaveCounter(ctx, live))

	got, err = store.FindActiveCounterByAggressor(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, engine.CounterID("counter-2"), got.ID)
}

// =============================================================================
// ALLIANCE LINK TESTS
// =============================================================================

func TestLink_DuplicateRoleRejected(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	link := engine.AllianceLink{
		ID: "link-1", PlanID: "plan-1", AllianceID: 100,
		Role: engine.RoleFriendly, CreatedAt: now,
	}
	require.NoError(t, store.SaveLink(ctx, link))

	dup := link
	dup.ID = "link-2"
	err := store.SaveLink(ctx, dup)
	assert.ErrorIs(t, err, engine.ErrDuplicateAllianceLink)

	// Same alliance under the other role is a distinct enrollment.
	other := link
	other.ID = "link-3"
	other.Role = engine.RoleEnemy
	assert.NoError(t, store.SaveLink(ctx, other))
}

func TestLink_ListByRoleAndDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveLink(ctx, engine.AllianceLink{
		ID: "link-1", PlanID: "plan-1", AllianceID: 100,
		Role: engine.RoleFriendly, CreatedAt: now,
	}))
	require.NoError(t, store.SaveLink(ctx, engine.AllianceLink{
		ID: "link-2", PlanID: "plan-1", AllianceID: 200,
		Role: engine.RoleEnemy, CreatedAt: now,
	}))

	enemies, err := store.ListLinksByRole(ctx, "plan-1", engine.RoleEnemy)
	require.NoError(t, err)
	require.Len(t, enemies, 1)
	assert.Equal(t, engine.AllianceID(200), enemies[0].AllianceID)

	require.NoError(t, store.DeleteLink(ctx, "link-2"))
	all, err := store.ListLinksByPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// TARGET TESTS
// =============================================================================

func TestTarget_RoundTripAndLookup(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	target := sampleTarget("target-1", "plan-1", 9)
	require.NoError(t, store.SaveTarget(ctx, target))

	got, err := store.FindTargetByPlanAndNation(ctx, "plan-1", 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, engine.TargetID("target-1"), got.ID)
	assert.True(t, got.PriorityScore.Equal(engine.NewScoreFromInt(85)))
	assert.Equal(t, engine.EngagementRaid, got.PreferredEngagement)
	assert.Equal(t, "manual", got.Meta["source"])

	missing, err := store.FindTargetByPlanAndNation(ctx, "plan-1", 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTarget_OnePerPlanAndNation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTarget(ctx, sampleTarget("target-1", "plan-1", 9)))

	err := store.SaveTarget(ctx, sampleTarget("target-2", "plan-1", 9))
	assert.ErrorIs(t, err, engine.ErrDuplicateTarget)

	// The same nation may be tracked by a different plan.
	assert.NoError(t, store.SaveTarget(ctx, sampleTarget("target-3", "plan-2", 9)))
}

func TestTarget_Delete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTarget(ctx, sampleTarget("target-1", "plan-1", 9)))
	require.NoError(t, store.DeleteTarget(ctx, "target-1"))

	got, err := store.GetTarget(ctx, "target-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// ASSIGNMENT TESTS
// =============================================================================

func TestAssignment_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := sampleAssignment("assign-1", "plan-1", "target-1", 1)
	a.IsLocked = true
	a.IsOverridden = true
	squadID := engine.SquadID("squad-1")
	a.SquadID = &squadID
	require.NoError(t, store.SaveAssignment(ctx, a))

	got, err := store.GetAssignment(ctx, "assign-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.PlanID)
	assert.Equal(t, engine.PlanID("plan-1"), *got.PlanID)
	assert.Nil(t, got.CounterID)
	assert.True(t, got.IsLocked)
	assert.True(t, got.IsOverridden)
	require.NotNil(t, got.SquadID)
	assert.Equal(t, squadID, *got.SquadID)
	assert.True(t, got.MatchScore.Equal(engine.NewScore(0.8)))
}

func TestAssignment_OnePerTargetAndNation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAssignment(ctx, sampleAssignment("assign-1", "plan-1", "target-1", 1)))

	err := store.SaveAssignment(ctx, sampleAssignment("assign-2", "plan-1", "target-1", 1))
	assert.ErrorIs(t, err, engine.ErrDuplicateAssignment)

	assert.NoError(t, store.SaveAssignment(ctx, sampleAssignment("assign-3", "plan-1", "target-1", 2)))
}

func TestAssignment_CounterPairsDoNotCollideOnEmptyTarget(t *testing.T) {
	// GIVEN: Two counter assignments, both with no target
	// WHEN: Saving them for different members
	// THEN: The target-pair index does not fire; the counter-pair index does

	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	counterID := engine.CounterID("counter-1")

	counterAssignment := func(id string, nation int64) engine.Assignment {
		return engine.Assignment{
			ID:               engine.AssignmentID(id),
			CounterID:        &counterID,
			FriendlyNationID: engine.NationID(nation),
			MatchScore:       engine.NewScore(0.7),
			Status:           engine.AssignmentProposed,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	require.NoError(t, store.SaveAssignment(ctx, counterAssignment("assign-1", 1)))
	require.NoError(t, store.SaveAssignment(ctx, counterAssignment("assign-2", 2)))

	err := store.SaveAssignment(ctx, counterAssignment("assign-3", 1))
	assert.ErrorIs(t, err, engine.ErrDuplicateAssignment)

	got, err := store.FindByCounterAndNation(ctx, counterID, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, engine.AssignmentID("assign-2"), got.ID)
}

func TestAssignment_ListAndDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAssignment(ctx, sampleAssignment("assign-1", "plan-1", "target-1", 1)))
	require.NoError(t, store.SaveAssignment(ctx, sampleAssignment("assign-2", "plan-1", "target-2", 2)))

	byPlan, err := store.ListByPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Len(t, byPlan, 2)

	byTarget, err := store.ListByTarget(ctx, "target-1")
	require.NoError(t, err)
	require.Len(t, byTarget, 1)

	require.NoError(t, store.DeleteAssignment(ctx, "assign-1"))
	byPlan, err = store.ListByPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Len(t, byPlan, 1)
}

// =============================================================================
// SQUAD TESTS
// =============================================================================

func TestSquad_RoundTripAndRebuildDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"squad-a", "squad-b"} {
		require.NoError(t, store.SaveSquad(ctx, engine.Squad{
			ID: engine.SquadID(id), PlanID: "plan-1", TargetID: "target-1",
			Label: "squad-" + string(rune('1'+i)), Round: 1,
			CohesionScore: engine.NewScore(0.7), CreatedAt: now,
		}))
	}

	squads, err := store.ListSquadsByPlan(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, squads, 2)
	assert.Equal(t, "squad-1", squads[0].Label)
	assert.True(t, squads[0].CohesionScore.Equal(engine.NewScore(0.7)))

	require.NoError(t, store.DeleteSquadsByPlan(ctx, "plan-1"))
	squads, err = store.ListSquadsByPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Empty(t, squads)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes a plan then fails
	// WHEN: The callback returns an error
	// THEN: Nothing is visible afterwards

	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(repos engine.Repositories) error {
		if err := repos.SavePlan(ctx, samplePlan("plan-1")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(repos engine.Repositories) error {
		if err := repos.SavePlan(ctx, samplePlan("plan-1")); err != nil {
			return err
		}
		return repos.SaveTarget(ctx, sampleTarget("target-1", "plan-1", 9))
	})
	require.NoError(t, err)

	plan, err := store.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	require.NotNil(t, plan)

	target, err := store.GetTarget(ctx, "target-1")
	require.NoError(t, err)
	require.NotNil(t, target)
}

// =============================================================================
// RESET TESTS
// =============================================================================

func TestReset_ClearsEverything(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePlan(ctx, samplePlan("plan-1")))
	require.NoError(t, store.SaveCounter(ctx, sampleCounter("counter-1", 9)))
	require.NoError(t, store.SaveTarget(ctx, sampleTarget("target-1", "plan-1", 9)))
	require.NoError(t, store.SaveAssignment(ctx, sampleAssignment("assign-1", "plan-1", "target-1", 1)))

	require.NoError(t, store.Reset(ctx))

	plans, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)

	counters, err := store.ListCounters(ctx)
	require.NoError(t, err)
	assert.Empty(t, counters)

	targets, err := store.ListTargetsByPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Empty(t, targets)
}
