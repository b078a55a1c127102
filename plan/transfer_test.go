package plan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/strike-engine/engine"
	"github.com/warp/strike-engine/plan"
)

// =============================================================================
// EXPORT TESTS
// =============================================================================

func TestExport_FullDocument(t *testing.T) {
	f := newFixture()
	p, target := f.seedBattlefield(t)
	ctx := context.Background()

	_, err := f.svc.ManualAssign(ctx, p.ID, target.ID, 1)
	require.NoError(t, err)

	doc, err := f.svc.Export(ctx, p.ID, false)
	require.NoError(t, err)

	assert.Equal(t, plan.SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, "front", doc.Metadata.Name)
	assert.Equal(t, []int64{100}, doc.Alliances.Friendly)
	assert.Equal(t, []int64{200}, doc.Alliances.Enemy)

	require.Len(t, doc.Targets, 1)
	assert.Equal(t, int64(9), doc.Targets[0].NationID)
	assert.Equal(t, "raid", doc.Targets[0].PreferredEngagementType)

	require.Len(t, doc.Assignments, 1)
	assert.Equal(t, int64(1), doc.Assignments[0].FriendlyNationID)
	// Assignments reference the target's nation id, the stable cross-system key.
	assert.Equal(t, int64(9), doc.Assignments[0].TargetID)
}

func TestExport_OptionsOnly_OmitsTargetsAndAssignments(t *testing.T) {
	f := newFixture()
	p, target := f.seedBattlefield(t)
	ctx := context.Background()

	_, err := f.svc.ManualAssign(ctx, p.ID, target.ID, 1)
	require.NoError(t, err)

	doc, err := f.svc.Export(ctx, p.ID, true)
	require.NoError(t, err)

	assert.Empty(t, doc.Targets)
	assert.Empty(t, doc.Assignments)
	assert.Equal(t, []int64{200}, doc.Alliances.Enemy)
	assert.Equal(t, 4, doc.Options.MaxSquadSize)
}

// =============================================================================
// IMPORT TESTS
// =============================================================================

func TestImport_RoundTrip(t *testing.T) {
	// GIVEN: A full export from one plan
	// WHEN: Importing into a fresh plan
	// THEN: Targets, links, and assignments match the source

	f := newFixture()
	source, target := f.seedBattlefield(t)
	ctx := context.Background()

	a, err := f.svc.ManualAssign(ctx, source.ID, target.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.ConfirmAssignment(ctx, source.ID, a.ID)
	require.NoError(t, err)

	doc, err := f.svc.Export(ctx, source.ID, false)
	require.NoError(t, err)

	dest, err := f.svc.CreatePlan(ctx, plan.CreatePlanInput{Name: "incoming"})
	require.NoError(t, err)

	result, err := f.svc.Import(ctx, dest.ID, *doc, false)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, []int64{9}, result.Diff.TargetsAdded)

	reloaded, err := f.svc.GetPlan(ctx, dest.ID)
	require.NoError(t, err)
	assert.Equal(t, "front", reloaded.Name)

	targets, err := f.svc.ListTargets(ctx, dest.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, engine.NationID(9), targets[0].NationID)

	assignments, err := f.svc.ListAssignments(ctx, dest.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, engine.NationID(1), assignments[0].FriendlyNationID)
	assert.Equal(t, engine.AssignmentConfirmed, assignments[0].Status)
}

func TestImport_DryRun_NoMutation(t *testing.T) {
	f := newFixture()
	source, _ := f.seedBattlefield(t)
	ctx := context.Background()

	doc, err := f.svc.Export(ctx, source.ID, false)
	require.NoError(t, err)

	dest, err := f.svc.CreatePlan(ctx, plan.CreatePlanInput{Name: "untouched"})
	require.NoError(t, err)

	result, err := f.svc.Import(ctx, dest.ID, *doc, true)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, []int64{9}, result.Diff.TargetsAdded)
	require.NotNil(t, result.Diff.NameChange)
	assert.Equal(t, "front", result.Diff.NameChange.To)

	// Nothing changed.
	reloaded, err := f.svc.GetPlan(ctx, dest.ID)
	require.NoError(t, err)
	assert.Equal(t, "untouched", reloaded.Name)

	targets, err := f.svc.ListTargets(ctx, dest.ID)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestImport_WrongSchemaVersion_RejectedWholesale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.CreatePlan(ctx, plan.CreatePlanInput{Name: "x"})
	require.NoError(t, err)

	_, err = f.svc.Import(ctx, p.ID, plan.Document{SchemaVersion: 2}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrSchemaVersion)

	var schemaErr *engine.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 2, schemaErr.Got)
	assert.Equal(t, 1, schemaErr.Want)
}

func TestImport_ArchivedPlanRefused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.CreatePlan(ctx, plan.CreatePlanInput{Name: "x"})
	require.NoError(t, err)
	_, err = f.svc.Archive(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.svc.Import(ctx, p.ID, plan.Document{SchemaVersion: 1}, false)
	assert.ErrorIs(t, err, engine.ErrPlanArchived)
}

func TestImport_NeverDeletesTargets(t *testing.T) {
	// GIVEN: A plan tracking a target the document omits
	// WHEN: Importing
	// THEN: The omission is reported in the diff but the target survives

	f := newFixture()
	p, _ := f.seedBattlefield(t)
	ctx := context.Background()

	doc := plan.Document{SchemaVersion: 1}
	result, err := f.svc.Import(ctx, p.ID, doc, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, result.Diff.TargetsRemoved)

	targets, err := f.svc.ListTargets(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, targets, 1, "import must not delete targets")
}

func TestImport_SkipsAssignmentsForUndeclaredTargets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.CreatePlan(ctx, plan.CreatePlanInput{Name: "x"})
	require.NoError(t, err)

	doc := plan.Document{
		SchemaVersion: 1,
		Assignments: []plan.DocumentAssignment{
			{FriendlyNationID: 1, TargetID: 999, MatchScore: 0.5, Status: "proposed"},
		},
	}
	result, err := f.svc.Import(ctx, p.ID, doc, false)
	require.NoError(t, err)
	assert.True(t, result.Applied)

	assignments, err := f.svc.ListAssignments(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestImport_LockedAssignmentKeepsStatus(t *testing.T) {
	// GIVEN: A locked manual assignment
	// WHEN: A document re-imports the same pair with a different status
	// THEN: The score updates but the locked status is untouched

	f := newFixture()
	p, target := f.seedBattlefield(t)
	ctx := context.Background()

	_, err := f.svc.ManualAssign(ctx, p.ID, target.ID, 1)
	require.NoError(t, err)

	doc := plan.Document{
		SchemaVersion: 1,
		Targets: []plan.DocumentTarget{
			{NationID: 9, TPS: 50, PreferredEngagementType: "raid"},
		},
		Assignments: []plan.DocumentAssignment{
			{FriendlyNationID: 1, TargetID: 9, MatchScore: 0.8, Status: "published"},
		},
	}
	_, err = f.svc.Import(ctx, p.ID, doc, false)
	require.NoError(t, err)

	assignments, err := f.svc.ListAssignments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, engine.AssignmentProposed, assignments[0].Status)
	assert.True(t, assignments[0].MatchScore.Equal(engine.NewScore(0.8)))
}

func TestImport_UnknownStatusDegradesToProposed(t *testing.T) {
	f := newFixture()
	p, _ := f.seedBattlefield(t)
	ctx := context.Background()

	doc := plan.Document{
		SchemaVersion: 1,
		Targets: []plan.DocumentTarget{
			{NationID: 9, TPS: 50, PreferredEngagementType: "raid"},
		},
		Assignments: []plan.DocumentAssignment{
			{FriendlyNationID: 2, TargetID: 9, MatchScore: 0.4, Status: "pending-review"},
		},
	}
	_, err := f.svc.Import(ctx, p.ID, doc, false)
	require.NoError(t, err)

	assignments, err := f.svc.ListAssignments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, engine.AssignmentProposed, assignments[0].Status)
}
