package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/strike-engine/api"
	"github.com/warp/strike-engine/counter"
	"github.com/warp/strike-engine/directory"
	"github.com/warp/strike-engine/engine"
	"github.com/warp/strike-engine/notify"
	"github.com/warp/strike-engine/plan"
	"github.com/warp/strike-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type stubQueue struct {
	kinds []engine.JobKind
}

func (q *stubQueue) Enqueue(_ context.Context, kind engine.JobKind, _ []byte) error {
	q.kinds = append(q.kinds, kind)
	return nil
}

type env struct {
	router http.Handler
	dir    *directory.Static
	queue  *stubQueue
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := directory.NewStatic()
	queue := &stubQueue{}
	cache := engine.NewSuppressionCache()
	policy := engine.DefaultPolicy()
	dispatcher := notify.NewLog()

	plans := plan.NewService(store, dir, policy, cache, dispatcher, queue)
	counters := counter.NewService(store, dir, policy, cache, dispatcher, queue)
	handler := api.NewHandler(store, plans, counters, dir, policy)

	return &env{router: api.NewRouter(handler), dir: dir, queue: queue}
}

func (e *env) seedNation(id int64, alliance int64, score int) {
	e.dir.Upsert(engine.NationSnapshot{
		NationID:     engine.NationID(id),
		Name:         fmt.Sprintf("nation-%d", id),
		AllianceID:   engine.AllianceID(alliance),
		AllianceRank: "member",
		Score:        engine.NewScoreFromInt(score),
		LastActiveAt: time.Now(),
	})
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// createPlan posts a plan and returns its DTO.
func (e *env) createPlan(t *testing.T, name string) api.PlanDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/plans", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[api.PlanDTO](t, rec)
}

// seedFront sets up nations, a plan, both alliance links, and one target.
func (e *env) seedFront(t *testing.T) (api.PlanDTO, api.TargetDTO) {
	t.Helper()
	e.seedNation(1, 100, 2000)
	e.seedNation(2, 100, 1900)
	e.seedNation(9, 200, 2000)

	p := e.createPlan(t, "front")
	rec := e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/alliances",
		map[string]any{"alliance_id": 100, "role": "friendly"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/alliances",
		map[string]any{"alliance_id": 200, "role": "enemy"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/targets",
		map[string]any{"nation_id": 9, "preferred_engagement": "raid"})
	require.Equal(t, http.StatusCreated, rec.Code)
	return p, decode[api.TargetDTO](t, rec)
}

// =============================================================================
// PLAN ENDPOINT TESTS
// =============================================================================

func TestPlanLifecycle_OverHTTP(t *testing.T) {
	e := newEnv(t)

	p := e.createPlan(t, "winter offensive")
	assert.Equal(t, "planning", p.Status)
	assert.Equal(t, "ordinary", p.DefaultEngagement)
	assert.Equal(t, 4, p.Tunables.MaxSquadSize)

	rec := e.do(t, http.MethodGet, "/api/plans/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	activated := decode[api.PlanDTO](t, rec)
	assert.Equal(t, "active", activated.Status)
	assert.NotNil(t, activated.ActivatedAt)

	// Re-activation is an illegal transition.
	rec = e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/activate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "archived", decode[api.PlanDTO](t, rec).Status)
}

func TestCreatePlan_MissingName_BadRequest(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/plans", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlan_Unknown_NotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/plans/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[api.ErrorResponse](t, rec)
	assert.NotEmpty(t, body.Error)
}

// =============================================================================
// TARGET AND ASSIGNMENT ENDPOINT TESTS
// =============================================================================

func TestTargets_AddAndScore(t *testing.T) {
	e := newEnv(t)
	p, target := e.seedFront(t)

	assert.Equal(t, int64(9), target.NationID)
	assert.Greater(t, target.PriorityScore, 0.0)
	assert.Equal(t, "raid", target.PreferredEngagement)

	// Tracking the same nation twice is a conflict.
	rec := e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/targets",
		map[string]any{"nation_id": 9})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecommendations_RankedCandidates(t *testing.T) {
	e := newEnv(t)
	p, target := e.seedFront(t)

	rec := e.do(t, http.MethodGet,
		"/api/plans/"+p.ID+"/targets/"+target.ID+"/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	candidates := decode[[]api.CandidateDTO](t, rec)
	require.NotEmpty(t, candidates)
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score)
	}
}

func TestManualAssign_ThenConfirm(t *testing.T) {
	e := newEnv(t)
	p, target := e.seedFront(t)

	rec := e.do(t, http.MethodPost,
		"/api/plans/"+p.ID+"/targets/"+target.ID+"/assignments",
		map[string]any{"friendly_nation_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	a := decode[api.AssignmentDTO](t, rec)
	assert.Equal(t, "proposed", a.Status)
	assert.True(t, a.IsLocked)

	// Same pair again conflicts.
	rec = e.do(t, http.MethodPost,
		"/api/plans/"+p.ID+"/targets/"+target.ID+"/assignments",
		map[string]any{"friendly_nation_id": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost,
		"/api/plans/"+p.ID+"/assignments/"+a.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decode[api.AssignmentDTO](t, rec).Status)
}

func TestAutoPick_Accepted(t *testing.T) {
	e := newEnv(t)
	p, _ := e.seedFront(t)

	rec := e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/auto-pick", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, e.queue.kinds, 1)
	assert.Equal(t, engine.JobAutoPickPlan, e.queue.kinds[0])
}

func TestRecompute_Accepted(t *testing.T) {
	e := newEnv(t)
	p, _ := e.seedFront(t)

	rec := e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/recompute", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, e.queue.kinds, 1)
	assert.Equal(t, engine.JobRecomputePriorities, e.queue.kinds[0])
}

// =============================================================================
// TRANSFER ENDPOINT TESTS
// =============================================================================

func TestExportImport_OverHTTP(t *testing.T) {
	e := newEnv(t)
	source, _ := e.seedFront(t)

	rec := e.do(t, http.MethodGet, "/api/plans/"+source.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[plan.Document](t, rec)
	assert.Equal(t, plan.SchemaVersion, doc.SchemaVersion)
	require.Len(t, doc.Targets, 1)

	dest := e.createPlan(t, "incoming")

	rec = e.do(t, http.MethodPost, "/api/plans/"+dest.ID+"/import?dry_run=true", doc)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[plan.ImportResult](t, rec)
	assert.False(t, preview.Applied)

	rec = e.do(t, http.MethodPost, "/api/plans/"+dest.ID+"/import", doc)
	require.Equal(t, http.StatusOK, rec.Code)
	applied := decode[plan.ImportResult](t, rec)
	assert.True(t, applied.Applied)

	rec = e.do(t, http.MethodGet, "/api/plans/"+dest.ID+"/targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	targets := decode[[]api.TargetDTO](t, rec)
	assert.Len(t, targets, 1)
}

func TestImport_BadSchema_BadRequest(t *testing.T) {
	e := newEnv(t)
	p := e.createPlan(t, "x")

	rec := e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/import",
		map[string]any{"schema_version": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// COUNTER ENDPOINT TESTS
// =============================================================================

func TestCounter_SuppressionConflictCarriesBlockingPlan(t *testing.T) {
	// GIVEN: An active plan already covering the raider's alliance
	// WHEN: Creating a counter against that raider over HTTP
	// THEN: 409 with the blocking plan id in the body

	e := newEnv(t)
	p, _ := e.seedFront(t)
	rec := e.do(t, http.MethodPost, "/api/plans/"+p.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/counters",
		map[string]any{"aggressor_id": 9, "alliance_id": 100})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, p.ID, body.BlockingPlanID)
}

func TestCounterLifecycle_OverHTTP(t *testing.T) {
	e := newEnv(t)
	e.seedNation(9, 300, 2000)
	e.seedNation(1, 100, 2000)
	e.seedNation(2, 100, 1900)

	rec := e.do(t, http.MethodPost, "/api/counters",
		map[string]any{"aggressor_id": 9, "alliance_id": 100, "team_size": 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decode[api.CounterDTO](t, rec)
	assert.Equal(t, "draft", c.Status)

	rec = e.do(t, http.MethodPost, "/api/counters/"+c.ID+"/assignments",
		map[string]any{"friendly_nation_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/counters/"+c.ID+"/finalize", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	finalized := decode[api.CounterDTO](t, rec)
	assert.Equal(t, "active", finalized.Status)
	assert.NotNil(t, finalized.FinalizedAt)

	rec = e.do(t, http.MethodPost, "/api/counters/"+c.ID+"/war-declared", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/counters/"+c.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "archived", decode[api.CounterDTO](t, rec).Status)
}

// =============================================================================
// NATION ENDPOINT TESTS
// =============================================================================

func TestGetNation_SnapshotWithCapacity(t *testing.T) {
	e := newEnv(t)
	e.seedNation(1, 100, 2000)

	rec := e.do(t, http.MethodGet, "/api/nations/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	n := decode[api.NationDTO](t, rec)
	assert.Equal(t, int64(1), n.NationID)
	assert.Equal(t, 3, n.Capacity.AvailableSlots)
	assert.True(t, n.Capacity.Eligible)
}

func TestGetNation_Unknown_NotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/nations/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetNation_BadID_BadRequest(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/nations/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCENARIO ENDPOINT TESTS
// =============================================================================

func TestScenarios_ListAndLoad(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]api.ScenarioDTO](t, rec)
	assert.Len(t, list, 3)

	rec = e.do(t, http.MethodPost, "/api/scenarios/load",
		map[string]any{"scenario_id": "border-raid"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[api.ScenarioDTO](t, rec)
	assert.Equal(t, "border-raid", current.ID)

	// The scenario seeds a ready-to-use plan.
	rec = e.do(t, http.MethodGet, "/api/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plans := decode[[]api.PlanDTO](t, rec)
	require.Len(t, plans, 1)

	rec = e.do(t, http.MethodGet, "/api/plans/"+plans[0].ID+"/targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	targets := decode[[]api.TargetDTO](t, rec)
	assert.NotEmpty(t, targets)

	rec = e.do(t, http.MethodPost, "/api/scenarios/load",
		map[string]any{"scenario_id": "unknown"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
