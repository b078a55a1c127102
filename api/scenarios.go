/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Pre-built scenarios that populate the database and the nation directory
  with realistic data. Each scenario seeds a small two-alliance world and
  then drives the normal service APIs, so loaded data is indistinguishable
  from data created through the HTTP surface.

AVAILABLE SCENARIOS:
  border-raid:    Plan in planning with enrolled alliances and targets,
                  ready for recommendations and auto-pick
  active-front:   Activated plan with confirmed assignments and squads;
                  counter suppression is in effect
  lone-aggressor: Roster only, plus one draft counter against a rogue
                  aggressor

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "border-raid"}

NOTE:
  Loading a scenario resets the database. Development and demo use only.

SEE ALSO:
  - handlers.go: ListScenarios, LoadScenario routing
  - directory/static.go: The in-memory roster the scenarios seed
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/strike-engine/counter"
	"github.com/warp/strike-engine/engine"
	"github.com/warp/strike-engine/plan"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "border-raid",
		Name:        "Border Raid",
		Description: "Fresh plan with two alliances enrolled and three targets awaiting assignment",
		Category:    "plan",
	},
	{
		ID:          "active-front",
		Name:        "Active Front",
		Description: "Activated plan with confirmed assignments, squads, and counter suppression",
		Category:    "plan",
	},
	{
		ID:          "lone-aggressor",
		Name:        "Lone Aggressor",
		Description: "Draft counter assembling a response team against a rogue raider",
		Category:    "counter",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Plans.Suppression.Invalidate()
	h.currentScenario = ""

	h.seedRoster()

	var err error
	switch req.ScenarioID {
	case "border-raid":
		err = h.loadBorderRaidScenario(ctx)
	case "active-front":
		err = h.loadActiveFrontScenario(ctx)
	case "lone-aggressor":
		err = h.loadLoneAggressorScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// ROSTER SEED
// =============================================================================

// Alliance 100 is friendly, 200 is the enemy bloc, 300 is an unaligned
// bystander used by the counter scenario.
const (
	allianceCrimson engine.AllianceID = 100
	allianceIron    engine.AllianceID = 200
	allianceDrift   engine.AllianceID = 300
)

func (h *Handler) seedRoster() {
	now := time.Now().UTC()
	recent := now.Add(-2 * time.Hour)
	stale := now.Add(-6 * 24 * time.Hour)

	seed := []engine.NationSnapshot{
		// Crimson Accord (friendly)
		{NationID: 1001, Name: "Valkyren", AllianceID: allianceCrimson, AllianceRank: "officer",
			Score: engine.NewScoreFromInt(2400), OffensiveWars: 0, DefensiveWars: 0,
			Projects: map[string]bool{"propaganda_bureau": true}, LastActiveAt: recent},
		{NationID: 1002, Name: "Osterhal", AllianceID: allianceCrimson, AllianceRank: "member",
			Score: engine.NewScoreFromInt(1900), OffensiveWars: 1, DefensiveWars: 0, LastActiveAt: recent},
		{NationID: 1003, Name: "Brumehold", AllianceID: allianceCrimson, AllianceRank: "member",
			Score: engine.NewScoreFromInt(2100), OffensiveWars: 0, DefensiveWars: 1, LastActiveAt: recent},
		{NationID: 1004, Name: "Cindral", AllianceID: allianceCrimson, AllianceRank: "member",
			Score: engine.NewScoreFromInt(1600), OffensiveWars: 2, DefensiveWars: 0, LastActiveAt: stale},
		{NationID: 1005, Name: "Tessergard", AllianceID: allianceCrimson, AllianceRank: "leader",
			Score: engine.NewScoreFromInt(3100), OffensiveWars: 0, DefensiveWars: 0, LastActiveAt: recent},

		// Iron Pact (enemy)
		{NationID: 2001, Name: "Khovaresh", AllianceID: allianceIron, AllianceRank: "leader",
			Score: engine.NewScoreFromInt(2700), OffensiveWars: 1, DefensiveWars: 0, LastActiveAt: recent},
		{NationID: 2002, Name: "Dravenmoor", AllianceID: allianceIron, AllianceRank: "member",
			Score: engine.NewScoreFromInt(2000), OffensiveWars: 0, DefensiveWars: 1, LastActiveAt: recent},
		{NationID: 2003, Name: "Ashkelon", AllianceID: allianceIron, AllianceRank: "member",
			Score: engine.NewScoreFromInt(1750), OffensiveWars: 0, DefensiveWars: 2, LastActiveAt: stale},

		// Driftmark (unaligned raider)
		{NationID: 3001, Name: "Corvain", AllianceID: allianceDrift, AllianceRank: "leader",
			Score: engine.NewScoreFromInt(2250), OffensiveWars: 2, DefensiveWars: 0, LastActiveAt: recent},
	}

	for _, snap := range seed {
		h.Directory.Upsert(snap)
	}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadBorderRaidScenario(ctx context.Context) error {
	p, err := h.Plans.CreatePlan(ctx, plan.CreatePlanInput{
		Name:              "Border Raid: Iron Pact",
		DefaultEngagement: engine.EngagementRaid,
	})
	if err != nil {
		return err
	}

	if _, err := h.Plans.AddAlliance(ctx, p.ID, allianceCrimson, engine.RoleFriendly); err != nil {
		return err
	}
	if _, err := h.Plans.AddAlliance(ctx, p.ID, allianceIron, engine.RoleEnemy); err != nil {
		return err
	}

	for _, nation := range []engine.NationID{2001, 2002, 2003} {
		if _, err := h.Plans.AddTarget(ctx, p.ID, nation, engine.EngagementRaid); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadActiveFrontScenario(ctx context.Context) error {
	p, err := h.Plans.CreatePlan(ctx, plan.CreatePlanInput{
		Name:              "Northern Front",
		DefaultEngagement: engine.EngagementOrdinary,
	})
	if err != nil {
		return err
	}

	if _, err := h.Plans.AddAlliance(ctx, p.ID, allianceCrimson, engine.RoleFriendly); err != nil {
		return err
	}
	if _, err := h.Plans.AddAlliance(ctx, p.ID, allianceIron, engine.RoleEnemy); err != nil {
		return err
	}

	targets := map[engine.NationID]engine.TargetID{}
	for _, nation := range []engine.NationID{2001, 2002} {
		t, err := h.Plans.AddTarget(ctx, p.ID, nation, engine.EngagementOrdinary)
		if err != nil {
			return err
		}
		targets[nation] = t.ID
	}

	if _, err := h.Plans.Activate(ctx, p.ID); err != nil {
		return err
	}

	// Khovaresh gets a pair of attackers, Dravenmoor one.
	pairs := []struct {
		target   engine.NationID
		friendly engine.NationID
	}{
		{2001, 1005},
		{2001, 1003},
		{2002, 1002},
	}
	for _, pair := range pairs {
		a, err := h.Plans.ManualAssign(ctx, p.ID, targets[pair.target], pair.friendly)
		if err != nil {
			return err
		}
		if _, err := h.Plans.ConfirmAssignment(ctx, p.ID, a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadLoneAggressorScenario(ctx context.Context) error {
	c, err := h.Counters.Create(ctx, counter.CreateCounterInput{
		AggressorID:         3001,
		AllianceID:          allianceCrimson,
		TeamSize:            3,
		PreferredEngagement: engine.EngagementOrdinary,
	})
	if err != nil {
		return err
	}

	// Pre-seat one responder so the draft shows a partially assembled team.
	if _, err := h.Counters.ManualAssign(ctx, c.ID, 1005); err != nil {
		return err
	}
	return nil
}
