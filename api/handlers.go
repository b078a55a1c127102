/*
handlers.go - HTTP API handlers for the war-coordination engine

PURPOSE:
  Exposes the coordination engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the plan and
  counter services.

ENDPOINTS:
  Plans:
    GET    /api/plans                                  List plans
    POST   /api/plans                                  Create plan
    GET    /api/plans/{id}                             Get plan
    POST   /api/plans/{id}/activate                    planning -> active
    POST   /api/plans/{id}/archive                     -> archived (terminal)
    POST   /api/plans/{id}/publish                     Publish assignments
    GET    /api/plans/{id}/alliances                   List alliance links
    POST   /api/plans/{id}/alliances                   Enroll alliance
    DELETE /api/plans/{id}/alliances/{linkID}          Remove link
    GET    /api/plans/{id}/targets                     List targets
    POST   /api/plans/{id}/targets                     Add target
    DELETE /api/plans/{id}/targets/{targetID}          Remove target
    GET    /api/plans/{id}/targets/{targetID}/recommendations
    POST   /api/plans/{id}/targets/{targetID}/assignments  Manual assign
    GET    /api/plans/{id}/assignments                 List assignments
    POST   /api/plans/{id}/assignments/{aid}/confirm   proposed -> confirmed
    DELETE /api/plans/{id}/assignments/{aid}           Remove assignment
    POST   /api/plans/{id}/auto-pick                   Enqueue bulk auto-pick
    POST   /api/plans/{id}/recompute                   Enqueue TPS recompute
    GET    /api/plans/{id}/squads                      List squads
    POST   /api/plans/{id}/squads/rebuild              Force squad rebuild
    GET    /api/plans/{id}/export                      Transfer document
    POST   /api/plans/{id}/import                      Import (?dry_run=true)

  Counters:
    GET    /api/counters                               List counters
    POST   /api/counters                               Create counter
    GET    /api/counters/{id}                          Get counter
    GET    /api/counters/{id}/recommendations          Rank candidates
    GET    /api/counters/{id}/assignments              List team
    POST   /api/counters/{id}/assignments              Manual assign
    DELETE /api/counters/{id}/assignments/{aid}        Remove member
    POST   /api/counters/{id}/auto-pick                Enqueue team assembly
    POST   /api/counters/{id}/finalize                 draft -> active
    POST   /api/counters/{id}/archive                  -> archived (terminal)
    POST   /api/counters/{id}/war-declared             Stamp declaration

  Nations:
    GET    /api/nations/{id}                           Snapshot + capacity

  Scenarios:
    GET    /api/scenarios                              List demo scenarios
    POST   /api/scenarios/load                         Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, illegal transitions, bad transfer schema
  - 404: Entity not found
  - 409: Conflict (duplicate target/assignment/counter, suppression)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - runner.go: Background job execution
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/strike-engine/counter"
	"github.com/warp/strike-engine/directory"
	"github.com/warp/strike-engine/engine"
	"github.com/warp/strike-engine/plan"
	"github.com/warp/strike-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Plans     *plan.Service
	Counters  *counter.Service
	Directory *directory.Static
	Policy    engine.AllocationPolicy

	// Track currently loaded scenario
	currentScenario string
}

func NewHandler(store *sqlite.Store, plans *plan.Service, counters *counter.Service, dir *directory.Static, policy engine.AllocationPolicy) *Handler {
	return &Handler{
		Store:     store,
		Plans:     plans,
		Counters:  counters,
		Directory: dir,
		Policy:    policy,
	}
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Plans.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}
	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := plan.CreatePlanInput{
		Name:              req.Name,
		DefaultEngagement: engine.EngagementType(req.DefaultEngagement),
		Options:           req.Options,
	}
	if req.Tunables != nil {
		in.Tunables = &engine.PlanTunables{
			PreferredTargetsPerFriendly: req.Tunables.PreferredTargetsPerFriendly,
			ActivityWindowHours:         req.Tunables.ActivityWindowHours,
			MaxSquadSize:                req.Tunables.MaxSquadSize,
			SquadCohesionTolerance:      engine.NewScore(req.Tunables.SquadCohesionTolerance),
			SuppressCountersWhenActive:  req.Tunables.SuppressCountersWhenActive,
		}
	}

	p, err := h.Plans.CreatePlan(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(*p))
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.GetPlan(r.Context(), planID(r))
	if err != nil {
		writeDomainError(w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*p))
}

func (h *Handler) ActivatePlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.Activate(r.Context(), planID(r))
	if err != nil {
		writeDomainError(w, "Failed to activate plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*p))
}

func (h *Handler) ArchivePlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.Archive(r.Context(), planID(r))
	if err != nil {
		writeDomainError(w, "Failed to archive plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*p))
}

func (h *Handler) PublishPlan(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	p, err := h.Plans.Publish(r.Context(), planID(r), engine.ChannelSelection{
		InGame:               req.InGame,
		ExternalAlert:        req.ExternalAlert,
		CreateDiscussionRoom: req.CreateDiscussionRoom,
	})
	if err != nil {
		writeDomainError(w, "Failed to publish plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*p))
}

// =============================================================================
// ALLIANCE LINK HANDLERS
// =============================================================================

func (h *Handler) ListAlliances(w http.ResponseWriter, r *http.Request) {
	links, err := h.Plans.Repos.ListLinksByPlan(r.Context(), planID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alliances", err)
		return
	}
	dtos := make([]AllianceLinkDTO, len(links))
	for i, l := range links {
		dtos[i] = AllianceLinkDTO{
			ID:         string(l.ID),
			AllianceID: int64(l.AllianceID),
			Role:       string(l.Role),
			CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddAlliance(w http.ResponseWriter, r *http.Request) {
	var req AddAllianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	link, err := h.Plans.AddAlliance(r.Context(), planID(r),
		engine.AllianceID(req.AllianceID), engine.AllianceRole(req.Role))
	if err != nil {
		writeDomainError(w, "Failed to add alliance", err)
		return
	}
	writeJSON(w, http.StatusCreated, AllianceLinkDTO{
		ID:         string(link.ID),
		AllianceID: int64(link.AllianceID),
		Role:       string(link.Role),
		CreatedAt:  link.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) RemoveAlliance(w http.ResponseWriter, r *http.Request) {
	linkID := engine.LinkID(chi.URLParam(r, "linkID"))
	if err := h.Plans.RemoveAlliance(r.Context(), planID(r), linkID); err != nil {
		writeDomainError(w, "Failed to remove alliance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TARGET HANDLERS
// =============================================================================

func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.Plans.ListTargets(r.Context(), planID(r))
	if err != nil {
		writeDomainError(w, "Failed to list targets", err)
		return
	}
	dtos := make([]TargetDTO, len(targets))
	for i, t := range targets {
		dtos[i] = toTargetDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddTarget(w http.ResponseWriter, r *http.Request) {
	var req AddTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t, err := h.Plans.AddTarget(r.Context(), planID(r),
		engine.NationID(req.NationID), engine.EngagementType(req.PreferredEngagement))
	if err != nil {
		writeDomainError(w, "Failed to add target", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTargetDTO(*t))
}

func (h *Handler) RemoveTarget(w http.ResponseWriter, r *http.Request) {
	targetID := engine.TargetID(chi.URLParam(r, "targetID"))
	if err := h.Plans.RemoveTarget(r.Context(), planID(r), targetID); err != nil {
		writeDomainError(w, "Failed to remove target", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TargetRecommendations(w http.ResponseWriter, r *http.Request) {
	targetID := engine.TargetID(chi.URLParam(r, "targetID"))
	mode := evalMode(r.URL.Query().Get("mode"))

	candidates, err := h.Plans.Recommendations(r.Context(), planID(r), targetID, mode)
	if err != nil {
		writeDomainError(w, "Failed to compute recommendations", err)
		return
	}
	dtos := make([]CandidateDTO, len(candidates))
	for i, c := range candidates {
		dtos[i] = toCandidateDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RecomputePriorities(w http.ResponseWriter, r *http.Request) {
	if err := h.Plans.EnqueueRecompute(r.Context(), planID(r)); err != nil {
		writeDomainError(w, "Failed to enqueue priority recompute", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// =============================================================================
// PLAN ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) ListPlanAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.Plans.ListAssignments(r.Context(), planID(r))
	if err != nil {
		writeDomainError(w, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ManualAssignPlan(w http.ResponseWriter, r *http.Request) {
	var req ManualAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	targetID := engine.TargetID(chi.URLParam(r, "targetID"))
	a, err := h.Plans.ManualAssign(r.Context(), planID(r), targetID, engine.NationID(req.FriendlyNationID))
	if err != nil {
		writeDomainError(w, "Failed to create assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*a))
}

func (h *Handler) ConfirmAssignment(w http.ResponseWriter, r *http.Request) {
	aid := engine.AssignmentID(chi.URLParam(r, "assignmentID"))
	a, err := h.Plans.ConfirmAssignment(r.Context(), planID(r), aid)
	if err != nil {
		writeDomainError(w, "Failed to confirm assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(*a))
}

func (h *Handler) RemovePlanAssignment(w http.ResponseWriter, r *http.Request) {
	aid := engine.AssignmentID(chi.URLParam(r, "assignmentID"))
	if err := h.Plans.RemoveAssignment(r.Context(), planID(r), aid); err != nil {
		writeDomainError(w, "Failed to remove assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AutoPickPlan(w http.ResponseWriter, r *http.Request) {
	var req AutoPickRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	err := h.Plans.EnqueueAutoPick(r.Context(), planID(r),
		engine.TargetID(req.TargetID), evalMode(req.Mode))
	if err != nil {
		writeDomainError(w, "Failed to enqueue auto-pick", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// =============================================================================
// SQUAD HANDLERS
// =============================================================================

func (h *Handler) ListSquads(w http.ResponseWriter, r *http.Request) {
	squads, err := h.Plans.ListSquads(r.Context(), planID(r))
	if err != nil {
		writeDomainError(w, "Failed to list squads", err)
		return
	}
	dtos := make([]SquadDTO, len(squads))
	for i, sq := range squads {
		dtos[i] = toSquadDTO(sq)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RebuildSquads(w http.ResponseWriter, r *http.Request) {
	if err := h.Plans.RebuildSquads(r.Context(), planID(r)); err != nil {
		writeDomainError(w, "Failed to rebuild squads", err)
		return
	}
	h.ListSquads(w, r)
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

func (h *Handler) ExportPlan(w http.ResponseWriter, r *http.Request) {
	optionsOnly := r.URL.Query().Get("options_only") == "true"
	doc, err := h.Plans.Export(r.Context(), planID(r), optionsOnly)
	if err != nil {
		writeDomainError(w, "Failed to export plan", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) ImportPlan(w http.ResponseWriter, r *http.Request) {
	var doc plan.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transfer document", err)
		return
	}

	dryRun := r.URL.Query().Get("dry_run") == "true"
	result, err := h.Plans.Import(r.Context(), planID(r), doc, dryRun)
	if err != nil {
		writeDomainError(w, "Failed to import plan", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// COUNTER HANDLERS
// =============================================================================

func (h *Handler) ListCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.Counters.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list counters", err)
		return
	}
	dtos := make([]CounterDTO, len(counters))
	for i, c := range counters {
		dtos[i] = toCounterDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCounter(w http.ResponseWriter, r *http.Request) {
	var req CreateCounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Counters.Create(r.Context(), counter.CreateCounterInput{
		AggressorID:         engine.NationID(req.AggressorID),
		AllianceID:          engine.AllianceID(req.AllianceID),
		TeamSize:            req.TeamSize,
		PreferredEngagement: engine.EngagementType(req.PreferredEngagement),
		Settings:            req.Settings,
	})
	if err != nil {
		writeDomainError(w, "Failed to create counter", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCounterDTO(*c))
}

func (h *Handler) GetCounter(w http.ResponseWriter, r *http.Request) {
	c, err := h.Counters.Get(r.Context(), counterID(r))
	if err != nil {
		writeDomainError(w, "Failed to get counter", err)
		return
	}
	writeJSON(w, http.StatusOK, toCounterDTO(*c))
}

func (h *Handler) CounterRecommendations(w http.ResponseWriter, r *http.Request) {
	mode := evalMode(r.URL.Query().Get("mode"))
	candidates, err := h.Counters.Recommend(r.Context(), counterID(r), mode)
	if err != nil {
		writeDomainError(w, "Failed to compute recommendations", err)
		return
	}
	dtos := make([]CandidateDTO, len(candidates))
	for i, c := range candidates {
		dtos[i] = toCandidateDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListCounterAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.Counters.ListAssignments(r.Context(), counterID(r))
	if err != nil {
		writeDomainError(w, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ManualAssignCounter(w http.ResponseWriter, r *http.Request) {
	var req ManualAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, err := h.Counters.ManualAssign(r.Context(), counterID(r), engine.NationID(req.FriendlyNationID))
	if err != nil {
		writeDomainError(w, "Failed to create assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*a))
}

func (h *Handler) RemoveCounterAssignment(w http.ResponseWriter, r *http.Request) {
	aid := engine.AssignmentID(chi.URLParam(r, "assignmentID"))
	if err := h.Counters.RemoveAssignment(r.Context(), counterID(r), aid); err != nil {
		writeDomainError(w, "Failed to remove assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AutoPickCounter(w http.ResponseWriter, r *http.Request) {
	if err := h.Counters.EnqueueAutoPick(r.Context(), counterID(r)); err != nil {
		writeDomainError(w, "Failed to enqueue auto-pick", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) FinalizeCounter(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	c, err := h.Counters.Finalize(r.Context(), counterID(r), engine.ChannelSelection{
		InGame:               req.InGame,
		ExternalAlert:        req.ExternalAlert,
		CreateDiscussionRoom: req.CreateDiscussionRoom,
	})
	if err != nil {
		writeDomainError(w, "Failed to finalize counter", err)
		return
	}
	writeJSON(w, http.StatusOK, toCounterDTO(*c))
}

func (h *Handler) ArchiveCounter(w http.ResponseWriter, r *http.Request) {
	c, err := h.Counters.Archive(r.Context(), counterID(r))
	if err != nil {
		writeDomainError(w, "Failed to archive counter", err)
		return
	}
	writeJSON(w, http.StatusOK, toCounterDTO(*c))
}

func (h *Handler) RecordWarDeclared(w http.ResponseWriter, r *http.Request) {
	c, err := h.Counters.RecordWarDeclared(r.Context(), counterID(r))
	if err != nil {
		writeDomainError(w, "Failed to record declaration", err)
		return
	}
	writeJSON(w, http.StatusOK, toCounterDTO(*c))
}

// =============================================================================
// NATION HANDLERS
// =============================================================================

func (h *Handler) GetNation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid nation id", err)
		return
	}

	snap, err := h.Directory.Nation(r.Context(), engine.NationID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read directory", err)
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "Nation not found", nil)
		return
	}

	capacity := engine.ComputeCapacity(*snap, 0, h.Policy)
	writeJSON(w, http.StatusOK, toNationDTO(*snap, capacity))
}

// =============================================================================
// HELPERS
// =============================================================================

func planID(r *http.Request) engine.PlanID {
	return engine.PlanID(chi.URLParam(r, "id"))
}

func counterID(r *http.Request) engine.CounterID {
	return engine.CounterID(chi.URLParam(r, "id"))
}

func evalMode(s string) engine.EvaluationMode {
	if s == "manual" {
		return engine.EvalManual
	}
	return engine.EvalAuto
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine error categories onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsNotFound(err):
		status = http.StatusNotFound
	case engine.IsConflict(err):
		status = http.StatusConflict
	case engine.IsSuppression(err):
		status = http.StatusConflict
	case engine.IsClientError(err):
		status = http.StatusBadRequest
	}

	resp := ErrorResponse{Error: message, Details: err.Error()}
	var supErr *engine.SuppressionError
	if errors.As(err, &supErr) {
		resp.BlockingPlanID = string(supErr.PlanID)
	}
	writeJSON(w, status, resp)
}
