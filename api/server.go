/*
server.go - HTTP router and middleware setup

PURPOSE:
  Builds the chi router, mounts all endpoint groups, and applies the
  middleware stack (request IDs, logging, panic recovery, CORS).

SEE ALSO:
  - handlers.go: The handler implementations
  - cmd/server/main.go: Server lifecycle and wiring
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the full route tree for the coordination API.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetPlan)
				r.Post("/activate", h.ActivatePlan)
				r.Post("/archive", h.ArchivePlan)
				r.Post("/publish", h.PublishPlan)

				r.Get("/alliances", h.ListAlliances)
				r.Post("/alliances", h.AddAlliance)
				r.Delete("/alliances/{linkID}", h.RemoveAlliance)

				r.Get("/targets", h.ListTargets)
				r.Post("/targets", h.AddTarget)
				r.Delete("/targets/{targetID}", h.RemoveTarget)
				r.Get("/targets/{targetID}/recommendations", h.TargetRecommendations)
				r.Post("/targets/{targetID}/assignments", h.ManualAssignPlan)

				r.Get("/assignments", h.ListPlanAssignments)
				r.Post("/assignments/{assignmentID}/confirm", h.ConfirmAssignment)
				r.Delete("/assignments/{assignmentID}", h.RemovePlanAssignment)

				r.Post("/auto-pick", h.AutoPickPlan)
				r.Post("/recompute", h.RecomputePriorities)

				r.Get("/squads", h.ListSquads)
				r.Post("/squads/rebuild", h.RebuildSquads)

				r.Get("/export", h.ExportPlan)
				r.Post("/import", h.ImportPlan)
			})
		})

		r.Route("/counters", func(r chi.Router) {
			r.Get("/", h.ListCounters)
			r.Post("/", h.CreateCounter)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCounter)
				r.Get("/recommendations", h.CounterRecommendations)

				r.Get("/assignments", h.ListCounterAssignments)
				r.Post("/assignments", h.ManualAssignCounter)
				r.Delete("/assignments/{assignmentID}", h.RemoveCounterAssignment)

				r.Post("/auto-pick", h.AutoPickCounter)
				r.Post("/finalize", h.FinalizeCounter)
				r.Post("/archive", h.ArchiveCounter)
				r.Post("/war-declared", h.RecordWarDeclared)
			})
		})

		r.Get("/nations/{id}", h.GetNation)

		r.Get("/scenarios", h.ListScenarios)
		r.Get("/scenarios/current", h.GetCurrentScenario)
		r.Post("/scenarios/load", h.LoadScenario)
	})

	return r
}
