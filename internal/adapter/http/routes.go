package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/healthz", h.Health)
	r.Get("/ws", h.Hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Recovery plans
		r.Get("/plans", h.ListPlans)
		r.Post("/plans", h.CreatePlan)
		r.Post("/plans/validate", h.ValidatePlan)
		r.Post("/plans/wave-dependencies", h.WaveDependencyChoices)
		r.Get("/plans/{id}", h.GetPlan)
		r.Put("/plans/{id}", h.UpdatePlan)
		r.Delete("/plans/{id}", h.DeletePlan)

		// Protection groups
		r.Get("/protection-groups", h.ListProtectionGroups)
		r.Post("/protection-groups", h.CreateProtectionGroup)
		r.Post("/protection-groups/availability", h.GroupAvailability)
		r.Get("/protection-groups/{id}", h.GetProtectionGroup)
		r.Put("/protection-groups/{id}", h.UpdateProtectionGroup)
		r.Delete("/protection-groups/{id}", h.DeleteProtectionGroup)

		// Executions (reconciled views; all state lives in the backend)
		r.Get("/executions", h.ListExecutions)
		r.Post("/executions", h.StartExecution)
		r.Get("/executions/{id}", h.GetExecution)

		// Lifecycle commands
		r.Post("/executions/{id}/cancel", h.CancelExecution)
		r.Post("/executions/{id}/resume", h.ResumeExecution)
		r.Post("/executions/{id}/terminate", h.TerminateInstances)
		r.Get("/executions/{id}/termination", h.TerminationStatus)
	})
}
