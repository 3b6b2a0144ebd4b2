package http

import (
	"context"
	"net/http"

	"github.com/recoverfleet/drsorch/internal/domain/plan"
)

// ListPlans returns all recovery plans.
func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	handleList(h.Plans.ListPlans)(w, r)
}

// GetPlan returns one recovery plan.
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Plans.GetPlan, "plan not found")(w, r)
}

// CreatePlan validates and stores a new recovery plan.
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	handleCreate(maxRequestBodySize, h.Plans.CreatePlan)(w, r)
}

// UpdatePlan replaces a plan, guarded by the version the editor last saw.
func (h *Handlers) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	handleUpdate(maxRequestBodySize, func(ctx context.Context, id string, req plan.UpdatePlanRequest) (*plan.RecoveryPlan, error) {
		return h.Plans.UpdatePlan(ctx, id, &req)
	}, "plan not found")(w, r)
}

// DeletePlan removes a plan.
func (h *Handlers) DeletePlan(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Plans.DeletePlan, "plan not found")(w, r)
}

// ValidatePlan runs full validation without persisting and returns the
// violation list, empty when the plan is clean.
func (h *Handlers) ValidatePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[plan.CreatePlanRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}

	violations, err := h.Plans.Validate(r.Context(), &req)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	entries := make([]violationEntry, len(violations))
	for i, v := range violations {
		entries[i] = violationEntry{WaveNumber: v.WaveNumber, WaveName: v.WaveName, Message: v.Message}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      len(entries) == 0,
		"violations": entries,
	})
}

// WaveDependencyChoices returns the wave numbers a wave may depend on.
func (h *Handlers) WaveDependencyChoices(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		WaveNumber int `json:"wave_number"`
	}](w, r, maxRequestBodySize)
	if !ok {
		return
	}

	choices := plan.DependencyChoices(req.WaveNumber)
	if choices == nil {
		choices = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"choices": choices})
}
