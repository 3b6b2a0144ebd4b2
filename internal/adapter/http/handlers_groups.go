package http

import (
	"net/http"

	"github.com/recoverfleet/drsorch/internal/domain/plan"
	"github.com/recoverfleet/drsorch/internal/domain/protectiongroup"
)

// ListProtectionGroups returns all protection groups.
func (h *Handlers) ListProtectionGroups(w http.ResponseWriter, r *http.Request) {
	handleList(h.Plans.ListProtectionGroups)(w, r)
}

// GetProtectionGroup returns one protection group.
func (h *Handlers) GetProtectionGroup(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Plans.GetProtectionGroup, "protection group not found")(w, r)
}

// CreateProtectionGroup stores a new protection group.
func (h *Handlers) CreateProtectionGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := readJSON[protectiongroup.ProtectionGroup](w, r, maxRequestBodySize)
	if !ok {
		return
	}

	if err := h.Plans.CreateProtectionGroup(r.Context(), &g); err != nil {
		writeDomainError(w, err, "creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// UpdateProtectionGroup replaces a protection group, guarded by the version
// the editor last saw.
func (h *Handlers) UpdateProtectionGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := readJSON[protectiongroup.ProtectionGroup](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	g.ID = urlParam(r, "id")

	if err := h.Plans.UpdateProtectionGroup(r.Context(), &g); err != nil {
		writeDomainError(w, err, "protection group not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// DeleteProtectionGroup removes a protection group.
func (h *Handlers) DeleteProtectionGroup(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Plans.DeleteProtectionGroup, "protection group not found")(w, r)
}

// GroupAvailability reports how many servers each protection group still has
// unclaimed, given a draft plan's waves and the wave being edited.
func (h *Handlers) GroupAvailability(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Waves      []plan.Wave `json:"waves"`
		WaveNumber int         `json:"wave_number"`
	}](w, r, maxRequestBodySize)
	if !ok {
		return
	}

	avail, err := h.Plans.GroupAvailability(r.Context(), req.Waves, req.WaveNumber)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": avail})
}
