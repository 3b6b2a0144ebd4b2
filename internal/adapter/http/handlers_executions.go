package http

import (
	"net/http"
)

// ListExecutions returns the reconciled view of every execution.
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	views, err := h.Monitor.ListViews(r.Context())
	if err != nil {
		writeDomainError(w, err, "executions unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": views})
}

// GetExecution returns the reconciled view of one execution.
func (h *Handlers) GetExecution(w http.ResponseWriter, r *http.Request) {
	view, err := h.Monitor.View(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// StartExecution begins recovery for a plan.
func (h *Handlers) StartExecution(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		PlanID string `json:"plan_id"`
	}](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	e, err := h.Commands.Start(r.Context(), req.PlanID)
	if err != nil {
		writeDomainError(w, err, "plan not found")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// CancelExecution requests cancellation of a running execution.
func (h *Handlers) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.Commands.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, err, "execution not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"execution_id": id, "command": "cancel"})
}

// ResumeExecution continues a paused execution past its pause gate.
func (h *Handlers) ResumeExecution(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.Commands.Resume(r.Context(), id); err != nil {
		writeDomainError(w, err, "execution not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"execution_id": id, "command": "resume"})
}

// TerminateInstances terminates the recovery instances an execution launched.
func (h *Handlers) TerminateInstances(w http.ResponseWriter, r *http.Request) {
	result, err := h.Termination.Terminate(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "execution not found")
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// TerminationStatus returns aggregated termination-job progress.
func (h *Handlers) TerminationStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.Termination.Status(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no termination in flight")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
