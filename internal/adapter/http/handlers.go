package http

import (
	"net/http"

	"github.com/recoverfleet/drsorch/internal/adapter/ws"
	"github.com/recoverfleet/drsorch/internal/port/messagequeue"
	"github.com/recoverfleet/drsorch/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Plans       *service.PlanService
	Monitor     *service.MonitorService
	Commands    *service.CommandService
	Termination *service.TerminationService
	Hub         *ws.Hub
	Queue       messagequeue.Queue
}

// Health reports process liveness plus the state of the NATS connection.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	natsState := "connected"
	if h.Queue == nil || !h.Queue.IsConnected() {
		status = http.StatusServiceUnavailable
		natsState = "disconnected"
	}

	writeJSON(w, status, map[string]any{
		"status":     http.StatusText(status),
		"nats":       natsState,
		"ws_clients": h.Hub.ConnectionCount(),
	})
}
