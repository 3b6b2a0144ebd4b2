package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventExecutionStatus     = "execution.status"
	EventExecutionProgress   = "execution.progress"
	EventWaveStatus          = "wave.status"
	EventExecutionTerminated = "execution.terminated"
)

// ExecutionStatusEvent is broadcast when an execution's effective status changes.
type ExecutionStatusEvent struct {
	ExecutionID string `json:"execution_id"`
	PlanID      string `json:"plan_id"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// WaveStatusEvent is broadcast when a wave's effective status changes.
type WaveStatusEvent struct {
	ExecutionID string `json:"execution_id"`
	PlanID      string `json:"plan_id"`
	WaveNumber  int    `json:"wave_number"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// ExecutionProgressEvent is broadcast when an execution's progress estimate changes.
type ExecutionProgressEvent struct {
	ExecutionID    string `json:"execution_id"`
	PlanID         string `json:"plan_id"`
	Percentage     int    `json:"percentage"`
	CompletedWaves int    `json:"completed_waves"`
	TotalWaves     int    `json:"total_waves"`
}

// ExecutionTerminatedEvent is broadcast when recovery-instance termination finishes.
type ExecutionTerminatedEvent struct {
	ExecutionID     string `json:"execution_id"`
	TotalTerminated int    `json:"total_terminated"`
	TotalFailed     int    `json:"total_failed"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
