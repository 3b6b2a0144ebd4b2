// Package execution defines the recovery execution domain model and the
// state logic derived from it: status reconciliation, progress estimation,
// and the command lifecycle gate.
//
// The core never mutates persisted state. It operates on read-only snapshots
// fetched from the orchestration backend and proposes commands.
package execution

import "time"

// Status is the execution-level status as reported by the backend.
type Status string

const (
	StatusPending    Status = "pending"
	StatusStarted    Status = "started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
)

// IsTerminal returns true once the execution can no longer change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusPartial:
		return true
	}
	return false
}

// EffectiveStatus is the single authoritative wave/execution status derived
// from the backend's eventually-consistent signals. Every consumer uses this
// type; the raw vocabulary is normalized in exactly one place (reconcile.go).
type EffectiveStatus string

const (
	EffectivePending    EffectiveStatus = "pending"
	EffectiveInProgress EffectiveStatus = "in_progress"
	EffectiveCompleted  EffectiveStatus = "completed"
	EffectiveFailed     EffectiveStatus = "failed"
	EffectiveCancelled  EffectiveStatus = "cancelled"
)

// IsTerminal returns true if the status is final.
func (s EffectiveStatus) IsTerminal() bool {
	switch s {
	case EffectiveCompleted, EffectiveFailed, EffectiveCancelled:
		return true
	}
	return false
}

// LaunchStatus is the per-server launch state reported by DRS.
type LaunchStatus string

const (
	LaunchPending       LaunchStatus = "PENDING"
	LaunchPendingLaunch LaunchStatus = "PENDING_LAUNCH"
	LaunchInProgress    LaunchStatus = "IN_PROGRESS"
	LaunchLaunching     LaunchStatus = "LAUNCHING"
	LaunchLaunched      LaunchStatus = "LAUNCHED"
	LaunchFailed        LaunchStatus = "FAILED"
	LaunchTerminated    LaunchStatus = "TERMINATED"
)

// Execution is one run of a recovery plan, fetched as a snapshot from the
// orchestration backend. TotalWaves comes from the plan and may exceed the
// number of waves that have actually started.
type Execution struct {
	ID                  string          `json:"id"`
	PlanID              string          `json:"plan_id"`
	PlanName            string          `json:"plan_name,omitempty"`
	Status              Status          `json:"status"`
	CurrentWave         int             `json:"current_wave"`
	TotalWaves          int             `json:"total_waves"`
	StartedAt           time.Time       `json:"started_at"`
	EndedAt             *time.Time      `json:"ended_at,omitempty"`
	Error               string          `json:"error,omitempty"`
	InstancesTerminated bool            `json:"instances_terminated"`
	Waves               []WaveExecution `json:"waves"`
}

// WaveExecution is the backend's view of one wave within an execution.
// RawStatus uses heterogeneous casing and vocabulary across backend phases;
// never branch on it directly — go through ReconcileWave.
type WaveExecution struct {
	Number    int               `json:"number"`
	RawStatus string            `json:"status"`
	JobID     string            `json:"job_id,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
	Servers   []ServerExecution `json:"servers,omitempty"`
}

// ServerExecution is the launch state of one source server within a wave.
type ServerExecution struct {
	ServerID            string       `json:"server_id"`
	LaunchStatus        LaunchStatus `json:"launch_status,omitempty"`
	RecoveredInstanceID string       `json:"recovered_instance_id,omitempty"`
	Error               string       `json:"error,omitempty"`
}

// EventName identifies a DRS job log event.
type EventName string

const (
	EventJobStart        EventName = "JOB_START"
	EventSnapshotStart   EventName = "SNAPSHOT_START"
	EventSnapshotEnd     EventName = "SNAPSHOT_END"
	EventConversionStart EventName = "CONVERSION_START"
	EventConversionEnd   EventName = "CONVERSION_END"
	EventLaunchStart     EventName = "LAUNCH_START"
	EventLaunchEnd       EventName = "LAUNCH_END"
	EventJobEnd          EventName = "JOB_END"
	EventCleanupStart    EventName = "CLEANUP_START"
	EventCleanupEnd      EventName = "CLEANUP_END"
	EventCleanupFail     EventName = "CLEANUP_FAIL"
)

// JobLogEvent is one entry in a DRS job's event log.
type JobLogEvent struct {
	JobID          string    `json:"job_id"`
	WaveNumber     int       `json:"wave_number"`
	Event          EventName `json:"event"`
	Timestamp      time.Time `json:"timestamp"`
	SourceServerID string    `json:"source_server_id,omitempty"`
	Error          string    `json:"error,omitempty"`
}
