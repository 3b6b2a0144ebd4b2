// Package executionstore defines the port to the DRS orchestration backend:
// the external system that owns all execution state. The core only reads
// snapshots from it and forwards validated commands.
package executionstore

import (
	"context"

	"github.com/recoverfleet/drsorch/internal/domain/execution"
)

// JobLog is one DRS job's event history for a wave.
type JobLog struct {
	WaveNumber int                     `json:"wave_number"`
	JobID      string                  `json:"job_id"`
	Events     []execution.JobLogEvent `json:"events"`
}

// TerminationJob identifies one asynchronous instance-termination job.
// Recovered instances may reside in a staging account distinct from the
// target account, so termination can fan out to one job per account/region.
type TerminationJob struct {
	JobID  string `json:"job_id"`
	Region string `json:"region"`
}

// TerminateResult is the backend's answer to a terminate-instances command.
type TerminateResult struct {
	AlreadyTerminated bool             `json:"already_terminated"`
	TotalTerminated   int              `json:"total_terminated"`
	TotalFailed       int              `json:"total_failed"`
	Jobs              []TerminationJob `json:"jobs"`
}

// TerminationStatus is the aggregated progress of termination jobs in one region.
type TerminationStatus struct {
	ProgressPercent  int  `json:"progress_percent"`
	AllCompleted     bool `json:"all_completed"`
	AnyFailed        bool `json:"any_failed"`
	CompletedServers int  `json:"completed_servers"`
	TotalServers     int  `json:"total_servers"`
}

// Store is the port interface to the execution backend. All calls are
// remote; implementations must honor ctx cancellation.
type Store interface {
	ListExecutions(ctx context.Context) ([]execution.Execution, error)
	GetExecution(ctx context.Context, id string) (*execution.Execution, error)
	GetJobLogs(ctx context.Context, executionID, jobID string) ([]JobLog, error)

	StartExecution(ctx context.Context, planID string) (*execution.Execution, error)
	CancelExecution(ctx context.Context, id string) error
	ResumeExecution(ctx context.Context, id string) error
	TerminateRecoveryInstances(ctx context.Context, id string) (*TerminateResult, error)
	GetTerminationStatus(ctx context.Context, id string, jobIDs []string, region string) (*TerminationStatus, error)
}
