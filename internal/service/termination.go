package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/recoverfleet/drsorch/internal/adapter/ws"
	"github.com/recoverfleet/drsorch/internal/domain"
	"github.com/recoverfleet/drsorch/internal/domain/execution"
	"github.com/recoverfleet/drsorch/internal/port/broadcast"
	"github.com/recoverfleet/drsorch/internal/port/executionstore"
	"github.com/recoverfleet/drsorch/internal/port/messagequeue"
)

// TerminationView is the aggregated progress of an execution's
// instance-termination jobs across all regions they were fanned out to.
type TerminationView struct {
	ExecutionID      string `json:"execution_id"`
	ProgressPercent  int    `json:"progress_percent"`
	AllCompleted     bool   `json:"all_completed"`
	AnyFailed        bool   `json:"any_failed"`
	CompletedServers int    `json:"completed_servers"`
	TotalServers     int    `json:"total_servers"`
}

// TerminationService terminates the recovery instances an execution launched
// and tracks the asynchronous termination jobs the backend fans out, one per
// account/region the instances recovered into.
type TerminationService struct {
	backend    executionstore.Store
	queue      messagequeue.Queue
	hub        broadcast.Broadcaster
	monitor    *MonitorService
	controller execution.Controller

	mu   sync.Mutex
	jobs map[string][]executionstore.TerminationJob
}

// NewTerminationService creates a TerminationService.
func NewTerminationService(
	backend executionstore.Store,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	monitor *MonitorService,
	controller execution.Controller,
) *TerminationService {
	return &TerminationService{
		backend:    backend,
		queue:      queue,
		hub:        hub,
		monitor:    monitor,
		controller: controller,
		jobs:       make(map[string][]executionstore.TerminationJob),
	}
}

// Terminate asks the backend to terminate every recovery instance the
// execution launched. Terminating an execution whose instances are already
// gone succeeds idempotently.
func (s *TerminationService) Terminate(ctx context.Context, id string) (*executionstore.TerminateResult, error) {
	view, err := s.monitor.View(ctx, id)
	if err != nil {
		return nil, err
	}

	waveStatuses := make([]execution.EffectiveStatus, 0, len(view.WaveStatuses))
	for _, status := range view.WaveStatuses {
		waveStatuses = append(waveStatuses, status)
	}

	if err := s.controller.CanTerminate(&view.Execution, view.Effective, waveStatuses); err != nil {
		if view.Execution.InstancesTerminated {
			// Repeating a finished termination is a no-op, not an error.
			return &executionstore.TerminateResult{AlreadyTerminated: true}, nil
		}
		return nil, err
	}

	result, err := s.backend.TerminateRecoveryInstances(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("terminate instances %s: %w", id, err)
	}

	if len(result.Jobs) > 0 {
		s.mu.Lock()
		s.jobs[id] = result.Jobs
		s.mu.Unlock()
	}

	s.announce(ctx, id, result)
	slog.Info("instance termination requested",
		"execution_id", id, "jobs", len(result.Jobs), "already_terminated", result.AlreadyTerminated)
	return result, nil
}

// Status aggregates the progress of an execution's termination jobs. With no
// recorded jobs it answers from the execution snapshot alone: done when the
// backend says the instances are gone, domain.ErrNotFound otherwise.
func (s *TerminationService) Status(ctx context.Context, id string) (*TerminationView, error) {
	s.mu.Lock()
	jobs := s.jobs[id]
	s.mu.Unlock()

	if len(jobs) == 0 {
		e, err := s.backend.GetExecution(ctx, id)
		if err != nil {
			return nil, err
		}
		if e.InstancesTerminated {
			return &TerminationView{
				ExecutionID:     id,
				ProgressPercent: 100,
				AllCompleted:    true,
			}, nil
		}
		return nil, fmt.Errorf("no termination in flight for execution %s: %w", id, domain.ErrNotFound)
	}

	byRegion := make(map[string][]string)
	for _, job := range jobs {
		byRegion[job.Region] = append(byRegion[job.Region], job.JobID)
	}

	view := &TerminationView{ExecutionID: id, AllCompleted: true}
	for region, jobIDs := range byRegion {
		status, err := s.backend.GetTerminationStatus(ctx, id, jobIDs, region)
		if err != nil {
			return nil, fmt.Errorf("termination status in %s: %w", region, err)
		}

		view.CompletedServers += status.CompletedServers
		view.TotalServers += status.TotalServers
		view.AllCompleted = view.AllCompleted && status.AllCompleted
		view.AnyFailed = view.AnyFailed || status.AnyFailed
	}

	view.ProgressPercent = execution.TerminationPercent(view.CompletedServers, view.TotalServers, false)
	if view.AllCompleted {
		view.ProgressPercent = 100
	}
	return view, nil
}

func (s *TerminationService) announce(ctx context.Context, id string, result *executionstore.TerminateResult) {
	s.hub.BroadcastEvent(ctx, ws.EventExecutionTerminated, ws.ExecutionTerminatedEvent{
		ExecutionID:     id,
		TotalTerminated: result.TotalTerminated,
		TotalFailed:     result.TotalFailed,
	})

	payload := messagequeue.ExecutionTerminatedPayload{
		ExecutionID:     id,
		TotalTerminated: result.TotalTerminated,
		TotalFailed:     result.TotalFailed,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal terminated payload", "error", err)
		return
	}
	subject := messagequeue.SubjectExecutionTerminated + "." + id
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish terminated event", "subject", subject, "error", err)
	}
}
