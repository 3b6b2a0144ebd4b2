package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	drsotel "github.com/recoverfleet/drsorch/internal/adapter/otel"
	"github.com/recoverfleet/drsorch/internal/domain/execution"
	"github.com/recoverfleet/drsorch/internal/domain/plan"
	"github.com/recoverfleet/drsorch/internal/port/database"
	"github.com/recoverfleet/drsorch/internal/port/executionstore"
	"github.com/recoverfleet/drsorch/internal/port/messagequeue"
)

// CommandService gates and forwards execution lifecycle commands. All state
// lives in the backend; this service only validates a command against the
// freshest reconciled view and tracks an optimistic pending flag so the same
// command cannot be issued twice while the backend catches up.
type CommandService struct {
	backend    executionstore.Store
	db         database.Store
	queue      messagequeue.Queue
	monitor    *MonitorService
	controller execution.Controller
	metrics    *drsotel.Metrics

	mu      sync.Mutex
	pending map[string]execution.PendingCommand
}

// NewCommandService creates a CommandService.
func NewCommandService(
	backend executionstore.Store,
	db database.Store,
	queue messagequeue.Queue,
	monitor *MonitorService,
	controller execution.Controller,
) *CommandService {
	return &CommandService{
		backend:    backend,
		db:         db,
		queue:      queue,
		monitor:    monitor,
		controller: controller,
		pending:    make(map[string]execution.PendingCommand),
	}
}

// SetMetrics attaches metric instruments.
func (s *CommandService) SetMetrics(m *drsotel.Metrics) {
	s.metrics = m
}

// Start begins recovery for a plan. The plan must exist and have at least
// one wave; everything else the backend decides.
func (s *CommandService) Start(ctx context.Context, planID string) (*execution.Execution, error) {
	ctx, span := drsotel.StartCommandSpan(ctx, "", "start")
	defer span.End()

	p, err := s.db.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", planID, err)
	}
	if len(p.Waves) == 0 {
		return nil, &ValidationError{Violations: []plan.Violation{
			{WaveNumber: -1, Message: "plan has no waves to execute", Err: plan.ErrNoWaves},
		}}
	}

	e, err := s.backend.StartExecution(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("start execution for plan %s: %w", planID, err)
	}

	s.publishCommand(ctx, e.ID, "start")
	slog.Info("execution started", "execution_id", e.ID, "plan_id", planID)
	return e, nil
}

// Cancel requests cancellation of a running execution.
func (s *CommandService) Cancel(ctx context.Context, id string) error {
	ctx, span := drsotel.StartCommandSpan(ctx, id, "cancel")
	defer span.End()

	view, err := s.monitor.View(ctx, id)
	if err != nil {
		return err
	}

	if err := s.claim(id, view, execution.PendingCancel, func(pending execution.PendingCommand) error {
		return s.controller.CanCancel(&view.Execution, view.Effective, pending)
	}); err != nil {
		s.countRejection(ctx)
		return err
	}

	if err := s.backend.CancelExecution(ctx, id); err != nil {
		s.release(id)
		return fmt.Errorf("cancel execution %s: %w", id, err)
	}

	s.publishCommand(ctx, id, "cancel")
	slog.Info("execution cancel requested", "execution_id", id)
	return nil
}

// Resume continues a paused execution past its pause gate.
func (s *CommandService) Resume(ctx context.Context, id string) error {
	ctx, span := drsotel.StartCommandSpan(ctx, id, "resume")
	defer span.End()

	view, err := s.monitor.View(ctx, id)
	if err != nil {
		return err
	}

	if err := s.claim(id, view, execution.PendingResume, func(pending execution.PendingCommand) error {
		return s.controller.CanResume(&view.Execution, pending)
	}); err != nil {
		s.countRejection(ctx)
		return err
	}

	if err := s.backend.ResumeExecution(ctx, id); err != nil {
		s.release(id)
		return fmt.Errorf("resume execution %s: %w", id, err)
	}

	s.publishCommand(ctx, id, "resume")
	slog.Info("execution resume requested", "execution_id", id)
	return nil
}

// Pending returns the optimistic pending command for an execution, if any.
func (s *CommandService) Pending(id string) execution.PendingCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id]
}

// claim runs the gate under the pending lock and, when it passes, records
// cmd as the execution's pending command. A pending flag whose effect the
// backend already reflects is cleared first, so a stale flag cannot wedge
// the execution.
func (s *CommandService) claim(id string, view *ExecutionView, cmd execution.PendingCommand, gate func(execution.PendingCommand) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if confirmed(s.pending[id], view) {
		delete(s.pending, id)
	}

	if err := gate(s.pending[id]); err != nil {
		return err
	}
	s.pending[id] = cmd
	return nil
}

func (s *CommandService) countRejection(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.CommandRejections.Add(ctx, 1)
	}
}

func (s *CommandService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// confirmed reports whether the backend snapshot already reflects the
// pending command's effect.
func confirmed(pending execution.PendingCommand, view *ExecutionView) bool {
	switch pending {
	case execution.PendingCancel:
		return view.Execution.Status == execution.StatusCancelling || view.Effective.IsTerminal()
	case execution.PendingResume:
		return view.Execution.Status != execution.StatusPaused
	default:
		return false
	}
}

func (s *CommandService) publishCommand(ctx context.Context, id, command string) {
	payload := messagequeue.ExecutionCommandPayload{
		ExecutionID: id,
		Command:     command,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal command payload", "error", err)
		return
	}
	subject := messagequeue.SubjectExecutionCommand + "." + id
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish command event", "subject", subject, "error", err)
	}
}
