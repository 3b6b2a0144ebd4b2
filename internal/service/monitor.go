package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	drsotel "github.com/recoverfleet/drsorch/internal/adapter/otel"
	"github.com/recoverfleet/drsorch/internal/adapter/ws"
	"github.com/recoverfleet/drsorch/internal/config"
	"github.com/recoverfleet/drsorch/internal/domain/execution"
	"github.com/recoverfleet/drsorch/internal/port/broadcast"
	"github.com/recoverfleet/drsorch/internal/port/cache"
	"github.com/recoverfleet/drsorch/internal/port/executionstore"
	"github.com/recoverfleet/drsorch/internal/port/messagequeue"
)

// maxConcurrentReconciles bounds how many executions one poll cycle
// reconciles in parallel.
const maxConcurrentReconciles = 4

// ExecutionView is the reconciled, client-facing picture of one execution:
// the raw backend snapshot plus derived effective statuses and progress.
type ExecutionView struct {
	Execution    execution.Execution               `json:"execution"`
	Effective    execution.EffectiveStatus         `json:"effective_status"`
	WaveStatuses map[int]execution.EffectiveStatus `json:"wave_statuses"`
	Progress     execution.Progress                `json:"progress"`
}

// trackedExecution is the monitor's last observed state for one execution,
// used to detect transitions between polls.
type trackedExecution struct {
	effective execution.EffectiveStatus
	waves     map[int]execution.EffectiveStatus
	progress  int
}

// MonitorService polls the backend for execution snapshots, reconciles them
// into effective statuses, and emits transition events over NATS and
// WebSocket. Polling an unchanged snapshot emits nothing.
type MonitorService struct {
	backend   executionstore.Store
	cache     cache.Cache
	queue     messagequeue.Queue
	hub       broadcast.Broadcaster
	estimator execution.Estimator
	cfg       config.Monitor
	metrics   *drsotel.Metrics

	mu    sync.Mutex
	known map[string]*trackedExecution
}

// NewMonitorService creates a MonitorService.
func NewMonitorService(
	backend executionstore.Store,
	jobLogCache cache.Cache,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	estimator execution.Estimator,
	cfg config.Monitor,
) *MonitorService {
	return &MonitorService{
		backend:   backend,
		cache:     jobLogCache,
		queue:     queue,
		hub:       hub,
		estimator: estimator,
		cfg:       cfg,
		known:     make(map[string]*trackedExecution),
	}
}

// SetMetrics attaches metric instruments. Without them the monitor still
// works, it just records nothing.
func (s *MonitorService) SetMetrics(m *drsotel.Metrics) {
	s.metrics = m
}

// Start launches the polling loop. The loop slows down toward
// MaxPollInterval while every execution is terminal and snaps back to
// PollInterval as soon as one is active. It stops when ctx is cancelled.
func (s *MonitorService) Start(ctx context.Context) {
	go func() {
		interval := s.cfg.PollInterval
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				active, err := s.PollOnce(ctx)
				if err != nil {
					slog.Warn("monitor poll failed", "error", err)
				}

				next := s.nextInterval(interval, active)
				if next != interval {
					interval = next
					ticker.Reset(interval)
				}
			}
		}
	}()
}

// PollOnce fetches all executions, reconciles each, and emits events for
// every observed transition. It returns the number of active (non-terminal)
// executions.
func (s *MonitorService) PollOnce(ctx context.Context) (int, error) {
	ctx, span := drsotel.StartPollSpan(ctx)
	defer span.End()

	execs, err := s.backend.ListExecutions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list executions: %w", err)
	}

	var (
		mu     sync.Mutex
		active int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReconciles)

	for i := range execs {
		e := &execs[i]
		if s.terminalKnown(e.ID) {
			continue
		}
		g.Go(func() error {
			view, err := s.reconcile(gctx, e, true)
			if err != nil {
				slog.Warn("reconcile failed", "execution_id", e.ID, "error", err)
				return nil // one bad execution must not abort the poll
			}
			if !view.Effective.IsTerminal() {
				mu.Lock()
				active++
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return active, err
	}

	if s.metrics != nil {
		s.metrics.PollsTotal.Add(ctx, 1)
		s.metrics.ActiveExecutions.Record(ctx, int64(active))
	}
	return active, nil
}

// View returns the reconciled view of one execution, fetched fresh from the
// backend. It never emits events.
func (s *MonitorService) View(ctx context.Context, id string) (*ExecutionView, error) {
	e, err := s.backend.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, e, false)
}

// ListViews returns reconciled views of all executions without emitting
// events.
func (s *MonitorService) ListViews(ctx context.Context) ([]ExecutionView, error) {
	execs, err := s.backend.ListExecutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	views := make([]ExecutionView, 0, len(execs))
	for i := range execs {
		view, err := s.reconcile(ctx, &execs[i], false)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// reconcile derives the effective view of one execution. With emit set it
// also compares against the last observed state and publishes transition and
// progress events.
func (s *MonitorService) reconcile(ctx context.Context, e *execution.Execution, emit bool) (*ExecutionView, error) {
	ctx, span := drsotel.StartReconcileSpan(ctx, e.ID)
	defer span.End()

	start := time.Now()
	eventsByWave, err := s.collectJobLogs(ctx, e)
	if err != nil {
		return nil, err
	}

	waveStatuses := make(map[int]execution.EffectiveStatus, len(e.Waves))
	for i := range e.Waves {
		w := &e.Waves[i]
		waveStatuses[w.Number] = execution.ReconcileWave(w, eventsByWave[w.Number])
	}

	view := &ExecutionView{
		Execution:    *e,
		Effective:    execution.ReconcileExecution(e, eventsByWave),
		WaveStatuses: waveStatuses,
		Progress:     s.estimator.Estimate(e, eventsByWave),
	}

	if emit {
		s.emitTransitions(ctx, view)
	}
	if s.metrics != nil {
		s.metrics.ReconcileDuration.Record(ctx, time.Since(start).Seconds())
	}
	return view, nil
}

// collectJobLogs fetches the job-log events for every wave that has a job,
// going through the cache keyed by (execution, wave, job).
func (s *MonitorService) collectJobLogs(ctx context.Context, e *execution.Execution) (map[int][]execution.JobLogEvent, error) {
	eventsByWave := make(map[int][]execution.JobLogEvent)

	for i := range e.Waves {
		w := &e.Waves[i]
		if w.JobID == "" {
			continue
		}

		events, err := s.jobLogEvents(ctx, e.ID, w.Number, w.JobID)
		if err != nil {
			return nil, fmt.Errorf("job logs for wave %d: %w", w.Number, err)
		}
		eventsByWave[w.Number] = events
	}
	return eventsByWave, nil
}

func (s *MonitorService) jobLogEvents(ctx context.Context, executionID string, waveNumber int, jobID string) ([]execution.JobLogEvent, error) {
	key := jobLogCacheKey(executionID, waveNumber, jobID)

	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var events []execution.JobLogEvent
		if err := json.Unmarshal(data, &events); err == nil {
			return events, nil
		}
		// Corrupt entry: drop it and refetch.
		_ = s.cache.Delete(ctx, key)
	}

	if s.metrics != nil {
		s.metrics.JobLogCacheMisses.Add(ctx, 1)
	}

	logs, err := s.backend.GetJobLogs(ctx, executionID, jobID)
	if err != nil {
		return nil, err
	}

	var events []execution.JobLogEvent
	for i := range logs {
		if logs[i].WaveNumber == waveNumber {
			events = append(events, logs[i].Events...)
		}
	}

	if data, err := json.Marshal(events); err == nil {
		_ = s.cache.Set(ctx, key, data, s.cfg.JobLogCacheTTL)
	}
	return events, nil
}

// emitTransitions diffs the view against the last observed state and
// publishes one event per transition. The first observation of an execution
// emits its current state as a transition from "".
func (s *MonitorService) emitTransitions(ctx context.Context, view *ExecutionView) {
	e := &view.Execution

	s.mu.Lock()
	prev, seen := s.known[e.ID]
	if !seen {
		prev = &trackedExecution{waves: make(map[int]execution.EffectiveStatus)}
		prev.progress = -1
		s.known[e.ID] = prev
	}

	type waveTransition struct {
		number   int
		from, to execution.EffectiveStatus
	}
	var waveTransitions []waveTransition
	for i := range e.Waves {
		n := e.Waves[i].Number
		to := view.WaveStatuses[n]
		if from := prev.waves[n]; from != to {
			waveTransitions = append(waveTransitions, waveTransition{number: n, from: from, to: to})
			prev.waves[n] = to
		}
	}

	execFrom, execTo := prev.effective, view.Effective
	execChanged := execFrom != execTo
	prev.effective = execTo

	progressChanged := prev.progress != view.Progress.Percentage
	prev.progress = view.Progress.Percentage
	s.mu.Unlock()

	if s.metrics != nil {
		transitions := int64(len(waveTransitions))
		if execChanged {
			transitions++
		}
		if transitions > 0 {
			s.metrics.StatusTransitions.Add(ctx, transitions)
		}
	}

	for _, tr := range waveTransitions {
		// A wave status change can shift which job-log entries matter, so
		// the cached entry for that wave is dropped. First observations
		// (from "") are not changes.
		if jobID := waveJobID(e, tr.number); jobID != "" && tr.from != "" {
			_ = s.cache.Delete(ctx, jobLogCacheKey(e.ID, tr.number, jobID))
		}

		s.hub.BroadcastEvent(ctx, ws.EventWaveStatus, ws.WaveStatusEvent{
			ExecutionID: e.ID,
			PlanID:      e.PlanID,
			WaveNumber:  tr.number,
			From:        string(tr.from),
			To:          string(tr.to),
		})
		s.publish(ctx, messagequeue.SubjectExecutionStatus+"."+e.ID, messagequeue.ExecutionStatusPayload{
			ExecutionID: e.ID,
			PlanID:      e.PlanID,
			WaveNumber:  tr.number,
			From:        string(tr.from),
			To:          string(tr.to),
		})
	}

	if execChanged {
		s.hub.BroadcastEvent(ctx, ws.EventExecutionStatus, ws.ExecutionStatusEvent{
			ExecutionID: e.ID,
			PlanID:      e.PlanID,
			From:        string(execFrom),
			To:          string(execTo),
		})
		s.publish(ctx, messagequeue.SubjectExecutionStatus+"."+e.ID, messagequeue.ExecutionStatusPayload{
			ExecutionID: e.ID,
			PlanID:      e.PlanID,
			WaveNumber:  -1,
			From:        string(execFrom),
			To:          string(execTo),
		})
	}

	if progressChanged {
		s.hub.BroadcastEvent(ctx, ws.EventExecutionProgress, ws.ExecutionProgressEvent{
			ExecutionID:    e.ID,
			PlanID:         e.PlanID,
			Percentage:     view.Progress.Percentage,
			CompletedWaves: view.Progress.CompletedWaves,
			TotalWaves:     view.Progress.TotalWaves,
		})
		s.publish(ctx, messagequeue.SubjectExecutionProgress+"."+e.ID, messagequeue.ExecutionProgressPayload{
			ExecutionID:    e.ID,
			PlanID:         e.PlanID,
			Percentage:     view.Progress.Percentage,
			CompletedWaves: view.Progress.CompletedWaves,
			TotalWaves:     view.Progress.TotalWaves,
		})
	}
}

func (s *MonitorService) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish queue event", "subject", subject, "error", err)
	}
}

// terminalKnown reports whether the execution's last observed effective
// status was terminal. Terminal executions drop out of the poll cycle; their
// final state was already emitted and on-demand views stay available.
func (s *MonitorService) terminalKnown(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.known[id]
	return ok && prev.effective.IsTerminal()
}

// nextInterval implements the adaptive poll cadence: back off exponentially
// toward MaxPollInterval while nothing is running, return to PollInterval
// when something is.
func (s *MonitorService) nextInterval(current time.Duration, active int) time.Duration {
	if active > 0 {
		return s.cfg.PollInterval
	}
	next := current * 2
	if next > s.cfg.MaxPollInterval {
		next = s.cfg.MaxPollInterval
	}
	if next < s.cfg.MinPollInterval {
		next = s.cfg.MinPollInterval
	}
	return next
}

func jobLogCacheKey(executionID string, waveNumber int, jobID string) string {
	return fmt.Sprintf("joblogs/%s/%d/%s", executionID, waveNumber, jobID)
}

func waveJobID(e *execution.Execution, waveNumber int) string {
	for i := range e.Waves {
		if e.Waves[i].Number == waveNumber {
			return e.Waves[i].JobID
		}
	}
	return ""
}

var _ broadcast.Broadcaster = (*ws.Hub)(nil)
