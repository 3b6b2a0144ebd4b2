package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "drsorch"

// Metrics holds all orchestrator metric instruments.
type Metrics struct {
	PollsTotal        metric.Int64Counter
	ActiveExecutions  metric.Int64Gauge
	StatusTransitions metric.Int64Counter
	CommandRejections metric.Int64Counter
	ReconcileDuration metric.Float64Histogram
	JobLogCacheMisses metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.PollsTotal, err = meter.Int64Counter("drsorch.monitor.polls",
		metric.WithDescription("Number of backend poll cycles"))
	if err != nil {
		return nil, err
	}

	m.ActiveExecutions, err = meter.Int64Gauge("drsorch.monitor.active_executions",
		metric.WithDescription("Executions in a non-terminal effective status after the last poll"))
	if err != nil {
		return nil, err
	}

	m.StatusTransitions, err = meter.Int64Counter("drsorch.monitor.status_transitions",
		metric.WithDescription("Observed execution and wave status transitions"))
	if err != nil {
		return nil, err
	}

	m.CommandRejections, err = meter.Int64Counter("drsorch.commands.rejections",
		metric.WithDescription("Commands rejected by lifecycle gating"))
	if err != nil {
		return nil, err
	}

	m.ReconcileDuration, err = meter.Float64Histogram("drsorch.monitor.reconcile_duration_seconds",
		metric.WithDescription("Time to reconcile one execution snapshot"))
	if err != nil {
		return nil, err
	}

	m.JobLogCacheMisses, err = meter.Int64Counter("drsorch.monitor.joblog_cache_misses",
		metric.WithDescription("Job-log fetches that could not be served from cache"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
