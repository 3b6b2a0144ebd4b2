package execution

import "math"

// Phase weights for an in-progress wave. A wave earns the base once any job
// activity is observed, then each DRS phase's weight as its END event appears
// in the job log. Conversion dominates wall-clock time, hence its share.
const (
	progressBase     = 0.10
	weightSnapshot   = 0.05
	weightConversion = 0.60
	weightLaunch     = 0.25
)

// DefaultFailedWaveCredit is the fixed partial credit a failed wave
// contributes: it consumed effort but did not finish. A heuristic, tunable
// via config, not a load-bearing guarantee.
const DefaultFailedWaveCredit = 0.5

// Progress is the estimated completion of an execution.
type Progress struct {
	Percentage     int `json:"percentage"`
	CompletedWaves int `json:"completed_waves"`
	TotalWaves     int `json:"total_waves"`
}

// Estimator converts reconciled wave statuses into a 0-100% completion
// estimate. The zero value uses DefaultFailedWaveCredit.
type Estimator struct {
	FailedWaveCredit float64
}

// Estimate computes overall progress as the mean wave contribution across
// all TotalWaves from the plan; waves not yet started contribute 0.
// For a cancelled execution, every wave that did not reach completed is
// excluded from the denominator so cancellation does not retroactively
// depress the progress of work that did complete.
//
// The result is deterministic for a fixed snapshot and non-decreasing across
// an append-only sequence of snapshots of the same execution.
func (est Estimator) Estimate(e *Execution, eventsByWave map[int][]JobLogEvent) Progress {
	p := Progress{TotalWaves: e.TotalWaves}
	if p.TotalWaves < len(e.Waves) {
		p.TotalWaves = len(e.Waves)
	}
	if p.TotalWaves == 0 {
		return p
	}

	cancelled := e.Status == StatusCancelled

	var sum float64
	denominator := p.TotalWaves
	for i := range e.Waves {
		w := &e.Waves[i]
		events := eventsByWave[w.Number]
		status := ReconcileWave(w, events)

		if status == EffectiveCompleted {
			p.CompletedWaves++
		}

		if cancelled {
			// Only waves that actually finished keep their share. A wave
			// that was in flight at cancellation is abandoned, and it stays
			// abandoned even if its raw status later turns failed —
			// re-admitting it at partial credit would move the estimate
			// backwards.
			if status != EffectiveCompleted {
				denominator--
				continue
			}
		}

		sum += est.waveContribution(w, status, events)
	}

	if cancelled {
		// Waves the backend never materialized are abandoned too.
		denominator -= p.TotalWaves - len(e.Waves)
	}
	if denominator <= 0 {
		return p
	}

	pct := int(math.Round(sum / float64(denominator) * 100))
	p.Percentage = min(100, max(0, pct))
	return p
}

// waveContribution returns the wave's share of overall progress in [0, 1].
func (est Estimator) waveContribution(w *WaveExecution, status EffectiveStatus, events []JobLogEvent) float64 {
	switch status {
	case EffectiveCompleted:
		return 1.0
	case EffectiveFailed:
		credit := est.FailedWaveCredit
		if credit <= 0 {
			credit = DefaultFailedWaveCredit
		}
		// A failed wave keeps the progress it demonstrably made, floored
		// at the fixed credit, so the estimate never moves backwards.
		return max(credit, inFlightContribution(w, events))
	case EffectiveInProgress:
		return inFlightContribution(w, events)
	default:
		return 0
	}
}

// inFlightContribution is phase-weighted from the job log, or derived from
// per-server launch ratios when no log is available yet.
func inFlightContribution(w *WaveExecution, events []JobLogEvent) float64 {
	if len(events) > 0 {
		c := progressBase
		phases := phasesEnded(events)
		if phases[EventSnapshotEnd] {
			c += weightSnapshot
		}
		if phases[EventConversionEnd] {
			c += weightConversion
		}
		if phases[EventLaunchEnd] {
			c += weightLaunch
		}
		return min(c, 1.0)
	}

	if len(w.Servers) > 0 {
		launched := 0
		for i := range w.Servers {
			if w.Servers[i].LaunchStatus == LaunchLaunched {
				launched++
			}
		}
		ratio := float64(launched) / float64(len(w.Servers))
		return progressBase + ratio*(1.0-progressBase)
	}

	// In progress with no granular signal at all: base credit only.
	return progressBase
}

func phasesEnded(events []JobLogEvent) map[EventName]bool {
	phases := make(map[EventName]bool, 3)
	for i := range events {
		switch events[i].Event {
		case EventSnapshotEnd, EventConversionEnd, EventLaunchEnd:
			phases[events[i].Event] = true
		}
	}
	return phases
}
