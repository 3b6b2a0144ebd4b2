package execution

import "strings"

// ReconcileWave derives the authoritative status of a wave from three
// possibly-inconsistent signals, in priority order:
//
//  1. terminal raw statuses are authoritative and never downgraded;
//  2. per-server launch statuses, which are more current than the wave's
//     own status field;
//  3. job log evidence, when no server data exists yet;
//  4. the raw status mapped through the normalization table.
//
// Missing signals (no servers, no events) never fail; the reconciler
// degrades to the least-specific applicable signal. The result is
// idempotent: feeding it back in as the raw status yields itself.
func ReconcileWave(w *WaveExecution, events []JobLogEvent) EffectiveStatus {
	raw := NormalizeWaveStatus(w.RawStatus)
	if raw.IsTerminal() {
		return raw
	}

	if len(w.Servers) > 0 {
		if st, ok := statusFromServers(w.Servers); ok {
			return st
		}
	} else if len(events) > 0 {
		return statusFromEvents(events)
	}

	return raw
}

// statusFromServers aggregates per-server launch statuses. Returns ok=false
// when the servers carry no decisive signal (e.g. all still PENDING).
func statusFromServers(servers []ServerExecution) (EffectiveStatus, bool) {
	allLaunched := true
	anyInFlight := false
	for i := range servers {
		switch servers[i].LaunchStatus {
		case LaunchFailed:
			return EffectiveFailed, true
		case LaunchLaunched:
			// counts toward allLaunched
		case LaunchInProgress, LaunchLaunching, LaunchPendingLaunch:
			allLaunched = false
			anyInFlight = true
		default:
			allLaunched = false
		}
	}
	if allLaunched {
		// Raw wave status lags reality; all servers launched means done.
		return EffectiveCompleted, true
	}
	if anyInFlight {
		return EffectiveInProgress, true
	}
	return "", false
}

// statusFromEvents infers wave status from the job log alone. A JOB_END
// paired with one LAUNCH_END per server seen in the log implies the wave
// finished; any event at all implies it is underway.
func statusFromEvents(events []JobLogEvent) EffectiveStatus {
	jobEnded := false
	expected := make(map[string]bool)
	launched := make(map[string]bool)
	for i := range events {
		ev := &events[i]
		if ev.Event == EventJobEnd {
			jobEnded = true
		}
		if ev.SourceServerID == "" {
			continue
		}
		expected[ev.SourceServerID] = true
		if ev.Event == EventLaunchEnd {
			launched[ev.SourceServerID] = true
		}
	}
	if jobEnded && len(expected) > 0 && len(launched) == len(expected) {
		return EffectiveCompleted
	}
	return EffectiveInProgress
}

// NormalizeWaveStatus collapses the backend's heterogeneous raw status
// vocabulary (mixed casing, synonyms) into one EffectiveStatus. Unrecognized
// values pass through unchanged, lowercased.
func NormalizeWaveStatus(raw string) EffectiveStatus {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "", "pending", "not_started":
		return EffectivePending
	case "started", "polling", "launching", "initiated", "in_progress":
		return EffectiveInProgress
	case "completed":
		return EffectiveCompleted
	case "failed":
		return EffectiveFailed
	case "cancelled", "canceled":
		return EffectiveCancelled
	default:
		return EffectiveStatus(s)
	}
}

// ReconcileExecution derives the execution-level status from its waves.
// eventsByWave may be nil or partial; missing logs degrade gracefully.
// Completion requires every plan wave to finish, not merely every wave
// that has been attempted.
func ReconcileExecution(e *Execution, eventsByWave map[int][]JobLogEvent) EffectiveStatus {
	anyFailed := false
	anyActive := false
	completed := 0
	for i := range e.Waves {
		w := &e.Waves[i]
		switch ReconcileWave(w, eventsByWave[w.Number]) {
		case EffectiveFailed:
			anyFailed = true
		case EffectiveCompleted:
			completed++
		case EffectiveInProgress:
			anyActive = true
		}
	}

	switch {
	case anyFailed:
		return EffectiveFailed
	case e.Status == StatusCancelled:
		return EffectiveCancelled
	case e.TotalWaves > 0 && completed >= e.TotalWaves:
		return EffectiveCompleted
	case anyActive || completed > 0 || e.Status == StatusInProgress || e.Status == StatusStarted || e.Status == StatusPaused || e.Status == StatusCancelling:
		return EffectiveInProgress
	default:
		return EffectivePending
	}
}
