package execution

import (
	"fmt"

	"github.com/recoverfleet/drsorch/internal/domain"
)

// PendingCommand is the optimistic sub-state between issuing a command and
// the backend confirming it. It lives in the lifecycle model, not in any
// rendering layer, and is rolled back when the command fails so the action
// can be retried.
type PendingCommand string

const (
	PendingNone   PendingCommand = ""
	PendingCancel PendingCommand = "cancel"
	PendingResume PendingCommand = "resume"
)

// Controller gates user commands against the latest reconciled snapshot.
// Validity is re-checked immediately before a command is sent; any command
// the backend rejects anyway surfaces as a normal error.
//
// DisallowCancelOnFinalWave is a named deployment policy: when set, cancel
// is rejected once the execution has reached its final wave, since there is
// no remaining wave to abort and the cancellation would race natural
// completion. Default is to allow it.
type Controller struct {
	DisallowCancelOnFinalWave bool
}

// CanCancel reports whether the execution may be cancelled. Cancellation
// only abandons waves that have not started; a wave already in progress
// runs to completion.
func (c Controller) CanCancel(e *Execution, effective EffectiveStatus, pending PendingCommand) error {
	if effective.IsTerminal() {
		return fmt.Errorf("cancel: execution is already %s: %w", effective, domain.ErrInvalidTransition)
	}
	if e.Status == StatusCancelling || pending == PendingCancel {
		return fmt.Errorf("cancel: cancellation already requested: %w", domain.ErrInvalidTransition)
	}
	if c.DisallowCancelOnFinalWave && e.TotalWaves > 0 && e.CurrentWave >= e.TotalWaves-1 {
		return fmt.Errorf("cancel: execution is on its final wave: %w", domain.ErrInvalidTransition)
	}
	return nil
}

// CanResume reports whether the execution may be resumed. Only a paused
// execution resumes, and only once per pause: the optimistic pending state
// blocks duplicate sends until it is confirmed or rolled back.
func (c Controller) CanResume(e *Execution, pending PendingCommand) error {
	if e.Status != StatusPaused {
		return fmt.Errorf("resume: execution is %s, not paused: %w", e.Status, domain.ErrInvalidTransition)
	}
	if pending == PendingResume {
		return fmt.Errorf("resume: resume already requested: %w", domain.ErrInvalidTransition)
	}
	return nil
}

// CanTerminate reports whether recovered instances may be terminated.
// Termination is irreversible, so every guard must hold: the execution is
// terminal, at least one wave produced a DRS job (instances were actually
// launched), no wave is still running, and instances are not already gone.
func (c Controller) CanTerminate(e *Execution, effective EffectiveStatus, waveStatuses []EffectiveStatus) error {
	if !effective.IsTerminal() && e.Status != StatusPartial {
		return fmt.Errorf("terminate: execution is still %s: %w", effective, domain.ErrInvalidTransition)
	}
	if e.InstancesTerminated {
		return fmt.Errorf("terminate: instances already terminated: %w", domain.ErrInvalidTransition)
	}
	launched := false
	for i := range e.Waves {
		if e.Waves[i].JobID != "" {
			launched = true
			break
		}
	}
	if !launched {
		return fmt.Errorf("terminate: no wave launched any instances: %w", domain.ErrInvalidTransition)
	}
	for _, st := range waveStatuses {
		if st == EffectiveInProgress {
			return fmt.Errorf("terminate: a wave is still running: %w", domain.ErrInvalidTransition)
		}
	}
	return nil
}

// TerminationPercent computes termination progress independently from
// recovery progress: the ratio of completed termination jobs to total jobs,
// or 100 once the backend reports the instances terminated.
func TerminationPercent(completedJobs, totalJobs int, alreadyTerminated bool) int {
	if alreadyTerminated {
		return 100
	}
	if totalJobs <= 0 {
		return 0
	}
	pct := completedJobs * 100 / totalJobs
	return min(100, max(0, pct))
}
