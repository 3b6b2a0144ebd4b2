package plan

import (
	"errors"
	"fmt"

	"github.com/recoverfleet/drsorch/internal/domain/protectiongroup"
)

// DefaultMaxServersPerWave is the per-wave server quota enforced by DRS
// batch launch limits.
const DefaultMaxServersPerWave = 100

var (
	ErrNameRequired       = errors.New("name is required")
	ErrRegionRequired     = errors.New("target_region is required")
	ErrAccountRequired    = errors.New("target_account_id is required")
	ErrNoWaves            = errors.New("at least one wave is required")
	ErrWaveNumbering      = errors.New("wave numbers must be contiguous from 0")
	ErrNoProtectionGroups = errors.New("wave must reference at least one protection group")
	ErrForwardDependency  = errors.New("wave may depend only on lower-numbered waves")
	ErrNoServers          = errors.New("wave with enumerated protection groups must have at least one server")
	ErrTooManyServers     = errors.New("wave exceeds the per-wave server limit")
	ErrUnknownGroup       = errors.New("wave references an unknown protection group")
)

// Violation describes one validation failure, naming the offending wave.
// Err is one of the sentinel errors above so callers can match with errors.Is.
type Violation struct {
	WaveNumber int    `json:"wave_number"`
	WaveName   string `json:"wave_name,omitempty"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (v Violation) Error() string {
	if v.WaveNumber < 0 {
		return v.Message
	}
	return fmt.Sprintf("wave %d (%s): %s", v.WaveNumber, v.WaveName, v.Message)
}

func (v Violation) Unwrap() error { return v.Err }

// Validator checks a candidate wave list against the plan invariants.
// Zero value uses DefaultMaxServersPerWave.
type Validator struct {
	MaxServersPerWave int
}

// Validate returns every violation found in the request, or nil when the
// plan is valid. Violations are user-correctable and never fatal.
func (val Validator) Validate(req *CreatePlanRequest, groups map[string]*protectiongroup.ProtectionGroup) []Violation {
	var violations []Violation

	planViolation := func(err error) {
		violations = append(violations, Violation{WaveNumber: -1, Message: err.Error(), Err: err})
	}

	if req.Name == "" {
		planViolation(ErrNameRequired)
	}
	if req.TargetRegion == "" {
		planViolation(ErrRegionRequired)
	}
	if req.TargetAccountID == "" {
		planViolation(ErrAccountRequired)
	}
	if len(req.Waves) == 0 {
		planViolation(ErrNoWaves)
		return violations
	}

	violations = append(violations, val.validateWaves(req.Waves, groups)...)
	return violations
}

func (val Validator) validateWaves(waves []Wave, groups map[string]*protectiongroup.ProtectionGroup) []Violation {
	maxServers := val.MaxServersPerWave
	if maxServers <= 0 {
		maxServers = DefaultMaxServersPerWave
	}

	var violations []Violation
	add := func(w *Wave, err error, msg string) {
		violations = append(violations, Violation{
			WaveNumber: w.Number,
			WaveName:   w.Name,
			Message:    msg,
			Err:        err,
		})
	}

	for i := range waves {
		w := &waves[i]

		if w.Number != i {
			add(w, ErrWaveNumbering, fmt.Sprintf("wave number %d at position %d", w.Number, i))
		}

		if len(w.ProtectionGroupIDs) == 0 {
			add(w, ErrNoProtectionGroups, ErrNoProtectionGroups.Error())
		}

		for _, dep := range w.DependsOnWaves {
			if dep < 0 || dep >= w.Number {
				add(w, ErrForwardDependency, fmt.Sprintf("depends on wave %d", dep))
			}
		}

		allTagBased := len(w.ProtectionGroupIDs) > 0
		serverSet := make(map[string]bool, len(w.ServerIDs))
		for _, id := range w.ServerIDs {
			serverSet[id] = true
		}
		for _, gid := range w.ProtectionGroupIDs {
			g, ok := groups[gid]
			if !ok {
				add(w, ErrUnknownGroup, fmt.Sprintf("unknown protection group %s", gid))
				continue
			}
			if !g.TagBased() {
				allTagBased = false
				for _, id := range g.SourceServerIDs {
					serverSet[id] = true
				}
			}
		}

		// Tag-based waves resolve servers at execution time, so the
		// server-count checks only apply to enumerated waves.
		if allTagBased {
			continue
		}
		if len(serverSet) == 0 {
			add(w, ErrNoServers, ErrNoServers.Error())
		}
		if len(serverSet) > maxServers {
			add(w, ErrTooManyServers, fmt.Sprintf("%d servers exceeds the limit of %d", len(serverSet), maxServers))
		}
	}

	return violations
}
