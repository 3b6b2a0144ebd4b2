// Package plan defines the RecoveryPlan domain entity: an ordered set of
// recovery waves executed against AWS DRS, with wave-level dependencies.
package plan

import "time"

// RecoveryPlan organizes protection groups into ordered recovery waves.
// Wave numbers are contiguous from 0 and a wave may depend only on waves
// with a strictly lower number, so dependency cycles are unreachable.
type RecoveryPlan struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	TargetRegion    string    `json:"target_region"`
	TargetAccountID string    `json:"target_account_id"`
	Waves           []Wave    `json:"waves"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Wave is one recovery stage within a plan. ServerIDs is populated only for
// waves drawing on enumerated protection groups; tag-based groups resolve
// their servers at execution time and contribute no ids here.
type Wave struct {
	Number             int      `json:"number"`
	Name               string   `json:"name"`
	ProtectionGroupIDs []string `json:"protection_group_ids"`
	ServerIDs          []string `json:"server_ids,omitempty"`
	DependsOnWaves     []int    `json:"depends_on_waves,omitempty"`
	PauseBefore        bool     `json:"pause_before"`
}

// CreatePlanRequest holds the fields for creating a new recovery plan.
// TargetRegion and TargetAccountID are required inputs; there are no
// implicit region or account defaults.
type CreatePlanRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	TargetRegion    string `json:"target_region"`
	TargetAccountID string `json:"target_account_id"`
	Waves           []Wave `json:"waves"`
}

// UpdatePlanRequest carries a full plan replacement guarded by the version
// the editor last observed.
type UpdatePlanRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	TargetRegion    string `json:"target_region"`
	TargetAccountID string `json:"target_account_id"`
	Waves           []Wave `json:"waves"`
	Version         int    `json:"version"`
}

// DependencyChoices returns the wave numbers a wave at the given position may
// depend on: exactly {0 .. waveNumber-1}. Offering only lower numbers is what
// makes dependency cycles unreachable by construction.
func DependencyChoices(waveNumber int) []int {
	if waveNumber <= 0 {
		return nil
	}
	choices := make([]int, waveNumber)
	for i := range choices {
		choices[i] = i
	}
	return choices
}
