package plan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/recoverfleet/drsorch/internal/domain/protectiongroup"
)

// ErrServerOvercommitted indicates the same source server is claimed by more
// than one wave of the plan, which would recover it twice.
var ErrServerOvercommitted = errors.New("server assigned to more than one wave")

// GroupAvailability reports how many of an enumerated protection group's
// servers remain claimable by one wave, given what other waves already claim.
type GroupAvailability struct {
	GroupID   string `json:"group_id"`
	Total     int    `json:"total"`
	Claimed   int    `json:"claimed"`
	Available int    `json:"available"`
}

// Selectable reports whether the group still has servers left for a new wave.
// A group with zero available servers must not be offered in the wave editor.
func (a GroupAvailability) Selectable() bool {
	return a.Available > 0
}

// Availability computes the availability of an enumerated protection group
// for the wave at waveNumber: the group's total servers minus the servers
// already claimed by *other* waves. Tag-based groups resolve at execution
// time and are always fully available.
func Availability(waves []Wave, waveNumber int, g *protectiongroup.ProtectionGroup) GroupAvailability {
	avail := GroupAvailability{GroupID: g.ID, Total: g.ServerCount()}
	if g.TagBased() {
		return avail
	}

	inGroup := make(map[string]bool, len(g.SourceServerIDs))
	for _, id := range g.SourceServerIDs {
		inGroup[id] = true
	}

	claimed := make(map[string]bool)
	for i := range waves {
		if waves[i].Number == waveNumber {
			continue
		}
		for _, id := range waves[i].ServerIDs {
			if inGroup[id] {
				claimed[id] = true
			}
		}
	}

	avail.Claimed = len(claimed)
	avail.Available = avail.Total - avail.Claimed
	return avail
}

// ValidateAllocation reports every server claimed by more than one wave.
// One violation is produced per over-committed server, naming the later wave.
func ValidateAllocation(waves []Wave) []Violation {
	claimedBy := make(map[string]int) // server id -> first claiming wave
	var violations []Violation

	for i := range waves {
		w := &waves[i]
		// Deterministic violation order regardless of input id order.
		ids := append([]string(nil), w.ServerIDs...)
		sort.Strings(ids)
		for _, id := range ids {
			first, ok := claimedBy[id]
			if !ok {
				claimedBy[id] = w.Number
				continue
			}
			violations = append(violations, Violation{
				WaveNumber: w.Number,
				WaveName:   w.Name,
				Message:    fmt.Sprintf("server %s already assigned to wave %d", id, first),
				Err:        ErrServerOvercommitted,
			})
		}
	}
	return violations
}
