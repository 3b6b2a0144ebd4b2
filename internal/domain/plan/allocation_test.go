package plan_test

import (
	"testing"

	"github.com/recoverfleet/drsorch/internal/domain/plan"
	"github.com/recoverfleet/drsorch/internal/domain/protectiongroup"
)

func sharedGroup() *protectiongroup.ProtectionGroup {
	return &protectiongroup.ProtectionGroup{
		ID:              "pg-a",
		Name:            "PG-A",
		SourceServerIDs: []string{"s-1", "s-2", "s-3", "s-4", "s-5"},
	}
}

func TestAvailability_SharedGroupAcrossWaves(t *testing.T) {
	// Wave 0 claims 3 of PG-A's 5 servers; wave 1 has exactly 2 left.
	waves := []plan.Wave{
		{Number: 0, ProtectionGroupIDs: []string{"pg-a"}, ServerIDs: []string{"s-1", "s-2", "s-3"}},
		{Number: 1, ProtectionGroupIDs: []string{"pg-a"}},
	}
	avail := plan.Availability(waves, 1, sharedGroup())
	if avail.Total != 5 || avail.Claimed != 3 || avail.Available != 2 {
		t.Fatalf("expected 5/3/2, got %+v", avail)
	}
	if !avail.Selectable() {
		t.Fatal("group with available servers must be selectable")
	}
}

func TestAvailability_OwnClaimsDoNotCount(t *testing.T) {
	waves := []plan.Wave{
		{Number: 0, ProtectionGroupIDs: []string{"pg-a"}, ServerIDs: []string{"s-1", "s-2"}},
	}
	avail := plan.Availability(waves, 0, sharedGroup())
	if avail.Claimed != 0 || avail.Available != 5 {
		t.Fatalf("a wave's own servers must not count against it, got %+v", avail)
	}
}

func TestAvailability_FullyClaimedGroupUnselectable(t *testing.T) {
	waves := []plan.Wave{
		{Number: 0, ProtectionGroupIDs: []string{"pg-a"}, ServerIDs: []string{"s-1", "s-2", "s-3"}},
		{Number: 1, ProtectionGroupIDs: []string{"pg-a"}, ServerIDs: []string{"s-4", "s-5"}},
		{Number: 2},
	}
	avail := plan.Availability(waves, 2, sharedGroup())
	if avail.Available != 0 {
		t.Fatalf("expected 0 available, got %+v", avail)
	}
	if avail.Selectable() {
		t.Fatal("fully claimed group must be unselectable")
	}
}

func TestAvailability_ForeignServersIgnored(t *testing.T) {
	// Servers claimed by other waves that are not in the group do not count.
	waves := []plan.Wave{
		{Number: 0, ServerIDs: []string{"s-99", "s-1"}},
		{Number: 1},
	}
	avail := plan.Availability(waves, 1, sharedGroup())
	if avail.Claimed != 1 || avail.Available != 4 {
		t.Fatalf("expected claimed 1, available 4, got %+v", avail)
	}
}

func TestAvailability_TagBasedAlwaysAvailable(t *testing.T) {
	g := &protectiongroup.ProtectionGroup{
		ID:                  "pg-tags",
		ServerSelectionTags: map[string]string{"dr": "yes"},
	}
	waves := []plan.Wave{
		{Number: 0, ServerIDs: []string{"s-1"}},
		{Number: 1},
	}
	avail := plan.Availability(waves, 1, g)
	if avail.Claimed != 0 || avail.Total != 0 {
		t.Fatalf("tag-based group resolves at execution time, got %+v", avail)
	}
}

func TestValidateAllocation_NoOverlap(t *testing.T) {
	waves := []plan.Wave{
		{Number: 0, ServerIDs: []string{"s-1", "s-2"}},
		{Number: 1, ServerIDs: []string{"s-3"}},
	}
	if violations := plan.ValidateAllocation(waves); len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
}

func TestValidateAllocation_DoubleRecoveryReported(t *testing.T) {
	waves := []plan.Wave{
		{Number: 0, Name: "first", ServerIDs: []string{"s-1", "s-2"}},
		{Number: 1, Name: "second", ServerIDs: []string{"s-2", "s-3"}},
	}
	violations := plan.ValidateAllocation(waves)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
	v := violations[0]
	if v.WaveNumber != 1 || v.WaveName != "second" {
		t.Fatalf("violation must name the later wave, got %+v", v)
	}
}
