// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/recoverfleet/drsorch/internal/domain/plan"
	"github.com/recoverfleet/drsorch/internal/domain/protectiongroup"
)

// Store is the port interface for database operations. Plan and protection
// group updates use optimistic locking: a stale version yields
// domain.ErrConflict, which is surfaced verbatim to the caller.
type Store interface {
	// Recovery plans
	ListPlans(ctx context.Context) ([]plan.RecoveryPlan, error)
	GetPlan(ctx context.Context, id string) (*plan.RecoveryPlan, error)
	CreatePlan(ctx context.Context, p *plan.RecoveryPlan) error
	UpdatePlan(ctx context.Context, p *plan.RecoveryPlan) error
	DeletePlan(ctx context.Context, id string) error

	// Protection groups
	ListProtectionGroups(ctx context.Context) ([]protectiongroup.ProtectionGroup, error)
	GetProtectionGroup(ctx context.Context, id string) (*protectiongroup.ProtectionGroup, error)
	CreateProtectionGroup(ctx context.Context, g *protectiongroup.ProtectionGroup) error
	UpdateProtectionGroup(ctx context.Context, g *protectiongroup.ProtectionGroup) error
	DeleteProtectionGroup(ctx context.Context, id string) error
}
