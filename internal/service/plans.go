// Package service implements the application services that sit between the
// HTTP adapter and the domain: plan editing, execution monitoring, lifecycle
// commands, and instance termination.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/recoverfleet/drsorch/internal/domain/plan"
	"github.com/recoverfleet/drsorch/internal/domain/protectiongroup"
	"github.com/recoverfleet/drsorch/internal/port/database"
)

// ValidationError carries the full set of violations found in a plan, so
// callers can render every problem at once instead of fixing them one by one.
type ValidationError struct {
	Violations []plan.Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return "plan validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Violations))
	for i := range e.Violations {
		errs[i] = e.Violations[i]
	}
	return errs
}

// PlanService manages recovery plans and protection groups.
type PlanService struct {
	db        database.Store
	validator plan.Validator
}

// NewPlanService creates a PlanService. maxServersPerWave bounds the
// effective server count of any single wave.
func NewPlanService(db database.Store, maxServersPerWave int) *PlanService {
	return &PlanService{
		db:        db,
		validator: plan.Validator{MaxServersPerWave: maxServersPerWave},
	}
}

// ListPlans returns all recovery plans.
func (s *PlanService) ListPlans(ctx context.Context) ([]plan.RecoveryPlan, error) {
	return s.db.ListPlans(ctx)
}

// GetPlan returns one recovery plan by ID.
func (s *PlanService) GetPlan(ctx context.Context, id string) (*plan.RecoveryPlan, error) {
	return s.db.GetPlan(ctx, id)
}

// CreatePlan validates and persists a new recovery plan. All violations are
// collected into a single *ValidationError.
func (s *PlanService) CreatePlan(ctx context.Context, req *plan.CreatePlanRequest) (*plan.RecoveryPlan, error) {
	violations, err := s.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	p := &plan.RecoveryPlan{
		Name:            req.Name,
		Description:     req.Description,
		TargetRegion:    req.TargetRegion,
		TargetAccountID: req.TargetAccountID,
		Waves:           req.Waves,
	}
	if err := s.db.CreatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return p, nil
}

// UpdatePlan validates and persists a full plan replacement. A stale Version
// in the request surfaces as domain.ErrConflict from the store.
func (s *PlanService) UpdatePlan(ctx context.Context, id string, req *plan.UpdatePlanRequest) (*plan.RecoveryPlan, error) {
	createReq := &plan.CreatePlanRequest{
		Name:            req.Name,
		Description:     req.Description,
		TargetRegion:    req.TargetRegion,
		TargetAccountID: req.TargetAccountID,
		Waves:           req.Waves,
	}
	violations, err := s.Validate(ctx, createReq)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	p := &plan.RecoveryPlan{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		TargetRegion:    req.TargetRegion,
		TargetAccountID: req.TargetAccountID,
		Waves:           req.Waves,
		Version:         req.Version,
	}
	if err := s.db.UpdatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("update plan %s: %w", id, err)
	}
	return p, nil
}

// DeletePlan removes a recovery plan.
func (s *PlanService) DeletePlan(ctx context.Context, id string) error {
	return s.db.DeletePlan(ctx, id)
}

// Validate runs full plan validation (structure, dependencies, quotas,
// group references, and cross-wave server allocation) without persisting.
func (s *PlanService) Validate(ctx context.Context, req *plan.CreatePlanRequest) ([]plan.Violation, error) {
	groups, err := s.groupIndex(ctx)
	if err != nil {
		return nil, err
	}

	violations := s.validator.Validate(req, groups)
	violations = append(violations, plan.ValidateAllocation(req.Waves)...)
	return violations, nil
}

// GroupAvailability reports, for every protection group, how many servers
// waves other than waveNumber have already claimed. The editing UI uses it
// to grey out fully-claimed groups.
func (s *PlanService) GroupAvailability(ctx context.Context, waves []plan.Wave, waveNumber int) ([]plan.GroupAvailability, error) {
	groups, err := s.db.ListProtectionGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list protection groups: %w", err)
	}

	avail := make([]plan.GroupAvailability, 0, len(groups))
	for i := range groups {
		avail = append(avail, plan.Availability(waves, waveNumber, &groups[i]))
	}
	return avail, nil
}

// ListProtectionGroups returns all protection groups.
func (s *PlanService) ListProtectionGroups(ctx context.Context) ([]protectiongroup.ProtectionGroup, error) {
	return s.db.ListProtectionGroups(ctx)
}

// GetProtectionGroup returns one protection group by ID.
func (s *PlanService) GetProtectionGroup(ctx context.Context, id string) (*protectiongroup.ProtectionGroup, error) {
	return s.db.GetProtectionGroup(ctx, id)
}

// CreateProtectionGroup persists a new protection group.
func (s *PlanService) CreateProtectionGroup(ctx context.Context, g *protectiongroup.ProtectionGroup) error {
	if err := validateGroup(g); err != nil {
		return err
	}
	return s.db.CreateProtectionGroup(ctx, g)
}

// UpdateProtectionGroup persists a protection group replacement, guarded by
// the version the editor last observed.
func (s *PlanService) UpdateProtectionGroup(ctx context.Context, g *protectiongroup.ProtectionGroup) error {
	if err := validateGroup(g); err != nil {
		return err
	}
	return s.db.UpdateProtectionGroup(ctx, g)
}

// validateGroup collects every violation on a protection group.
func validateGroup(g *protectiongroup.ProtectionGroup) error {
	var violations []plan.Violation
	if g.Name == "" {
		violations = append(violations, plan.Violation{
			WaveNumber: -1, Message: "protection group name is required", Err: plan.ErrNameRequired,
		})
	}
	if g.Region == "" {
		violations = append(violations, plan.Violation{
			WaveNumber: -1, Message: "protection group region is required", Err: plan.ErrRegionRequired,
		})
	}
	if len(g.ServerSelectionTags) > 0 && len(g.SourceServerIDs) > 0 {
		violations = append(violations, plan.Violation{
			WaveNumber: -1,
			Message:    "protection group must select servers by tag or by enumeration, not both",
			Err:        protectiongroup.ErrMixedSelection,
		})
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// DeleteProtectionGroup removes a protection group. Plans referencing it
// fail validation on their next edit.
func (s *PlanService) DeleteProtectionGroup(ctx context.Context, id string) error {
	return s.db.DeleteProtectionGroup(ctx, id)
}

func (s *PlanService) groupIndex(ctx context.Context) (map[string]*protectiongroup.ProtectionGroup, error) {
	groups, err := s.db.ListProtectionGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list protection groups: %w", err)
	}

	idx := make(map[string]*protectiongroup.ProtectionGroup, len(groups))
	for i := range groups {
		idx[groups[i].ID] = &groups[i]
	}
	return idx, nil
}
