package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recoverfleet/drsorch/internal/domain"
	"github.com/recoverfleet/drsorch/internal/domain/plan"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const planColumns = `id, name, description, target_region, target_account_id, waves, version, created_at, updated_at`

// ListPlans returns all recovery plans, newest first.
func (s *Store) ListPlans(ctx context.Context) ([]plan.RecoveryPlan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+planColumns+` FROM recovery_plans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.RecoveryPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetPlan fetches one recovery plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (*plan.RecoveryPlan, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM recovery_plans WHERE id = $1`, id)

	p, err := scanPlan(row)
	if err != nil {
		return nil, notFoundWrap(err, "get plan %s", id)
	}
	return &p, nil
}

// CreatePlan persists a new recovery plan and fills in its generated fields.
func (s *Store) CreatePlan(ctx context.Context, p *plan.RecoveryPlan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	wavesJSON, err := json.Marshal(orEmpty(p.Waves))
	if err != nil {
		return fmt.Errorf("marshal waves: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO recovery_plans (id, name, description, target_region, target_account_id, waves)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+planColumns,
		p.ID, p.Name, p.Description, p.TargetRegion, p.TargetAccountID, wavesJSON)

	created, err := scanPlan(row)
	if err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	*p = created
	return nil
}

// UpdatePlan replaces a plan's contents, guarded by its version. A stale
// version yields domain.ErrConflict; the caller decides how to surface it.
func (s *Store) UpdatePlan(ctx context.Context, p *plan.RecoveryPlan) error {
	wavesJSON, err := json.Marshal(orEmpty(p.Waves))
	if err != nil {
		return fmt.Errorf("marshal waves: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE recovery_plans
		 SET name = $2, description = $3, target_region = $4, target_account_id = $5,
		     waves = $6, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $7`,
		p.ID, p.Name, p.Description, p.TargetRegion, p.TargetAccountID, wavesJSON, p.Version)
	if err != nil {
		return fmt.Errorf("update plan %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update plan %s: %w", p.ID, domain.ErrConflict)
	}
	p.Version++
	return nil
}

// DeletePlan removes a plan by id.
func (s *Store) DeletePlan(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM recovery_plans WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete plan %s", id)
}

func scanPlan(row scannable) (plan.RecoveryPlan, error) {
	var p plan.RecoveryPlan
	var wavesJSON []byte
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.TargetRegion, &p.TargetAccountID,
		&wavesJSON, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(wavesJSON, &p.Waves); err != nil {
		return p, fmt.Errorf("unmarshal waves for plan %s: %w", p.ID, err)
	}
	return p, nil
}
