package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/recoverfleet/drsorch/internal/domain"
	"github.com/recoverfleet/drsorch/internal/domain/protectiongroup"
)

const groupColumns = `id, name, description, region, account_id, server_selection_tags, source_server_ids, version, created_at, updated_at`

// ListProtectionGroups returns all protection groups ordered by name.
func (s *Store) ListProtectionGroups(ctx context.Context) ([]protectiongroup.ProtectionGroup, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM protection_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list protection groups: %w", err)
	}
	defer rows.Close()

	var groups []protectiongroup.ProtectionGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetProtectionGroup fetches one protection group by id.
func (s *Store) GetProtectionGroup(ctx context.Context, id string) (*protectiongroup.ProtectionGroup, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM protection_groups WHERE id = $1`, id)

	g, err := scanGroup(row)
	if err != nil {
		return nil, notFoundWrap(err, "get protection group %s", id)
	}
	return &g, nil
}

// CreateProtectionGroup persists a new protection group.
func (s *Store) CreateProtectionGroup(ctx context.Context, g *protectiongroup.ProtectionGroup) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	tagsJSON, err := json.Marshal(g.ServerSelectionTags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO protection_groups (id, name, description, region, account_id, server_selection_tags, source_server_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+groupColumns,
		g.ID, g.Name, g.Description, g.Region, g.AccountID, tagsJSON, orEmpty(g.SourceServerIDs))

	created, err := scanGroup(row)
	if err != nil {
		return fmt.Errorf("create protection group: %w", err)
	}
	*g = created
	return nil
}

// UpdateProtectionGroup replaces a group's contents, guarded by its version.
func (s *Store) UpdateProtectionGroup(ctx context.Context, g *protectiongroup.ProtectionGroup) error {
	tagsJSON, err := json.Marshal(g.ServerSelectionTags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE protection_groups
		 SET name = $2, description = $3, region = $4, account_id = $5,
		     server_selection_tags = $6, source_server_ids = $7,
		     version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $8`,
		g.ID, g.Name, g.Description, g.Region, g.AccountID, tagsJSON, orEmpty(g.SourceServerIDs), g.Version)
	if err != nil {
		return fmt.Errorf("update protection group %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update protection group %s: %w", g.ID, domain.ErrConflict)
	}
	g.Version++
	return nil
}

// DeleteProtectionGroup removes a group by id.
func (s *Store) DeleteProtectionGroup(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM protection_groups WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete protection group %s", id)
}

func scanGroup(row scannable) (protectiongroup.ProtectionGroup, error) {
	var g protectiongroup.ProtectionGroup
	var tagsJSON []byte
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Region, &g.AccountID,
		&tagsJSON, &g.SourceServerIDs, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return g, err
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &g.ServerSelectionTags); err != nil {
			return g, fmt.Errorf("unmarshal tags for protection group %s: %w", g.ID, err)
		}
	}
	return g, nil
}
