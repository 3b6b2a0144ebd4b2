// Package protectiongroup defines the ProtectionGroup domain entity: a named
// set of DRS source servers recovered together, selected either by tag or by
// explicit enumeration.
package protectiongroup

import (
	"errors"
	"time"
)

// ProtectionGroup groups source servers for recovery. Exactly one selection
// mechanism is meaningful per group: ServerSelectionTags (servers resolved by
// tag at execution time) or SourceServerIDs (enumerated at plan time).
type ProtectionGroup struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	Region              string            `json:"region"`
	AccountID           string            `json:"account_id"`
	ServerSelectionTags map[string]string `json:"server_selection_tags,omitempty"`
	SourceServerIDs     []string          `json:"source_server_ids,omitempty"`
	Version             int               `json:"version"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// ErrMixedSelection rejects groups that declare both selection tags and an
// enumerated server list; a group resolves its servers one way or the other.
var ErrMixedSelection = errors.New("protection group cannot have both selection tags and enumerated servers")

// TagBased reports whether servers are resolved by tag at execution time.
// Tag-based groups contribute no server ids at plan time.
func (g *ProtectionGroup) TagBased() bool {
	return len(g.ServerSelectionTags) > 0
}

// ServerCount returns the number of enumerated servers, zero for tag-based groups.
func (g *ProtectionGroup) ServerCount() int {
	if g.TagBased() {
		return 0
	}
	return len(g.SourceServerIDs)
}
