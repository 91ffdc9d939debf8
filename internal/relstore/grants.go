package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steveyegge/elf/internal/access"
	"github.com/steveyegge/elf/internal/idgen"
	"github.com/steveyegge/elf/internal/models"
)

// LoadSharedReadGrants loads the unrevoked project/agent grants a requester may read through,
// grounded on access.rs's load_shared_read_grants query exactly.
func (s *Store) LoadSharedReadGrants(
	ctx context.Context, tenantID, projectID, granteeAgentID string,
) (access.GrantSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, space_owner_agent_id
		FROM memory_space_grants
		WHERE tenant_id = $1
			AND project_id = $2
			AND revoked_at IS NULL
			AND scope IN ('project_shared', 'org_shared')
			AND (
				grantee_kind = 'project'
				OR (grantee_kind = 'agent' AND grantee_agent_id = $3)
			)`,
		tenantID, projectID, granteeAgentID,
	)
	if err != nil {
		return nil, fmt.Errorf("relstore: load shared read grants: %w", err)
	}
	defer rows.Close()

	var grants []models.SpaceGrant
	for rows.Next() {
		var g models.SpaceGrant
		if err := rows.Scan(&g.Scope, &g.SpaceOwnerAgent); err != nil {
			return nil, fmt.Errorf("relstore: load shared read grants scan: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return access.NewGrantSet(grants), nil
}

// EnsureActiveProjectScopeGrant upserts a project-wide grant for a shared scope, matching
// access.rs's ON CONFLICT ... DO UPDATE idiom. A no-op for non-shared scopes.
func (s *Store) EnsureActiveProjectScopeGrant(
	ctx context.Context, tx *sql.Tx, tenantID, projectID string, scope models.Scope,
	spaceOwnerAgentID string, now time.Time,
) error {
	if !access.IsSharedScope(scope) {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO memory_space_grants (
			grant_id, tenant_id, project_id, scope, space_owner_agent_id,
			grantee_kind, grantee_agent_id, granted_by_agent_id, granted_at
		) VALUES ($1,$2,$3,$4,$5,'project',NULL,$5,$6)
		ON CONFLICT (tenant_id, project_id, scope, space_owner_agent_id)
		WHERE revoked_at IS NULL AND grantee_kind = 'project'
		DO UPDATE SET
			granted_by_agent_id = EXCLUDED.granted_by_agent_id,
			granted_at = EXCLUDED.granted_at,
			revoked_at = NULL,
			revoked_by_agent_id = NULL`,
		idgen.New(), tenantID, projectID, scope, spaceOwnerAgentID, now,
	)
	if err != nil {
		return fmt.Errorf("relstore: ensure active project scope grant: %w", err)
	}
	return nil
}
