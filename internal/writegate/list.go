package writegate

import (
	"context"
	"strings"
	"time"

	"github.com/steveyegge/elf/internal/access"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/svcerr"
)

// ListRequest mirrors list.rs's ListRequest (SPEC_FULL.md §4.12).
type ListRequest struct {
	TenantID  string
	ProjectID string
	AgentID   string
	Scope     *models.Scope
	Status    *string
	Type      *models.NoteType
}

// ListItem is one row of a list response, shaped per §4.12's output mapping.
type ListItem struct {
	NoteID     string
	Type       models.NoteType
	Key        *string
	Scope      models.Scope
	Status     models.NoteStatus
	Text       string
	Importance float32
	Confidence float32
	UpdatedAt  time.Time
	ExpiresAt  *time.Time
	SourceRef  []byte
}

// ListResponse wraps the surviving, access-filtered rows.
type ListResponse struct {
	Items []ListItem
}

// List runs SPEC_FULL.md §4.12 end to end: scope/status/type filtering pushed into the SQL
// query, then a per-row access check layered on top (the full note_read_allowed cascade for an
// active listing, a relaxed ownership-or-grant check for historical/non-active listings).
func (g *Gate) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if req.TenantID == "" || req.ProjectID == "" {
		return nil, svcerr.InvalidRequest{Message: "tenant_id and project_id are required"}
	}
	if req.Scope != nil {
		if !scopeAllowed(*req.Scope, g.Config.Scopes.Allowed) {
			return nil, svcerr.InvalidRequest{Message: "scope is not in scopes.allowed"}
		}
		if *req.Scope == models.ScopeAgentPrivate && strings.TrimSpace(req.AgentID) == "" {
			return nil, svcerr.InvalidRequest{Message: "agent_id is required when scope = agent_private"}
		}
	}

	allowedScopes := resolveListAccessScopes(req.Scope)
	now := g.Now()

	notes, err := g.Store.ListNotes(ctx, req.TenantID, req.ProjectID, relstore.ListFilter{
		Scope: req.Scope, Status: req.Status, Type: req.Type,
	}, req.AgentID, now)
	if err != nil {
		return nil, svcerr.Storage{Message: "list notes", Cause: err}
	}

	status := "active"
	if req.Status != nil && *req.Status != "" {
		status = *req.Status
	}

	var grants access.GrantSet
	if allowedScopes != nil {
		loaded, err := g.Store.LoadSharedReadGrants(ctx, req.TenantID, req.ProjectID, req.AgentID)
		if err != nil {
			return nil, svcerr.Storage{Message: "load shared read grants", Cause: err}
		}
		grants = loaded
	}

	resp := &ListResponse{}
	for _, n := range notes {
		if allowedScopes != nil {
			allowed := false
			if status == "active" {
				allowed = access.NoteReadAllowed(n, req.AgentID, allowedScopes, grants, now)
			} else {
				allowed = historicalReadAllowed(n, req.AgentID, allowedScopes, grants)
			}
			if !allowed {
				continue
			}
		}
		resp.Items = append(resp.Items, ListItem{
			NoteID: n.NoteID.String(), Type: n.Type, Key: n.Key, Scope: n.Scope, Status: n.Status,
			Text: n.Text, Importance: n.Importance, Confidence: n.Confidence, UpdatedAt: n.UpdatedAt,
			ExpiresAt: n.ExpiresAt, SourceRef: []byte(n.SourceRef),
		})
	}
	return resp, nil
}

// resolveListAccessScopes resolves §4.12's "non-private scope set": nil when the caller
// explicitly asked for agent_private (no access filter beyond the SQL agent_id constraint
// ListNotes already applies), [scope] for another explicit scope, or the shared-scope default.
func resolveListAccessScopes(scope *models.Scope) []models.Scope {
	if scope != nil {
		if *scope == models.ScopeAgentPrivate {
			return nil
		}
		return []models.Scope{*scope}
	}
	return []models.Scope{models.ScopeProjectShared, models.ScopeOrgShared}
}

// historicalReadAllowed relaxes note_read_allowed for non-active status listings (deleted,
// deprecated): skip the active/expiry checks since the whole point is to look at history, but
// still require ownership or an explicit grant so one agent cannot browse another's deleted
// private notes.
func historicalReadAllowed(note *models.Note, requesterAgentID string, allowedScopes []models.Scope, grants access.GrantSet) bool {
	inScope := false
	for _, s := range allowedScopes {
		if s == note.Scope {
			inScope = true
			break
		}
	}
	if !inScope {
		return false
	}
	if note.Scope == models.ScopeAgentPrivate {
		return note.AgentID == requesterAgentID
	}
	if note.AgentID == requesterAgentID {
		return true
	}
	return access.IsSharedScope(note.Scope) && grants.Has(note.Scope, note.AgentID)
}

func scopeAllowed(scope models.Scope, allowed []string) bool {
	for _, s := range allowed {
		if s == string(scope) {
			return true
		}
	}
	return false
}
