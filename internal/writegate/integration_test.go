//go:build integration

package writegate_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/writegate"
)

// pgvector/pgvector ships the vector extension relstore.Bootstrap needs; a plain postgres image
// does not.
const pgvectorImage = "pgvector/pgvector:pg16"

func openTestStore(t *testing.T) *relstore.Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, pgvectorImage,
		postgres.WithDatabase("elf"),
		postgres.WithUsername("elf"),
		postgres.WithPassword("elf"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := relstore.Open(ctx, config.Postgres{DSN: dsn, PoolMaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Bootstrap(ctx))
	return store
}

func testConfig() *config.Config {
	return &config.Config{
		Memory: config.Memory{MaxNoteChars: 4096},
		Scopes: config.Scopes{
			Allowed: []string{"agent_private", "project_shared", "org_shared"},
			WriteAllowed: config.ScopeWriteAllowed{
				AgentPrivate: true, ProjectShared: true, OrgShared: true,
			},
		},
	}
}

func seedNote(ctx context.Context, t *testing.T, store *relstore.Store, n *models.Note) {
	t.Helper()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, store.InsertNote(ctx, tx, n))
	require.NoError(t, tx.Commit())
}

// TestGateListUpdateDeleteEndToEnd exercises SPEC_FULL.md §4.12-4.14 against a real Postgres
// instance: a note is seeded directly through relstore, then listed, updated, and deleted
// through the Gate, checking each step's effect lands in storage. List/Update/Delete never call
// g.Embedder/g.Extractor, so the Gate is built with nil providers here.
func TestGateListUpdateDeleteEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	cfg := testConfig()
	gate := writegate.New(store, nil, nil, cfg)

	now := time.Now().UTC().Truncate(time.Second)
	noteID := uuid.New()
	seedNote(ctx, t, store, &models.Note{
		NoteID: noteID, TenantID: "t1", ProjectID: "p1", AgentID: "agent-1",
		Scope: models.ScopeAgentPrivate, Type: models.NoteTypeFact, Text: "original text",
		Importance: 0.5, Confidence: 0.5, Status: models.NoteStatusActive,
		CreatedAt: now, UpdatedAt: now, EmbeddingVersion: "v1",
	})

	private := models.ScopeAgentPrivate
	listResp, err := gate.List(ctx, writegate.ListRequest{
		TenantID: "t1", ProjectID: "p1", AgentID: "agent-1", Scope: &private,
	})
	require.NoError(t, err)
	require.Len(t, listResp.Items, 1)
	assert.Equal(t, "original text", listResp.Items[0].Text)

	newText := "updated text"
	updResp, err := gate.Update(ctx, writegate.UpdateRequest{
		TenantID: "t1", ProjectID: "p1", AgentID: "agent-1", NoteID: noteID, Text: &newText,
	})
	require.NoError(t, err)
	assert.Equal(t, writegate.NoteOpUpdate, updResp.Op)

	listResp, err = gate.List(ctx, writegate.ListRequest{
		TenantID: "t1", ProjectID: "p1", AgentID: "agent-1", Scope: &private,
	})
	require.NoError(t, err)
	require.Len(t, listResp.Items, 1)
	assert.Equal(t, "updated text", listResp.Items[0].Text)

	delResp, err := gate.Delete(ctx, writegate.DeleteRequest{
		TenantID: "t1", ProjectID: "p1", AgentID: "agent-1", NoteID: noteID,
	})
	require.NoError(t, err)
	assert.Equal(t, writegate.NoteOpDelete, delResp.Op)

	listResp, err = gate.List(ctx, writegate.ListRequest{
		TenantID: "t1", ProjectID: "p1", AgentID: "agent-1", Scope: &private,
	})
	require.NoError(t, err)
	assert.Empty(t, listResp.Items)

	active := "active"
	listResp, err = gate.List(ctx, writegate.ListRequest{
		TenantID: "t1", ProjectID: "p1", AgentID: "agent-1", Scope: &private, Status: &active,
	})
	require.NoError(t, err)
	assert.Empty(t, listResp.Items, "deleted notes must not surface under an explicit active status filter either")
}

// TestGateDeleteDeniesCrossAgentPrivateAccess checks §4.14's scope-ownership guard: a different
// agent must not be able to delete another agent's agent_private note.
func TestGateDeleteDeniesCrossAgentPrivateAccess(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	cfg := testConfig()
	gate := writegate.New(store, nil, nil, cfg)

	now := time.Now().UTC().Truncate(time.Second)
	noteID := uuid.New()
	seedNote(ctx, t, store, &models.Note{
		NoteID: noteID, TenantID: "t1", ProjectID: "p1", AgentID: "agent-1",
		Scope: models.ScopeAgentPrivate, Type: models.NoteTypeFact, Text: "private note",
		Importance: 0.5, Confidence: 0.5, Status: models.NoteStatusActive,
		CreatedAt: now, UpdatedAt: now, EmbeddingVersion: "v1",
	})

	_, err := gate.Delete(ctx, writegate.DeleteRequest{
		TenantID: "t1", ProjectID: "p1", AgentID: "agent-2", NoteID: noteID,
	})
	require.Error(t, err)
}
