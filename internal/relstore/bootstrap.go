package relstore

import (
	"context"
	"fmt"
)

// bootstrapLockKey is an arbitrary, stable int64 used with pg_advisory_lock so concurrent
// process starts don't race on schema creation. Generalizes the teacher's filesystem
// AccessLock/flock bootstrap gate to a database-native advisory lock, since there is no shared
// filesystem to flock across a multi-instance Postgres deployment.
const bootstrapLockKey = 0x656c665f64620a00 // "elf_db\n\0" packed into an int64-shaped constant

// Bootstrap creates the schema if it does not already exist, holding a Postgres advisory lock
// for the duration so concurrent callers (e.g. elfd and elf-worker starting together) don't
// race on DDL.
func (s *Store) Bootstrap(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "relstore.Bootstrap")
	defer span.End()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("relstore: bootstrap: acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", bootstrapLockKey); err != nil {
		return fmt.Errorf("relstore: bootstrap: advisory lock: %w", err)
	}
	defer conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", bootstrapLockKey)

	for _, stmt := range schemaStatements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("relstore: bootstrap: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS memory_notes (
		note_id           uuid PRIMARY KEY,
		tenant_id         text NOT NULL,
		project_id        text NOT NULL,
		agent_id          text NOT NULL,
		scope             text NOT NULL,
		type              text NOT NULL,
		key               text,
		text              text NOT NULL,
		importance        real NOT NULL DEFAULT 0.5,
		confidence        real NOT NULL DEFAULT 0.5,
		status            text NOT NULL DEFAULT 'active',
		created_at        timestamptz NOT NULL DEFAULT now(),
		updated_at        timestamptz NOT NULL DEFAULT now(),
		expires_at        timestamptz,
		embedding_version text NOT NULL,
		source_ref        jsonb NOT NULL DEFAULT '{}'::jsonb,
		hit_count         bigint NOT NULL DEFAULT 0,
		last_hit_at       timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS memory_notes_tenant_project_idx ON memory_notes (tenant_id, project_id, scope, status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS memory_notes_dedup_key_idx
		ON memory_notes (tenant_id, project_id, agent_id, scope, type, key)
		WHERE key IS NOT NULL AND status = 'active'`,
	`CREATE TABLE IF NOT EXISTS memory_note_chunks (
		chunk_id          uuid PRIMARY KEY,
		note_id           uuid NOT NULL REFERENCES memory_notes (note_id) ON DELETE CASCADE,
		chunk_index       integer NOT NULL,
		start_offset      integer NOT NULL,
		end_offset        integer NOT NULL,
		text              text NOT NULL,
		embedding_version text NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS memory_note_chunks_note_idx ON memory_note_chunks (note_id)`,
	`CREATE TABLE IF NOT EXISTS memory_note_fields (
		field_id    uuid PRIMARY KEY,
		note_id     uuid NOT NULL REFERENCES memory_notes (note_id) ON DELETE CASCADE,
		field_kind  text NOT NULL,
		item_index  integer NOT NULL,
		text        text NOT NULL,
		created_at  timestamptz NOT NULL,
		updated_at  timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS memory_note_fields_note_idx ON memory_note_fields (note_id, field_kind, item_index)`,
	`CREATE TABLE IF NOT EXISTS note_field_embeddings (
		field_id          uuid NOT NULL REFERENCES memory_note_fields (field_id) ON DELETE CASCADE,
		embedding_version text NOT NULL,
		vec               vector NOT NULL,
		PRIMARY KEY (field_id, embedding_version)
	)`,
	`CREATE TABLE IF NOT EXISTS note_embeddings (
		note_id           uuid NOT NULL REFERENCES memory_notes (note_id) ON DELETE CASCADE,
		embedding_version text NOT NULL,
		vec               vector NOT NULL,
		PRIMARY KEY (note_id, embedding_version)
	)`,
	`CREATE TABLE IF NOT EXISTS note_chunk_embeddings (
		chunk_id          uuid NOT NULL REFERENCES memory_note_chunks (chunk_id) ON DELETE CASCADE,
		embedding_version text NOT NULL,
		vec               vector NOT NULL,
		PRIMARY KEY (chunk_id, embedding_version)
	)`,
	`CREATE TABLE IF NOT EXISTS memory_versions (
		version_id    uuid PRIMARY KEY,
		note_id       uuid NOT NULL,
		op            text NOT NULL,
		prev_snapshot jsonb,
		new_snapshot  jsonb,
		reason        text NOT NULL,
		actor         text NOT NULL,
		ts            timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS memory_versions_note_idx ON memory_versions (note_id, ts)`,
	`CREATE TABLE IF NOT EXISTS memory_space_grants (
		grant_id             uuid PRIMARY KEY,
		tenant_id            text NOT NULL,
		project_id           text NOT NULL,
		scope                text NOT NULL,
		space_owner_agent_id text NOT NULL,
		grantee_kind         text NOT NULL,
		grantee_agent_id     text,
		granted_by_agent_id  text NOT NULL,
		granted_at           timestamptz NOT NULL,
		revoked_at           timestamptz,
		revoked_by_agent_id  text
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS memory_space_grants_project_unique_idx
		ON memory_space_grants (tenant_id, project_id, scope, space_owner_agent_id)
		WHERE revoked_at IS NULL AND grantee_kind = 'project'`,
	`CREATE INDEX IF NOT EXISTS memory_space_grants_lookup_idx
		ON memory_space_grants (tenant_id, project_id, grantee_agent_id)
		WHERE revoked_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS indexing_outbox (
		outbox_id         uuid PRIMARY KEY,
		note_id           uuid NOT NULL,
		op                text NOT NULL,
		embedding_version text NOT NULL,
		status            text NOT NULL DEFAULT 'PENDING',
		attempts          integer NOT NULL DEFAULT 0,
		last_error        text,
		available_at      timestamptz NOT NULL DEFAULT now(),
		created_at        timestamptz NOT NULL DEFAULT now(),
		updated_at        timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS indexing_outbox_claim_idx ON indexing_outbox (status, available_at)`,
	`CREATE TABLE IF NOT EXISTS ingest_decisions (
		decision_id         uuid PRIMARY KEY,
		note_id             uuid,
		tenant_id           text NOT NULL,
		project_id          text NOT NULL,
		agent_id            text NOT NULL,
		outcome             text NOT NULL,
		matched_policy_rule text,
		confidence          real NOT NULL,
		importance          real NOT NULL,
		ts                  timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS search_traces (
		trace_id            uuid PRIMARY KEY,
		session_id          text,
		query               text NOT NULL,
		candidate_set_hash  text NOT NULL,
		ranking_policy_hash text NOT NULL,
		schema_version      text NOT NULL,
		created_at          timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS search_trace_items (
		trace_id   uuid NOT NULL REFERENCES search_traces (trace_id) ON DELETE CASCADE,
		rank       int NOT NULL,
		note_id    uuid NOT NULL,
		chunk_id   uuid NOT NULL,
		final_score real NOT NULL,
		explain    jsonb NOT NULL,
		PRIMARY KEY (trace_id, rank)
	)`,
	`CREATE TABLE IF NOT EXISTS search_sessions (
		session_id  text PRIMARY KEY,
		tenant_id   text NOT NULL,
		project_id  text NOT NULL,
		agent_id    text NOT NULL,
		created_at  timestamptz NOT NULL DEFAULT now(),
		last_seen_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS search_trace_outbox (
		trace_id    uuid PRIMARY KEY REFERENCES search_traces (trace_id) ON DELETE CASCADE,
		status      text NOT NULL DEFAULT 'PENDING',
		attempts    int NOT NULL DEFAULT 0,
		available_at timestamptz NOT NULL DEFAULT now(),
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,
}
