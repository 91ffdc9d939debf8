package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/idgen"
	"github.com/steveyegge/elf/internal/models"
)

// EnqueueOutbox inserts a PENDING indexing job inside tx, grounded on doc_outbox.rs's
// enqueue_doc_outbox.
func (s *Store) EnqueueOutbox(
	ctx context.Context, tx *sql.Tx, noteID uuid.UUID, op models.OutboxOp, embeddingVersion string,
) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO indexing_outbox (outbox_id, note_id, op, embedding_version, status)
		VALUES ($1,$2,$3,$4,'PENDING')`,
		idgen.New(), noteID, op, embeddingVersion,
	)
	if err != nil {
		return fmt.Errorf("relstore: enqueue outbox: %w", err)
	}
	return nil
}

func scanOutbox(row interface{ Scan(...any) error }) (*models.IndexingOutboxEntry, error) {
	var e models.IndexingOutboxEntry
	if err := row.Scan(
		&e.OutboxID, &e.NoteID, &e.Op, &e.EmbeddingVersion, &e.Status, &e.Attempts,
		&e.LastError, &e.AvailableAt, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// ClaimNextOutboxJob claims and leases one PENDING/FAILED/CLAIMED-but-expired job, matching
// doc_outbox.rs's claim_next_doc_indexing_outbox_job: SELECT ... FOR UPDATE SKIP LOCKED inside
// a transaction, then an UPDATE to move it into CLAIMED with a new lease deadline.
func (s *Store) ClaimNextOutboxJob(
	ctx context.Context, now time.Time, leaseSeconds int64,
) (*models.IndexingOutboxEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("relstore: claim outbox job: begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT outbox_id, note_id, op, embedding_version, status, attempts, last_error,
			available_at, created_at, updated_at
		FROM indexing_outbox
		WHERE status IN ('PENDING','FAILED','CLAIMED') AND available_at <= $1
		ORDER BY available_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		now,
	)
	job, err := scanOutbox(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("relstore: claim outbox job: scan: %w", err)
	}

	leaseUntil := now.Add(time.Duration(leaseSeconds) * time.Second)
	if _, err := tx.ExecContext(ctx, `
		UPDATE indexing_outbox SET status = 'CLAIMED', available_at = $1, updated_at = $2
		WHERE outbox_id = $3`,
		leaseUntil, now, job.OutboxID,
	); err != nil {
		return nil, fmt.Errorf("relstore: claim outbox job: claim: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("relstore: claim outbox job: commit: %w", err)
	}

	job.AvailableAt = leaseUntil
	job.Status = models.OutboxStatusClaimed
	job.UpdatedAt = now
	return job, nil
}

// MarkOutboxDone marks a job DONE.
func (s *Store) MarkOutboxDone(ctx context.Context, outboxID uuid.UUID, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE indexing_outbox SET status = 'DONE', updated_at = $1 WHERE outbox_id = $2`,
		now, outboxID,
	)
	if err != nil {
		return fmt.Errorf("relstore: mark outbox done: %w", err)
	}
	return nil
}

// MarkOutboxFailed records a failed attempt with its next retry time, matching
// doc_outbox.rs's mark_doc_indexing_outbox_failed.
func (s *Store) MarkOutboxFailed(
	ctx context.Context, outboxID uuid.UUID, attempts int32, errText string,
	availableAt, now time.Time,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE indexing_outbox
		SET status = 'FAILED', attempts = $1, last_error = $2, available_at = $3, updated_at = $4
		WHERE outbox_id = $5`,
		attempts, errText, availableAt, now, outboxID,
	)
	if err != nil {
		return fmt.Errorf("relstore: mark outbox failed: %w", err)
	}
	return nil
}
