// Package outbox implements the indexing worker: it claims PENDING/FAILED/CLAIMED-but-expired
// rows from indexing_outbox with a time lease, chunks and embeds the referenced note, upserts
// vector points, and marks the job DONE or reschedules it with bounded backoff.
//
// Grounded on original_source/packages/elf-storage/src/doc_outbox.rs for the claim/lease state
// machine and internal/storage/dolt/store.go's newServerRetryBackoff for the backoff/v4 usage
// idiom, generalized from a single-shot connection retry to a persistent poll loop the way the
// teacher's daemon packages run a goroutine against a ticker.
package outbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/elf/internal/chunker"
	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/providers"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/telemetry"
	"github.com/steveyegge/elf/internal/vectorstore"
)

var (
	tracer = telemetry.Tracer("github.com/steveyegge/elf/internal/outbox")
	meter  = telemetry.Meter("github.com/steveyegge/elf/internal/outbox")
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Worker polls indexing_outbox and drives claimed jobs to DONE or FAILED.
type Worker struct {
	Store    *relstore.Store
	Vectors  *vectorstore.Store
	Embedder providers.Embedder
	Chunker  *chunker.Chunker
	Config   *config.Config
	Now      Clock

	jobsClaimed metric.Int64Counter
	jobsDone    metric.Int64Counter
	jobsFailed  metric.Int64Counter
}

// New builds a Worker with its otel instruments registered.
func New(store *relstore.Store, vectors *vectorstore.Store, embedder providers.Embedder, ck *chunker.Chunker, cfg *config.Config) *Worker {
	w := &Worker{Store: store, Vectors: vectors, Embedder: embedder, Chunker: ck, Config: cfg, Now: time.Now}
	w.jobsClaimed, _ = meter.Int64Counter("elf.outbox.jobs_claimed_total")
	w.jobsDone, _ = meter.Int64Counter("elf.outbox.jobs_done_total")
	w.jobsFailed, _ = meter.Int64Counter("elf.outbox.jobs_failed_total")
	return w
}

// Run polls at cfg.Indexer.PollInterval until ctx is cancelled. Each tick drains every
// currently-claimable job before sleeping again, so a burst of writes is indexed promptly
// rather than one job per tick.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.Config.Indexer.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for {
			claimed, err := w.tick(ctx)
			if err != nil {
				return err
			}
			if !claimed {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick claims and processes at most one job, returning whether a job was claimed so Run can
// keep draining the queue without waiting for the next tick.
func (w *Worker) tick(ctx context.Context) (bool, error) {
	now := w.Now()
	job, err := w.Store.ClaimNextOutboxJob(ctx, now, w.Config.Indexer.LeaseSeconds)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.jobsClaimed.Add(ctx, 1)

	ctx, span := tracer.Start(ctx, "outbox.processJob")
	span.SetAttributes(attribute.String("elf.outbox.note_id", job.NoteID.String()))
	procErr := w.processJob(ctx, job, now)
	if procErr != nil {
		span.RecordError(procErr)
		span.SetStatus(codes.Error, procErr.Error())
		if failErr := w.fail(ctx, job, procErr, now); failErr != nil {
			span.End()
			return true, failErr
		}
		w.jobsFailed.Add(ctx, 1)
		span.End()
		return true, nil
	}
	span.End()
	w.jobsDone.Add(ctx, 1)
	return true, nil
}

func (w *Worker) fail(ctx context.Context, job *models.IndexingOutboxEntry, cause error, now time.Time) error {
	attempts := job.Attempts + 1
	available := now.Add(backoffDelay(w.Config.Indexer.BackoffBase, w.Config.Indexer.BackoffCap, attempts))
	msg := truncateError(cause, w.Config.Indexer.MaxLastErrorChars)
	return w.Store.MarkOutboxFailed(ctx, job.OutboxID, attempts, msg, available, now)
}

func truncateError(err error, maxChars int) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if maxChars <= 0 || len(msg) <= maxChars {
		return msg
	}
	return msg[:maxChars]
}
