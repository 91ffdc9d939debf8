// Package app assembles the collaborators every cmd/ entrypoint needs from one config document,
// the same role original_source/apps/elf-worker/src/lib.rs's WorkerState plays for the Rust
// worker binary: connect once at startup, hand the live handles to whichever entrypoint-specific
// loop (serve, work, or a CLI subcommand) runs next.
package app

import (
	"context"
	"fmt"

	"github.com/steveyegge/elf/internal/admin"
	"github.com/steveyegge/elf/internal/chunker"
	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/outbox"
	"github.com/steveyegge/elf/internal/providers"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/search"
	"github.com/steveyegge/elf/internal/vectorstore"
	"github.com/steveyegge/elf/internal/writegate"
)

// App holds every long-lived handle an entrypoint wires into its own top-level loop.
type App struct {
	Config    *config.Config
	Store     *relstore.Store
	Vectors   *vectorstore.Store
	Providers *providers.Facade
	Chunker   *chunker.Chunker

	Writegate *writegate.Gate
	Search    *search.Pipeline
	Rebuilder *admin.Rebuilder
	Worker    *outbox.Worker
}

// Open loads configPath, connects the relational and vector stores, runs schema/collection
// bootstrap, and wires every orchestration-layer collaborator (writegate, search, admin
// rebuild, the outbox worker) on top. Callers that only need a subset (e.g. elfctl's list/search
// subcommands never run the outbox worker) simply ignore the fields they don't use.
func Open(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := relstore.Open(ctx, cfg.Storage.Postgres)
	if err != nil {
		return nil, err
	}
	if err := store.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("app: bootstrap schema: %w", err)
	}

	vectors, err := vectorstore.New(cfg.Storage.Qdrant)
	if err != nil {
		return nil, err
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("app: ensure qdrant collection: %w", err)
	}

	ck, err := chunker.New(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	facade := providers.Default()

	return &App{
		Config: cfg, Store: store, Vectors: vectors, Providers: facade, Chunker: ck,
		Writegate: writegate.New(store, facade.Embedding, facade.Extractor, cfg),
		Search:    search.New(store, vectors, facade, cfg),
		Rebuilder: admin.New(store, vectors),
		Worker:    outbox.New(store, vectors, facade.Embedding, ck, cfg),
	}, nil
}

// Close releases the relational and vector store connections.
func (a *App) Close() error {
	verr := a.Vectors.Close()
	serr := a.Store.Close()
	if serr != nil {
		return serr
	}
	return verr
}
