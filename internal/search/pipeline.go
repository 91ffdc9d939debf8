package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/elf/internal/access"
	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/domain"
	"github.com/steveyegge/elf/internal/idgen"
	"github.com/steveyegge/elf/internal/models"
	"github.com/steveyegge/elf/internal/providers"
	"github.com/steveyegge/elf/internal/relstore"
	"github.com/steveyegge/elf/internal/svcerr"
	"github.com/steveyegge/elf/internal/vectorstore"
)

// Clock abstracts the wall clock for deterministic tests, matching writegate's Clock idiom.
type Clock func() time.Time

// Pipeline bundles the collaborators the search path needs: the relational store (note/chunk/
// structured-field reads and the explain/trace tables), the vector store (fusion retrieval),
// the provider facade (embed/rerank/expand), and configuration.
type Pipeline struct {
	Store     *relstore.Store
	Vectors   *vectorstore.Store
	Providers *providers.Facade
	Config    *config.Config
	Now       Clock
}

// New builds a Pipeline with the real wall clock.
func New(store *relstore.Store, vectors *vectorstore.Store, providerFacade *providers.Facade, cfg *config.Config) *Pipeline {
	return &Pipeline{Store: store, Vectors: vectors, Providers: providerFacade, Config: cfg, Now: time.Now}
}

// Search runs the full SPEC_FULL.md §4.9 pipeline: validate, expand, generate candidates from
// both sources, merge, materialize notes, filter by access, stitch snippets, rerank, blend,
// diversify, truncate to top_k, and emit an explain trace.
func (p *Pipeline) Search(ctx context.Context, req Request) (*Response, error) {
	if req.TenantID == "" || req.ProjectID == "" || req.AgentID == "" {
		return nil, svcerr.InvalidRequest{Message: "tenant_id, project_id, and agent_id are required"}
	}
	if !domain.IsEnglishNaturalLanguage(req.Query) {
		return nil, svcerr.NonEnglishInput{Field: "$.query"}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = int(p.Config.Memory.TopK)
	}
	candidateK := req.CandidateK
	if candidateK <= 0 {
		candidateK = int(p.Config.Memory.CandidateK)
	}
	if maxC := int(p.Config.Search.Prefilter.MaxCandidates); maxC > 0 && candidateK > maxC {
		candidateK = maxC
	}

	now := p.Now()
	allowedScopes := resolveReadProfile(req.ReadProfile, p.Config.Scopes.ReadProfiles)
	scopeStrings := make([]string, len(allowedScopes))
	for i, s := range allowedScopes {
		scopeStrings[i] = string(s)
	}

	lexCfg := p.Config.Ranking.Deterministic.Lexical
	maxQueryTerms := int(lexCfg.MaxQueryTerms)
	if maxQueryTerms <= 0 {
		maxQueryTerms = 16
	}
	queryTokens := tokenizeQuery(req.Query, maxQueryTerms)

	queries, err := p.resolveQueries(ctx, req, allowedScopes, scopeStrings, candidateK)
	if err != nil {
		return nil, err
	}

	fusionCandidates, structuredCandidates, err := p.generateCandidates(ctx, req, queries, allowedScopes, scopeStrings, candidateK)
	if err != nil {
		return nil, err
	}

	sourcesPolicy := resolveRetrievalSourcesPolicy(p.Config.Ranking.RetrievalSources)
	merged := mergeRetrievalCandidates(map[RetrievalSourceKind][]ChunkCandidate{
		SourceFusion:          fusionCandidates,
		SourceStructuredField: structuredCandidates,
	}, sourcesPolicy, candidateK)

	items, err := p.materializeAndFilter(ctx, req, merged, now)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &Response{Items: nil, TraceID: idgen.New()}, nil
	}

	if err := p.stitchSnippets(ctx, items); err != nil {
		return nil, err
	}
	p.matchQueryTerms(items, queryTokens)

	if err := p.rerank(ctx, req.Query, items); err != nil {
		return nil, err
	}

	scopeBoosts := buildScopeContextBoostByScope(queryTokens, p.Config.Context)
	p.blendAndScore(items, queryTokens, scopeBoosts, now)

	order := selectDiverse(finalScores(items), snippets(items), p.Config.Ranking.Diversity)
	if len(order) > topK {
		order = order[:topK]
	}
	final := make([]RankedItem, len(order))
	for i, idx := range order {
		final[i] = items[idx]
	}

	if req.RecordHits {
		p.recordHits(ctx, final, now)
	}

	traceID := p.emitTrace(ctx, req, final, now)
	return &Response{Items: final, TraceID: traceID}, nil
}

func finalScores(items []RankedItem) []float32 {
	out := make([]float32, len(items))
	for i, it := range items {
		out[i] = it.BlendScore
	}
	return out
}

func snippets(items []RankedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Snippet
	}
	return out
}

// resolveRetrievalSourcesPolicy adapts config.RankingRetrievalSources to the internal weight/
// priority pair merge uses.
func resolveRetrievalSourcesPolicy(cfg config.RankingRetrievalSources) retrievalSourcesPolicy {
	return retrievalSourcesPolicy{
		fusionWeight: cfg.FusionWeight, structuredFieldWeight: cfg.StructuredFieldWeight,
		fusionPriority: cfg.FusionPriority, structuredFieldPriority: cfg.StructuredFieldPriority,
	}
}

// resolveQueries runs §4.9 step 2: decides whether to expand, and returns the final
// deduplicated, capped query set retrieval will run against.
func (p *Pipeline) resolveQueries(
	ctx context.Context, req Request, allowedScopes []models.Scope, scopeStrings []string, candidateK int,
) ([]string, error) {
	mode := resolveExpansionMode(p.Config)
	expCfg := p.Config.Search.Expansion

	switch mode {
	case ExpansionOff:
		return []string{req.Query}, nil
	case ExpansionAlways:
		expanded, err := p.callExpansion(ctx, req.Query, int(expCfg.MaxQueries), expCfg.IncludeOriginal)
		if err != nil {
			return []string{req.Query}, nil //nolint:nilerr // expansion is best-effort; fall back to the raw query
		}
		return normalizeQueries(expanded, req.Query, expCfg.IncludeOriginal, int(expCfg.MaxQueries)), nil
	case ExpansionDynamic:
		dense, _ := p.searchFusionOnce(ctx, req, req.Query, allowedScopes, scopeStrings, candidateK)
		var topScore float32
		if len(dense) > 0 {
			topScore = dense[0].Score
		}
		if !shouldExpandDynamic(len(dense), topScore, p.Config.Search.Dynamic) {
			return []string{req.Query}, nil
		}
		expanded, err := p.callExpansion(ctx, req.Query, int(expCfg.MaxQueries), expCfg.IncludeOriginal)
		if err != nil {
			return []string{req.Query}, nil //nolint:nilerr
		}
		return normalizeQueries(expanded, req.Query, expCfg.IncludeOriginal, int(expCfg.MaxQueries)), nil
	default:
		return []string{req.Query}, nil
	}
}

// callExpansion invokes the Extract capability with the expansion prompt and parses its
// {"queries": [...]} response.
func (p *Pipeline) callExpansion(ctx context.Context, query string, maxQueries int, includeOriginal bool) ([]string, error) {
	messages := buildExpansionMessages(query, maxQueries, includeOriginal)
	raw, err := p.Providers.Extractor.Extract(ctx, p.Config.Providers.LLMExtractor, messages)
	if err != nil {
		return nil, fmt.Errorf("search: call expansion: %w", err)
	}
	queriesRaw, ok := raw["queries"].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(queriesRaw))
	for _, q := range queriesRaw {
		if s, ok := q.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// searchFusionOnce runs one query's dense+BM25 fusion against the scoped vector store,
// returning fused candidates ranked 1..n.
func (p *Pipeline) searchFusionOnce(
	ctx context.Context, req Request, query string, allowedScopes []models.Scope, scopeStrings []string, candidateK int,
) ([]ChunkCandidate, error) {
	var projectContext *string
	if p.Config.Context != nil {
		if desc, ok := p.Config.Context.ProjectDescriptions[req.ProjectID]; ok {
			projectContext = &desc
		}
	}
	embedInput := buildDenseEmbeddingInput(query, projectContext)

	vecs, err := p.Providers.Embedding.Embed(ctx, p.Config.Providers.Embedding, []string{embedInput})
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	filter := vectorstore.ScopeFilter{TenantID: req.TenantID, ProjectID: req.ProjectID, Scopes: scopeStrings}
	limit := uint64(candidateK)

	dense, err := p.Vectors.SearchDense(ctx, vecs[0], filter, limit)
	if err != nil {
		return nil, fmt.Errorf("search: dense search: %w", err)
	}
	bm25, err := p.Vectors.SearchBM25(ctx, query, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("search: bm25 search: %w", err)
	}
	return fuseDenseAndBM25(dense, bm25), nil
}

// fuseDenseAndBM25 client-side-fuses the dense and BM25 result lists into one ranked "fusion"
// source list, each sub-source weighted equally and combined via rank_normalize, the same
// weighted-rank composition merge_retrieval_candidates uses one level up for cross-source
// merge. Qdrant's server-side fusion (a single Query call using Fusion{RRF}) was not exposed by
// this codebase's vectorstore.Store, which only wraps single-vector dense/BM25 queries; this is
// the client-side equivalent.
func fuseDenseAndBM25(dense, bm25 []vectorstore.ChunkCandidate) []ChunkCandidate {
	type entry struct {
		cand      vectorstore.ChunkCandidate
		denseRank int
		bm25Rank  int
	}
	byChunk := map[uuid.UUID]*entry{}
	for i, c := range dense {
		byChunk[c.ChunkID] = &entry{cand: c, denseRank: i + 1}
	}
	for i, c := range bm25 {
		if e, ok := byChunk[c.ChunkID]; ok {
			e.bm25Rank = i + 1
		} else {
			byChunk[c.ChunkID] = &entry{cand: c, bm25Rank: i + 1}
		}
	}

	type scored struct {
		entry *entry
		score float32
	}
	scoredList := make([]scored, 0, len(byChunk))
	for _, e := range byChunk {
		score := 0.5*rankNormalize(e.denseRank, len(dense)) + 0.5*rankNormalize(e.bm25Rank, len(bm25))
		scoredList = append(scoredList, scored{entry: e, score: score})
	}
	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].score != scoredList[j].score {
			return scoredList[i].score > scoredList[j].score
		}
		return scoredList[i].entry.cand.ChunkID.String() < scoredList[j].entry.cand.ChunkID.String()
	})

	out := make([]ChunkCandidate, len(scoredList))
	for i, s := range scoredList {
		out[i] = ChunkCandidate{
			ChunkID: s.entry.cand.ChunkID, NoteID: s.entry.cand.NoteID, ChunkIndex: s.entry.cand.ChunkIndex,
			Score: s.score, UpdatedAt: s.entry.cand.UpdatedAt, EmbeddingVersion: s.entry.cand.EmbeddingVersion,
			Source: SourceFusion,
		}
	}
	return out
}

// generateCandidates runs §4.9 step 3 across every expanded query, concatenating each source's
// per-query hits into one list per source (duplicate chunk hits across queries are resolved by
// merge's per-source min-rank rule).
func (p *Pipeline) generateCandidates(
	ctx context.Context, req Request, queries []string, allowedScopes []models.Scope, scopeStrings []string, candidateK int,
) ([]ChunkCandidate, []ChunkCandidate, error) {
	var fusion []ChunkCandidate
	var structured []ChunkCandidate

	embeddingVersion := providers.EmbeddingVersion(p.Config.Providers.Embedding)

	for _, q := range queries {
		f, err := p.searchFusionOnce(ctx, req, q, allowedScopes, scopeStrings, candidateK)
		if err != nil {
			return nil, nil, err
		}
		fusion = append(fusion, f...)

		vecs, err := p.Providers.Embedding.Embed(ctx, p.Config.Providers.Embedding, []string{q})
		if err != nil {
			return nil, nil, fmt.Errorf("search: embed query for structured fields: %w", err)
		}
		hits, err := p.Store.SearchStructuredFields(ctx, vecs[0], embeddingVersion, req.TenantID, req.ProjectID, scopeStrings, candidateK)
		if err != nil {
			return nil, nil, fmt.Errorf("search: structured field search: %w", err)
		}
		for _, h := range hits {
			structured = append(structured, ChunkCandidate{
				ChunkID: h.ChunkID, NoteID: h.NoteID, ChunkIndex: 0, Score: h.Similarity,
				Source: SourceStructuredField, EmbeddingVersion: embeddingVersion,
			})
		}
	}
	return fusion, structured, nil
}

// materializeAndFilter runs §4.9 steps 5-6: load the candidate notes, drop stale points, and
// apply note_read_allowed.
func (p *Pipeline) materializeAndFilter(ctx context.Context, req Request, merged []MergedCandidate, now time.Time) ([]RankedItem, error) {
	if len(merged) == 0 {
		return nil, nil
	}
	noteIDs := make([]uuid.UUID, len(merged))
	for i, c := range merged {
		noteIDs[i] = c.NoteID
	}
	notes, err := p.Store.GetNotesByIDs(ctx, noteIDs)
	if err != nil {
		return nil, fmt.Errorf("search: load candidate notes: %w", err)
	}

	grants, err := p.Store.LoadSharedReadGrants(ctx, req.TenantID, req.ProjectID, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("search: load shared read grants: %w", err)
	}

	allowedScopes := resolveReadProfile(req.ReadProfile, p.Config.Scopes.ReadProfiles)

	var out []RankedItem
	for _, c := range merged {
		note, ok := notes[c.NoteID]
		if !ok || !candidateMatchesNote(note, c) {
			continue
		}
		if !access.NoteReadAllowed(note, req.AgentID, allowedScopes, grants, now) {
			continue
		}
		out = append(out, RankedItem{
			Note: note, ChunkID: c.ChunkID, ChunkIndex: c.ChunkIndex,
			RetrievalScore: c.CombinedScore,
		})
	}
	return out, nil
}

func (p *Pipeline) stitchSnippets(ctx context.Context, items []RankedItem) error {
	candidates := make([]MergedCandidate, len(items))
	for i, it := range items {
		candidates[i] = MergedCandidate{NoteID: it.Note.NoteID, ChunkIndex: it.ChunkIndex}
	}
	pairs := collectNeighborPairs(candidates)
	noteIDSet := map[uuid.UUID]struct{}{}
	for _, pair := range pairs {
		noteIDSet[pair.NoteID] = struct{}{}
	}
	noteIDs := make([]uuid.UUID, 0, len(noteIDSet))
	for id := range noteIDSet {
		noteIDs = append(noteIDs, id)
	}
	chunks, err := p.Store.GetChunkTexts(ctx, noteIDs)
	if err != nil {
		return fmt.Errorf("search: load chunk texts: %w", err)
	}
	for i := range items {
		items[i].Snippet = stitchSnippet(items[i].Note.NoteID, items[i].ChunkIndex, chunks)
	}
	return nil
}

// matchQueryTerms fills MatchedTerms/MatchedFields for every item, scanning every query token
// (at most max_query_terms, 16 by default) against the snippet text and the note's key.
func (p *Pipeline) matchQueryTerms(items []RankedItem, queryTokens []string) {
	for i := range items {
		terms, fields := matchTermsInText(queryTokens, items[i].Snippet, items[i].Note.Key, len(queryTokens))
		items[i].MatchedTerms = terms
		items[i].MatchedFields = fields
	}
}

// rerank runs §4.9 step 8: call Rerank(original_query, stitched_snippets). It builds the rerank
// cache key when caching is enabled but always calls the provider; no cached scores are read or
// written.
func (p *Pipeline) rerank(ctx context.Context, query string, items []RankedItem) error {
	if len(items) == 0 {
		return nil
	}
	rerankCfg := p.Config.Providers.Rerank
	docs := make([]string, len(items))
	for i, it := range items {
		docs[i] = it.Snippet
	}

	if p.Config.Search.Cache.Enabled {
		keys := make([]RerankCandidateKey, len(items))
		for i, it := range items {
			keys[i] = RerankCandidateKey{ChunkID: it.ChunkID, UpdatedAt: it.Note.UpdatedAt}
		}
		if _, err := buildRerankCacheKey(query, rerankCfg.ProviderID, rerankCfg.Model, keys); err != nil {
			return fmt.Errorf("search: build rerank cache key: %w", err)
		}
		// A real cache-store lookup/write would key off this value; this codebase has no
		// cache backing store wired in yet, so rerank always calls through (see DESIGN.md).
	}

	scores, err := p.Providers.Rerank.Rerank(ctx, rerankCfg, query, docs)
	if err != nil {
		return fmt.Errorf("search: rerank: %w", err)
	}
	for i := range items {
		if i < len(scores) {
			s := scores[i]
			items[i].RerankScore = &s
		}
	}
	return nil
}

// blendAndScore runs §4.9 step 9 for every item: normalized retrieval/rerank ranks, the
// piecewise retrieval weight, tie-breaker, scope boost, and deterministic terms, summed into
// BlendScore and recorded as explain terms.
func (p *Pipeline) blendAndScore(items []RankedItem, queryTokens []string, scopeBoosts map[string]float32, now time.Time) {
	n := len(items)

	retrievalOrder := argsortDesc(func(i int) float32 { return items[i].RetrievalScore }, n)
	retrievalRank := make([]int, n)
	for rank, idx := range retrievalOrder {
		retrievalRank[idx] = rank + 1
	}

	rerankOrder := argsortDesc(func(i int) float32 {
		if items[i].RerankScore != nil {
			return *items[i].RerankScore
		}
		return -1e9
	}, n)
	rerankRank := make([]int, n)
	for rank, idx := range rerankOrder {
		rerankRank[idx] = rank + 1
	}

	blendCfg := p.Config.Ranking.Blend
	detCfg := p.Config.Ranking.Deterministic

	for i := range items {
		it := &items[i]
		retrievalNorm := rankNormalize(retrievalRank[i], n)
		rerankNorm := rankNormalize(rerankRank[i], n)
		retrievalWeight := retrievalWeightForRank(blendCfg.Segments, retrievalRank[i])

		var blend float32
		if blendCfg.Enabled {
			blend = blendScore(retrievalWeight, retrievalNorm, rerankNorm)
		} else {
			blend = retrievalNorm
		}

		ageDays := float32(now.Sub(it.Note.UpdatedAt).Hours() / 24)
		tb := tieBreaker(p.Config.Ranking.TieBreakerWeight, it.Note.Importance, ageDays, p.Config.Ranking.RecencyTauDays)
		scopeBoost := scopeBoosts[string(it.Note.Scope)]

		det := computeDeterministicRankingTerms(detCfg, queryTokens, it.Snippet, it.Note.HitCount, it.Note.LastHitAt, ageDays, now)
		it.DeterministicSum = det.LexicalBonus + det.HitBoost + det.DecayPenalty
		it.BlendScore = finalScore(blend, tb, scopeBoost, det)

		var rerankScore float32
		if it.RerankScore != nil {
			rerankScore = *it.RerankScore
		}
		it.Terms = buildTraceTermsV2(traceTermsArgs{
			cfg: p.Config, blendEnabled: blendCfg.Enabled,
			retrievalNormalization: blendCfg.RetrievalNormalization, rerankNormalization: blendCfg.RerankNormalization,
			blendRetrievalWeight: retrievalWeight, retrievalRank: retrievalRank[i], retrievalNorm: retrievalNorm,
			retrievalTerm: retrievalWeight * retrievalNorm, rerankScore: rerankScore, rerankRank: rerankRank[i],
			rerankNorm: rerankNorm, rerankTerm: (1 - retrievalWeight) * rerankNorm, tieBreakerScore: tb,
			importance: it.Note.Importance, ageDays: ageDays, scope: string(it.Note.Scope), scopeContextBoost: scopeBoost,
			det: det,
		})
	}
}

func argsortDesc(score func(int) float32, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 1; i < n; i++ {
		for j := i; j > 0 && score(idx[j]) > score(idx[j-1]); j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
	return idx
}

func (p *Pipeline) recordHits(ctx context.Context, items []RankedItem, now time.Time) {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.Note.NoteID
	}
	_ = p.Store.TouchHit(ctx, ids, now)
}

// emitTrace persists the SearchTrace header, per-item explain rows, and the trace-outbox
// marker (§4.10). Trace persistence errors are discarded and never fail the search
// itself — an explain trace is diagnostic, not load-bearing.
func (p *Pipeline) emitTrace(ctx context.Context, req Request, items []RankedItem, now time.Time) uuid.UUID {
	traceID := idgen.New()

	candidateHash, _ := hashCacheKey(items)
	policyHash, _ := hashCacheKey(p.Config.Ranking)

	trace := &models.SearchTrace{
		TraceID: traceID, SessionID: req.SessionID, Query: req.Query,
		CandidateSetHash: candidateHash, RankingPolicyHash: policyHash,
		SchemaVersion: SearchRankingExplainSchemaV2, CreatedAt: now,
	}
	if err := p.Store.InsertSearchTrace(ctx, trace); err != nil {
		return traceID
	}

	traceItems := make([]relstore.SearchTraceItem, len(items))
	for i, it := range items {
		explain := SearchRankingExplain{
			Schema: SearchRankingExplainSchemaV2, PolicyID: policyHash,
			FinalScore: it.BlendScore, Terms: it.Terms,
		}
		encoded, _ := json.Marshal(explain)
		traceItems[i] = relstore.SearchTraceItem{
			Rank: i + 1, NoteID: it.Note.NoteID, ChunkID: it.ChunkID, FinalScore: it.BlendScore, Explain: encoded,
		}
	}
	_ = p.Store.InsertSearchTraceItems(ctx, traceID, traceItems)
	_ = p.Store.EnqueueSearchTraceOutbox(ctx, traceID)
	if req.SessionID != nil {
		_ = p.Store.UpsertSearchSession(ctx, *req.SessionID, req.TenantID, req.ProjectID, req.AgentID, now)
	}
	return traceID
}
