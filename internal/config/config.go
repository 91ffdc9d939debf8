// Package config loads and validates the service's process-wide configuration. The shape
// mirrors the richer of the two config variants found upstream (api_base-named provider
// configs, the fuller Search/SearchCache/SearchExplain structs); see DESIGN.md's Open Question
// resolutions for why.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration document.
type Config struct {
	Service   Service   `mapstructure:"service"`
	Storage   Storage   `mapstructure:"storage"`
	Providers Providers `mapstructure:"providers"`
	Scopes    Scopes    `mapstructure:"scopes"`
	Memory    Memory    `mapstructure:"memory"`
	Chunking  Chunking  `mapstructure:"chunking"`
	Search    Search    `mapstructure:"search"`
	Ranking   Ranking   `mapstructure:"ranking"`
	Lifecycle Lifecycle `mapstructure:"lifecycle"`
	Security  Security  `mapstructure:"security"`
	Indexer   Indexer   `mapstructure:"indexer"`
	Context   *Context  `mapstructure:"context"`
}

// Indexer configures the outbox worker's claim lease and FAILED-retry backoff (SPEC_FULL.md
// §4.7).
type Indexer struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	LeaseSeconds      int64         `mapstructure:"lease_seconds"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	BackoffCap        time.Duration `mapstructure:"backoff_cap"`
	MaxLastErrorChars int           `mapstructure:"max_last_error_chars"`
}

// Context carries human-authored descriptions used by the scope-boost ranking term.
type Context struct {
	ProjectDescriptions map[string]string `mapstructure:"project_descriptions"`
	ScopeDescriptions   map[string]string `mapstructure:"scope_descriptions"`
	ScopeBoostWeight    float32           `mapstructure:"scope_boost_weight"`
}

// Service holds process bind addresses and log level. Binding itself is out of scope for the
// core (§1); these fields exist so a front-end process can read them from the same document.
type Service struct {
	HTTPBind  string `mapstructure:"http_bind"`
	MCPBind   string `mapstructure:"mcp_bind"`
	AdminBind string `mapstructure:"admin_bind"`
	LogLevel  string `mapstructure:"log_level"`
}

// Storage holds the relational and vector store connection settings.
type Storage struct {
	Postgres Postgres `mapstructure:"postgres"`
	Qdrant   Qdrant   `mapstructure:"qdrant"`
}

// Postgres configures the relational store adapter's connection pool.
type Postgres struct {
	DSN          string `mapstructure:"dsn"`
	PoolMaxConns uint32 `mapstructure:"pool_max_conns"`
}

// Qdrant configures the vector store adapter's collection.
type Qdrant struct {
	URL             string `mapstructure:"url"`
	Collection      string `mapstructure:"collection"`
	DocsCollection  string `mapstructure:"docs_collection"`
	VectorDim       uint32 `mapstructure:"vector_dim"`
}

// Providers groups the three capability facades' configs.
type Providers struct {
	Embedding    EmbeddingProviderConfig `mapstructure:"embedding"`
	Rerank       ProviderConfig          `mapstructure:"rerank"`
	LLMExtractor LLMProviderConfig       `mapstructure:"llm_extractor"`
}

// EmbeddingProviderConfig configures the Embed capability. Canonical field name is ApiBase,
// not BaseURL (see DESIGN.md Open Question resolutions).
type EmbeddingProviderConfig struct {
	ProviderID     string            `mapstructure:"provider_id"`
	APIBase        string            `mapstructure:"api_base"`
	APIKey         string            `mapstructure:"api_key"`
	Path           string            `mapstructure:"path"`
	Model          string            `mapstructure:"model"`
	Dimensions     uint32            `mapstructure:"dimensions"`
	TimeoutMS      uint64            `mapstructure:"timeout_ms"`
	DefaultHeaders map[string]string `mapstructure:"default_headers"`
}

// ProviderConfig configures the Rerank capability.
type ProviderConfig struct {
	ProviderID     string            `mapstructure:"provider_id"`
	APIBase        string            `mapstructure:"api_base"`
	APIKey         string            `mapstructure:"api_key"`
	Path           string            `mapstructure:"path"`
	Model          string            `mapstructure:"model"`
	TimeoutMS      uint64            `mapstructure:"timeout_ms"`
	DefaultHeaders map[string]string `mapstructure:"default_headers"`
}

// LLMProviderConfig configures the Extract capability.
type LLMProviderConfig struct {
	ProviderID     string            `mapstructure:"provider_id"`
	APIBase        string            `mapstructure:"api_base"`
	APIKey         string            `mapstructure:"api_key"`
	Path           string            `mapstructure:"path"`
	Model          string            `mapstructure:"model"`
	Temperature    float32           `mapstructure:"temperature"`
	TimeoutMS      uint64            `mapstructure:"timeout_ms"`
	DefaultHeaders map[string]string `mapstructure:"default_headers"`
}

// Scopes configures which scopes exist, who may read them by default, and who may write them.
type Scopes struct {
	Allowed       []string            `mapstructure:"allowed"`
	ReadProfiles  ReadProfiles        `mapstructure:"read_profiles"`
	Precedence    ScopePrecedence     `mapstructure:"precedence"`
	WriteAllowed  ScopeWriteAllowed   `mapstructure:"write_allowed"`
}

// ReadProfiles maps a caller-selected read profile to the scopes it resolves to.
type ReadProfiles struct {
	PrivateOnly        []string `mapstructure:"private_only"`
	PrivatePlusProject []string `mapstructure:"private_plus_project"`
	AllScopes          []string `mapstructure:"all_scopes"`
}

// ScopePrecedence orders scopes from least to most visible.
type ScopePrecedence struct {
	AgentPrivate  int32 `mapstructure:"agent_private"`
	ProjectShared int32 `mapstructure:"project_shared"`
	OrgShared     int32 `mapstructure:"org_shared"`
}

// ScopeWriteAllowed gates which scopes accept writes.
type ScopeWriteAllowed struct {
	AgentPrivate  bool `mapstructure:"agent_private"`
	ProjectShared bool `mapstructure:"project_shared"`
	OrgShared     bool `mapstructure:"org_shared"`
}

// Memory configures the write-gate's batching, dedup thresholds, and policy filter.
type Memory struct {
	MaxNotesPerAddEvent uint32        `mapstructure:"max_notes_per_add_event"`
	MaxNoteChars        uint32        `mapstructure:"max_note_chars"`
	DupSimThreshold     float32       `mapstructure:"dup_sim_threshold"`
	UpdateSimThreshold  float32       `mapstructure:"update_sim_threshold"`
	CandidateK          uint32        `mapstructure:"candidate_k"`
	TopK                uint32        `mapstructure:"top_k"`
	Policy              MemoryPolicy  `mapstructure:"policy"`
}

// MemoryPolicy is the optional REMEMBER→IGNORE filter described in SPEC_FULL.md §4.6 step 5.
type MemoryPolicy struct {
	Rules []MemoryPolicyRule `mapstructure:"rules"`
}

// MemoryPolicyRule downgrades a REMEMBER decision to IGNORE when the extracted note's
// confidence or importance falls below the rule's threshold, for notes matching NoteType/Scope
// if those are set.
type MemoryPolicyRule struct {
	NoteType      *string  `mapstructure:"note_type"`
	Scope         *string  `mapstructure:"scope"`
	MinConfidence *float32 `mapstructure:"min_confidence"`
	MinImportance *float32 `mapstructure:"min_importance"`
}

// Chunking configures the sentence-boundary token-budgeted chunker.
type Chunking struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxTokens     uint32 `mapstructure:"max_tokens"`
	OverlapTokens uint32 `mapstructure:"overlap_tokens"`
	TokenizerRepo string `mapstructure:"tokenizer_repo"`
}

// Search configures the retrieval pipeline's expansion, caching, and explain behavior.
type Search struct {
	Expansion SearchExpansion `mapstructure:"expansion"`
	Dynamic   SearchDynamic   `mapstructure:"dynamic"`
	Prefilter SearchPrefilter `mapstructure:"prefilter"`
	Cache     SearchCache     `mapstructure:"cache"`
	Explain   SearchExplain   `mapstructure:"explain"`
}

// SearchExpansion configures query-expansion mode and bounds.
type SearchExpansion struct {
	Mode             string `mapstructure:"mode"` // off | always | dynamic
	MaxQueries       uint32 `mapstructure:"max_queries"`
	IncludeOriginal  bool   `mapstructure:"include_original"`
}

// SearchDynamic configures the thresholds that trigger expansion in "dynamic" mode.
type SearchDynamic struct {
	MinCandidates uint32  `mapstructure:"min_candidates"`
	MinTopScore   float32 `mapstructure:"min_top_score"`
}

// SearchPrefilter bounds the candidate set size before rerank.
type SearchPrefilter struct {
	MaxCandidates uint32 `mapstructure:"max_candidates"`
}

// SearchCache configures the expansion/rerank result caches. This is the richer canonical
// shape (see DESIGN.md Open Question resolutions), carrying MaxPayloadBytes.
type SearchCache struct {
	Enabled          bool   `mapstructure:"enabled"`
	ExpansionTTLDays int64  `mapstructure:"expansion_ttl_days"`
	RerankTTLDays    int64  `mapstructure:"rerank_ttl_days"`
	MaxPayloadBytes  *uint64 `mapstructure:"max_payload_bytes"`
}

// SearchExplain configures the trace/explain emitter (§4.10).
type SearchExplain struct {
	RetentionDays          int64  `mapstructure:"retention_days"`
	CaptureCandidates      bool   `mapstructure:"capture_candidates"`
	CandidateRetentionDays int64  `mapstructure:"candidate_retention_days"`
	WriteMode              string `mapstructure:"write_mode"`
}

// Ranking configures the blend/diversity/retrieval-source policy consumed by internal/search.
type Ranking struct {
	RecencyTauDays     float32                  `mapstructure:"recency_tau_days"`
	TieBreakerWeight   float32                  `mapstructure:"tie_breaker_weight"`
	Blend              RankingBlend             `mapstructure:"blend"`
	Deterministic      RankingDeterministic     `mapstructure:"deterministic"`
	Diversity          RankingDiversity         `mapstructure:"diversity"`
	RetrievalSources   RankingRetrievalSources  `mapstructure:"retrieval_sources"`
}

// RankingBlend configures the retrieval/rerank blend (§4.9 step 9).
type RankingBlend struct {
	Enabled               bool                    `mapstructure:"enabled"`
	RerankNormalization   string                  `mapstructure:"rerank_normalization"`
	RetrievalNormalization string                 `mapstructure:"retrieval_normalization"`
	Segments              []RankingBlendSegment   `mapstructure:"segments"`
}

// RankingBlendSegment is one piecewise segment of the retrieval-rank→weight policy.
type RankingBlendSegment struct {
	MaxRetrievalRank uint32  `mapstructure:"max_retrieval_rank"`
	RetrievalWeight  float32 `mapstructure:"retrieval_weight"`
}

// RankingDeterministic enables/configures the three deterministic bonus terms.
type RankingDeterministic struct {
	Enabled bool                         `mapstructure:"enabled"`
	Lexical RankingDeterministicLexical  `mapstructure:"lexical"`
	Hits    RankingDeterministicHits     `mapstructure:"hits"`
	Decay   RankingDeterministicDecay    `mapstructure:"decay"`
}

// RankingDeterministicLexical configures the lexical-overlap bonus.
type RankingDeterministicLexical struct {
	Enabled       bool    `mapstructure:"enabled"`
	Weight        float32 `mapstructure:"weight"`
	MinRatio      float32 `mapstructure:"min_ratio"`
	MaxQueryTerms uint32  `mapstructure:"max_query_terms"`
	MaxTextTerms  uint32  `mapstructure:"max_text_terms"`
}

// RankingDeterministicHits configures the hit-count recency bonus.
type RankingDeterministicHits struct {
	Enabled        bool    `mapstructure:"enabled"`
	Weight         float32 `mapstructure:"weight"`
	HalfSaturation float32 `mapstructure:"half_saturation"`
	LastHitTauDays float32 `mapstructure:"last_hit_tau_days"`
}

// RankingDeterministicDecay configures the age-decay penalty.
type RankingDeterministicDecay struct {
	Enabled bool    `mapstructure:"enabled"`
	Weight  float32 `mapstructure:"weight"`
	TauDays float32 `mapstructure:"tau_days"`
}

// RankingDiversity configures the MMR diversification stage.
type RankingDiversity struct {
	Enabled      bool    `mapstructure:"enabled"`
	SimThreshold float32 `mapstructure:"sim_threshold"`
	MMRLambda    float32 `mapstructure:"mmr_lambda"`
	MaxSkips     uint32  `mapstructure:"max_skips"`
}

// RankingRetrievalSources weights and prioritizes the fusion vs structured-field candidate
// sources during merge (§4.9 step 4).
type RankingRetrievalSources struct {
	FusionWeight           float32 `mapstructure:"fusion_weight"`
	StructuredFieldWeight  float32 `mapstructure:"structured_field_weight"`
	FusionPriority         uint32  `mapstructure:"fusion_priority"`
	StructuredFieldPriority uint32 `mapstructure:"structured_field_priority"`
}

// Lifecycle configures TTL defaults and purge schedules.
type Lifecycle struct {
	TTLDays                   TTLDays `mapstructure:"ttl_days"`
	PurgeDeletedAfterDays     int64   `mapstructure:"purge_deleted_after_days"`
	PurgeDeprecatedAfterDays  int64   `mapstructure:"purge_deprecated_after_days"`
}

// TTLDays holds the per-note-type default TTL (0 = never expires).
type TTLDays struct {
	Plan       int64 `mapstructure:"plan"`
	Fact       int64 `mapstructure:"fact"`
	Preference int64 `mapstructure:"preference"`
	Constraint int64 `mapstructure:"constraint"`
	Decision   int64 `mapstructure:"decision"`
	Profile    int64 `mapstructure:"profile"`
}

// Security configures write-time validation thresholds independent of scope/type rules.
type Security struct {
	BindLocalhostOnly     bool   `mapstructure:"bind_localhost_only"`
	RejectCJK             bool   `mapstructure:"reject_cjk"`
	RedactSecretsOnWrite  bool   `mapstructure:"redact_secrets_on_write"`
	EvidenceMinQuotes     uint32 `mapstructure:"evidence_min_quotes"`
	EvidenceMaxQuotes     uint32 `mapstructure:"evidence_max_quotes"`
	EvidenceMaxQuoteChars uint32 `mapstructure:"evidence_max_quote_chars"`
}

// Load reads and validates the configuration document at path using viper's YAML codec.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the range invariants the teacher's own config layer enforces at load time
// (see internal/config/yaml_config.go's key-classification idiom, generalized here to
// value-range validation): thresholds must be within [0,1], the dedup ordering must hold, and
// every declared scope must be one of the three known scopes.
func Validate(cfg *Config) error {
	if cfg.Memory.DupSimThreshold <= cfg.Memory.UpdateSimThreshold {
		return fmt.Errorf("memory.dup_sim_threshold (%v) must be greater than memory.update_sim_threshold (%v); reversing this ordering silently drops real updates",
			cfg.Memory.DupSimThreshold, cfg.Memory.UpdateSimThreshold)
	}
	if err := validateUnitRange("memory.dup_sim_threshold", cfg.Memory.DupSimThreshold); err != nil {
		return err
	}
	if err := validateUnitRange("memory.update_sim_threshold", cfg.Memory.UpdateSimThreshold); err != nil {
		return err
	}
	for _, scope := range cfg.Scopes.Allowed {
		switch scope {
		case "agent_private", "project_shared", "org_shared":
		default:
			return fmt.Errorf("scopes.allowed contains unknown scope %q", scope)
		}
	}
	switch cfg.Search.Expansion.Mode {
	case "off", "always", "dynamic":
	default:
		return fmt.Errorf("search.expansion.mode must be one of off|always|dynamic, got %q", cfg.Search.Expansion.Mode)
	}
	if cfg.Storage.Qdrant.VectorDim == 0 {
		return fmt.Errorf("storage.qdrant.vector_dim must be positive")
	}
	return nil
}

func validateUnitRange(field string, v float32) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1], got %v", field, v)
	}
	return nil
}
