package providers

import (
	"fmt"

	"github.com/steveyegge/elf/internal/config"
)

// EmbeddingVersion derives the stable string stamped on every note/chunk embedding row,
// grounded on elf-service/src/lib.rs's embedding_version: providers and model changes must
// never silently compare incompatible vectors, so the version folds in enough of the embedding
// config to partition them. Changing provider, model, or dimensions yields a new version, which
// dedup/search/rebuild all treat as an independent embedding space.
func EmbeddingVersion(cfg config.EmbeddingProviderConfig) string {
	return fmt.Sprintf("%s:%s:%d", cfg.ProviderID, cfg.Model, cfg.Dimensions)
}
