package memory

const (
	DefaultEmbeddingDim        = 4096
	DefaultMaxEntries          = 100_000
	DefaultSearchK             = 5
	DefaultSimilarityThreshold = 0.7
)

// Config holds memory initialization parameters.
type Config struct {
	EmbeddingDim        int     `json:"embedding_dim,omitempty" yaml:"embedding_dim,omitempty"`
	MaxEntries          int     `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	PersistPath         string  `json:"persist_path,omitempty" yaml:"persist_path,omitempty"` // Snapshot file loaded at startup and written on close; empty disables.
	DefaultSearchK      int     `json:"default_search_k,omitempty" yaml:"default_search_k,omitempty"`
	SimilarityThreshold float32 `json:"similarity_threshold,omitempty" yaml:"similarity_threshold,omitempty"` // Negative disables filtering in Search.
}

// DefaultConfig returns the default memory configuration.
func DefaultConfig() Config {
	return Config{
		EmbeddingDim:        DefaultEmbeddingDim,
		MaxEntries:          DefaultMaxEntries,
		DefaultSearchK:      DefaultSearchK,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.EmbeddingDim > 0 {
		c.EmbeddingDim = source.EmbeddingDim
	}
	if source.MaxEntries > 0 {
		c.MaxEntries = source.MaxEntries
	}
	if source.PersistPath != "" {
		c.PersistPath = source.PersistPath
	}
	if source.DefaultSearchK > 0 {
		c.DefaultSearchK = source.DefaultSearchK
	}
	if source.SimilarityThreshold != 0 {
		c.SimilarityThreshold = source.SimilarityThreshold
	}
}
