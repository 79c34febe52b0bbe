package engine

const (
	ProviderStub   = "stub"
	ProviderClaude = "claude"
)

// Config selects and configures the inference backend.
type Config struct {
	Provider       string       `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model          string       `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey         string       `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL        string       `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	EmbeddingDim   int          `json:"embedding_dim,omitempty" yaml:"embedding_dim,omitempty"`
	ContextSize    int          `json:"context_size,omitempty" yaml:"context_size,omitempty"`
	ResponsePrefix string       `json:"response_prefix,omitempty" yaml:"response_prefix,omitempty"` // Stub only.
	Template       ChatTemplate `json:"template,omitempty" yaml:"template,omitempty"`
}

// DefaultConfig returns the default engine configuration: the offline stub
// with the Llama 3 chat template.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderStub,
		Template: TemplateLlama3,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.EmbeddingDim > 0 {
		c.EmbeddingDim = source.EmbeddingDim
	}
	if source.ContextSize > 0 {
		c.ContextSize = source.ContextSize
	}
	if source.ResponsePrefix != "" {
		c.ResponsePrefix = source.ResponsePrefix
	}
	if source.Template != "" {
		c.Template = source.Template
	}
}

// NewStubFromConfig creates a Stub honoring the dimension, context size, and
// prefix in cfg.
func NewStubFromConfig(cfg *Config) *Stub {
	var opts []StubOption
	if cfg.EmbeddingDim > 0 {
		opts = append(opts, WithStubEmbeddingDim(cfg.EmbeddingDim))
	}
	if cfg.ContextSize > 0 {
		opts = append(opts, WithStubContextSize(cfg.ContextSize))
	}
	if cfg.ResponsePrefix != "" {
		opts = append(opts, WithResponsePrefix(cfg.ResponsePrefix))
	}
	return NewStub(opts...)
}
