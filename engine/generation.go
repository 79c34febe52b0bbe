package engine

// GenerationConfig holds sampling parameters for a single generation.
type GenerationConfig struct {
	MaxTokens     int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature   float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP          float64  `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty" yaml:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty" yaml:"stop,omitempty"`
}

// DefaultGenerationConfig returns balanced sampling defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxTokens:     1024,
		Temperature:   0.7,
		TopP:          0.9,
		TopK:          40,
		RepeatPenalty: 1.1,
	}
}

// Deterministic returns greedy sampling settings.
func Deterministic() GenerationConfig {
	cfg := DefaultGenerationConfig()
	cfg.Temperature = 0
	cfg.TopP = 1
	cfg.TopK = 1
	return cfg
}

// Creative returns high-variance sampling settings. TopK 0 disables top-k.
func Creative() GenerationConfig {
	cfg := DefaultGenerationConfig()
	cfg.Temperature = 1
	cfg.TopP = 0.95
	cfg.TopK = 0
	return cfg
}

// Merge applies non-zero values from source into c.
func (c *GenerationConfig) Merge(source *GenerationConfig) {
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.Temperature > 0 {
		c.Temperature = source.Temperature
	}
	if source.TopP > 0 {
		c.TopP = source.TopP
	}
	if source.TopK > 0 {
		c.TopK = source.TopK
	}
	if source.RepeatPenalty > 0 {
		c.RepeatPenalty = source.RepeatPenalty
	}
	if len(source.Stop) > 0 {
		c.Stop = source.Stop
	}
}
