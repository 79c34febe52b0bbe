package kernel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/cortex/engine"
	"github.com/tailored-agentic-units/cortex/memory"
	"github.com/tailored-agentic-units/cortex/observability"
	"github.com/tailored-agentic-units/cortex/session"
	"github.com/tailored-agentic-units/cortex/state"
)

const defaultObserver = "slog"

// Config holds initialization parameters for all kernel subsystems.
// Each subsystem section delegates to that subsystem's config-driven constructor.
type Config struct {
	Engine       engine.Config             `json:"engine" yaml:"engine"`
	Memory       memory.Config             `json:"memory" yaml:"memory"`
	State        state.Config              `json:"state" yaml:"state"`
	Session      session.Config            `json:"session" yaml:"session"`
	Generation   engine.GenerationConfig   `json:"generation" yaml:"generation"`
	Observer     string                    `json:"observer,omitempty" yaml:"observer,omitempty"`
	SystemPrompt string                    `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Server       ServerConfig              `json:"server" yaml:"server"`
	Tracing      observability.TraceConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds the RPC listener settings consumed by cmd/cortex.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
// The memory embedding dimension is left at zero so that it follows the
// embedder chosen at construction.
func DefaultConfig() Config {
	mem := memory.DefaultConfig()
	mem.EmbeddingDim = 0

	return Config{
		Engine:     engine.DefaultConfig(),
		Memory:     mem,
		State:      state.DefaultConfig(),
		Session:    session.DefaultConfig(),
		Generation: engine.DefaultGenerationConfig(),
		Observer:   defaultObserver,
		Tracing:    observability.TraceConfig{ServiceName: observability.DefaultServiceName},
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Engine.Merge(&source.Engine)
	c.Memory.Merge(&source.Memory)
	c.State.Merge(&source.State)
	c.Session.Merge(&source.Session)
	c.Generation.Merge(&source.Generation)
	c.Tracing.Merge(&source.Tracing)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.SystemPrompt != "" {
		c.SystemPrompt = source.SystemPrompt
	}
	if source.Server.Addr != "" {
		c.Server.Addr = source.Server.Addr
	}
}

// LoadConfig reads a config file, merges it with defaults, and returns the
// resulting Config. Files ending in .yaml or .yml are parsed as YAML; all
// others as JSON.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
