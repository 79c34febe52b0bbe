package session

// Config holds session parameters. Root is the directory under which
// persistent sessions keep one subdirectory each; it is always explicit and
// never derived from the environment.
type Config struct {
	Root            string `json:"root,omitempty" yaml:"root,omitempty"`
	DisableAutoSave bool   `json:"disable_auto_save,omitempty" yaml:"disable_auto_save,omitempty"`
}

// DefaultConfig returns the default session configuration: no persistent
// root, auto-save enabled.
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Root != "" {
		c.Root = source.Root
	}
	if source.DisableAutoSave {
		c.DisableAutoSave = true
	}
}

// New creates the in-memory conversation Session used by a runtime.
func New(cfg *Config) (Session, error) {
	return NewMemorySession(), nil
}
