package state

// DefaultMaxCheckpoints is the default retention limit.
const DefaultMaxCheckpoints = 100

// Config controls checkpoint retention and durability.
//
// Directory enables on-disk mirroring of every retained record as
// <Directory>/<id>.ckpt. AutoCheckpointInterval is consumed by the kernel:
// every N conversation messages trigger a checkpoint (0 disables).
// CacheBytes bounds the read cache for records loaded from disk (0 disables).
type Config struct {
	Directory              string `json:"directory,omitempty" yaml:"directory,omitempty"`
	MaxCheckpoints         int    `json:"max_checkpoints,omitempty" yaml:"max_checkpoints,omitempty"`
	AutoCheckpointInterval int    `json:"auto_checkpoint_interval,omitempty" yaml:"auto_checkpoint_interval,omitempty"`
	CacheBytes             int64  `json:"cache_bytes,omitempty" yaml:"cache_bytes,omitempty"`
}

// DefaultConfig returns in-memory retention of 100 checkpoints with a 16 MiB
// disk read cache.
func DefaultConfig() Config {
	return Config{
		MaxCheckpoints: DefaultMaxCheckpoints,
		CacheBytes:     16 << 20,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Directory != "" {
		c.Directory = source.Directory
	}
	if source.MaxCheckpoints > 0 {
		c.MaxCheckpoints = source.MaxCheckpoints
	}
	if source.AutoCheckpointInterval > 0 {
		c.AutoCheckpointInterval = source.AutoCheckpointInterval
	}
	if source.CacheBytes > 0 {
		c.CacheBytes = source.CacheBytes
	}
}
