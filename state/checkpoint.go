package state

import (
	"slices"
	"sync"
	"time"
)

// Checkpoint is a payload-free handle to a stored Record.
type Checkpoint struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromRecord projects r onto its handle.
func FromRecord(r *Record) Checkpoint {
	return Checkpoint{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

// CheckpointManager indexes checkpoint handles in the order they were
// recorded, keeping at most a fixed number. It is independent of Store;
// callers record a handle for every record they save.
type CheckpointManager struct {
	checkpoints []Checkpoint
	limit       int
	mu          sync.RWMutex
}

// NewCheckpointManager creates a manager retaining up to limit handles.
func NewCheckpointManager(limit int) *CheckpointManager {
	if limit <= 0 {
		limit = DefaultMaxCheckpoints
	}
	return &CheckpointManager{limit: limit}
}

// Record appends c, dropping the oldest handle once the limit is exceeded.
func (m *CheckpointManager) Record(c Checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints = append(m.checkpoints, c)
	if over := len(m.checkpoints) - m.limit; over > 0 {
		m.checkpoints = slices.Delete(m.checkpoints, 0, over)
	}
}

// Latest returns the most recently recorded handle.
func (m *CheckpointManager) Latest() (Checkpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return m.checkpoints[len(m.checkpoints)-1], true
}

func (m *CheckpointManager) Get(id string) (Checkpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.checkpoints {
		if c.ID == id {
			return c, true
		}
	}
	return Checkpoint{}, false
}

// List returns handles oldest first.
func (m *CheckpointManager) List() []Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.checkpoints)
}

// Remove drops the handle for id and reports whether it was present.
func (m *CheckpointManager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.checkpoints, func(c Checkpoint) bool { return c.ID == id })
	if i < 0 {
		return false
	}
	m.checkpoints = slices.Delete(m.checkpoints, i, i+1)
	return true
}

func (m *CheckpointManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkpoints)
}

func (m *CheckpointManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = nil
}
