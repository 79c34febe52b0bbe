package state

import "github.com/google/uuid"

// Branch is an independent copy of a checkpointed Record. Changes to the
// branch never reach the record it was forked from.
type Branch struct {
	id       string
	parentID string
	state    *Record
}

// NewBranch forks a deep copy of rec under a fresh UUIDv7 branch id.
func NewBranch(parentID string, rec *Record) *Branch {
	return &Branch{
		id:       uuid.Must(uuid.NewV7()).String(),
		parentID: parentID,
		state:    rec.Clone(),
	}
}

func (b *Branch) ID() string { return b.id }

// ParentID is the checkpoint the branch was forked from.
func (b *Branch) ParentID() string { return b.parentID }

// State returns the branch's own record. Mutations through the returned
// pointer change the branch.
func (b *Branch) State() *Record { return b.state }

// IntoState hands the record to the caller and leaves the branch empty.
func (b *Branch) IntoState() *Record {
	rec := b.state
	b.state = nil
	return rec
}
