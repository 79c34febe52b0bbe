package memory

import (
	"fmt"

	"github.com/tailored-agentic-units/cortex/core/wire"
)

const (
	snapshotMagic   = "CTXM"
	snapshotVersion = 1
)

// Snapshot fields.
const (
	fieldDim     wire.Number = 1
	fieldMax     wire.Number = 2
	fieldEntry   wire.Number = 3
	fieldKey     wire.Number = 1
	fieldContent wire.Number = 2
	fieldVector  wire.Number = 3
	fieldMeta    wire.Number = 4
	fieldCreated wire.Number = 5
)

// MarshalBinary encodes s in the snapshot file format.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	if s.EmbeddingDim < 0 || s.MaxEntries < 0 {
		return nil, fmt.Errorf("%w: negative snapshot shape", ErrSerialization)
	}

	enc := wire.NewEncoder(snapshotMagic, snapshotVersion)
	enc.Uint(fieldDim, uint64(s.EmbeddingDim))
	enc.Uint(fieldMax, uint64(s.MaxEntries))
	for _, e := range s.Entries {
		enc.Message(fieldEntry, func(sub *wire.Encoder) {
			sub.Text(fieldKey, e.Key)
			sub.Text(fieldContent, e.Content)
			sub.Floats(fieldVector, e.Embedding)
			sub.StringMap(fieldMeta, e.Metadata)
			sub.Time(fieldCreated, e.CreatedAt)
		})
	}
	return enc.Finish(), nil
}

// UnmarshalBinary decodes data written by MarshalBinary. Entries whose
// embedding length disagrees with the snapshot dimension are rejected.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	body, _, err := wire.Open(data, snapshotMagic, snapshotVersion)
	if err != nil {
		return err
	}

	var snap Snapshot
	err = wire.Range(body, func(f wire.Field) error {
		switch f.Num {
		case fieldDim:
			v, err := f.Uint()
			snap.EmbeddingDim = int(v)
			return err
		case fieldMax:
			v, err := f.Uint()
			snap.MaxEntries = int(v)
			return err
		case fieldEntry:
			msg, err := f.Message()
			if err != nil {
				return err
			}
			e, err := decodeEntry(msg)
			if err != nil {
				return err
			}
			snap.Entries = append(snap.Entries, e)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if snap.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding dimension %d", ErrSerialization, snap.EmbeddingDim)
	}
	for _, e := range snap.Entries {
		if len(e.Embedding) != snap.EmbeddingDim {
			return fmt.Errorf("%w: entry %q has %d dimensions, want %d",
				ErrSerialization, e.Key, len(e.Embedding), snap.EmbeddingDim)
		}
	}

	*s = snap
	return nil
}

func decodeEntry(body []byte) (Entry, error) {
	var e Entry
	err := wire.Range(body, func(f wire.Field) error {
		var err error
		switch f.Num {
		case fieldKey:
			e.Key, err = f.Text()
		case fieldContent:
			e.Content, err = f.Text()
		case fieldVector:
			e.Embedding, err = f.Floats()
		case fieldMeta:
			var k, v string
			if k, v, err = f.StringPair(); err == nil {
				if e.Metadata == nil {
					e.Metadata = make(map[string]string)
				}
				e.Metadata[k] = v
			}
		case fieldCreated:
			e.CreatedAt, err = f.Time()
		}
		return err
	})
	return e, err
}
