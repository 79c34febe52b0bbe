package state

import (
	"fmt"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/core/wire"
	"github.com/tailored-agentic-units/cortex/engine"
)

const (
	recordMagic   = "CTXS"
	recordVersion = 1
)

// Record fields.
const (
	fieldID       wire.Number = 1
	fieldName     wire.Number = 2
	fieldMessage  wire.Number = 3
	fieldMemory   wire.Number = 4
	fieldEngine   wire.Number = 5
	fieldCreated  wire.Number = 6
	fieldMetadata wire.Number = 7
)

// Message and engine state fields.
const (
	fieldRole     wire.Number = 1
	fieldContent  wire.Number = 2
	fieldSender   wire.Number = 3
	fieldData     wire.Number = 1
	fieldTokens   wire.Number = 2
	fieldEngineID wire.Number = 3
)

// MarshalBinary encodes r in the checkpoint file format.
func (r *Record) MarshalBinary() ([]byte, error) {
	mem, err := r.Memory.MarshalBinary()
	if err != nil {
		return nil, err
	}

	enc := wire.NewEncoder(recordMagic, recordVersion)
	enc.Text(fieldID, r.ID)
	if r.Name != "" {
		enc.Text(fieldName, r.Name)
	}
	for _, m := range r.Messages {
		enc.Message(fieldMessage, func(sub *wire.Encoder) {
			sub.Text(fieldRole, string(m.Role))
			sub.Text(fieldContent, m.Content)
			if m.Name != "" {
				sub.Text(fieldSender, m.Name)
			}
		})
	}
	enc.Bytes(fieldMemory, mem)
	enc.Message(fieldEngine, func(sub *wire.Encoder) {
		sub.Bytes(fieldData, r.Engine.Data)
		sub.Int(fieldTokens, int64(r.Engine.NTokens))
		sub.Text(fieldEngineID, r.Engine.EngineID)
	})
	enc.Time(fieldCreated, r.CreatedAt)
	enc.StringMap(fieldMetadata, r.Metadata)
	return enc.Finish(), nil
}

// UnmarshalBinary decodes data written by MarshalBinary. A payload missing
// its id or memory snapshot is rejected rather than partially loaded.
func (r *Record) UnmarshalBinary(data []byte) error {
	body, _, err := wire.Open(data, recordMagic, recordVersion)
	if err != nil {
		return err
	}

	var (
		rec       Record
		hasMemory bool
	)
	err = wire.Range(body, func(f wire.Field) error {
		var err error
		switch f.Num {
		case fieldID:
			rec.ID, err = f.Text()
		case fieldName:
			rec.Name, err = f.Text()
		case fieldMessage:
			var msg protocol.Message
			if msg, err = decodeMessage(f); err == nil {
				rec.Messages = append(rec.Messages, msg)
			}
		case fieldMemory:
			var raw []byte
			if raw, err = f.Message(); err == nil {
				err = rec.Memory.UnmarshalBinary(raw)
				hasMemory = true
			}
		case fieldEngine:
			rec.Engine, err = decodeEngineState(f)
		case fieldCreated:
			rec.CreatedAt, err = f.Time()
		case fieldMetadata:
			var k, v string
			if k, v, err = f.StringPair(); err == nil {
				if rec.Metadata == nil {
					rec.Metadata = make(map[string]string)
				}
				rec.Metadata[k] = v
			}
		}
		return err
	})
	if err != nil {
		return err
	}

	if rec.ID == "" {
		return fmt.Errorf("%w: record has no id", ErrSerialization)
	}
	if !hasMemory {
		return fmt.Errorf("%w: record %s has no memory snapshot", ErrSerialization, rec.ID)
	}

	*r = rec
	return nil
}

func decodeMessage(f wire.Field) (protocol.Message, error) {
	body, err := f.Message()
	if err != nil {
		return protocol.Message{}, err
	}

	var m protocol.Message
	err = wire.Range(body, func(sub wire.Field) error {
		var err error
		switch sub.Num {
		case fieldRole:
			var role string
			role, err = sub.Text()
			m.Role = protocol.Role(role)
		case fieldContent:
			m.Content, err = sub.Text()
		case fieldSender:
			m.Name, err = sub.Text()
		}
		return err
	})
	if err == nil && !m.Role.Valid() {
		err = fmt.Errorf("%w: unknown message role %q", ErrSerialization, m.Role)
	}
	return m, err
}

func decodeEngineState(f wire.Field) (engine.State, error) {
	body, err := f.Message()
	if err != nil {
		return engine.State{}, err
	}

	var s engine.State
	err = wire.Range(body, func(sub wire.Field) error {
		var err error
		switch sub.Num {
		case fieldData:
			s.Data, err = sub.Bytes()
		case fieldTokens:
			var n int64
			n, err = sub.Int()
			s.NTokens = int(n)
		case fieldEngineID:
			s.EngineID, err = sub.Text()
		}
		return err
	})
	return s, err
}
