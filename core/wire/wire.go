// Package wire implements the binary framing used for memory snapshots and
// checkpoint records: a magic tag and format version followed by a body in
// protobuf wire format. Field numbers are declared by each caller.
//
// Readers skip unknown fields, so a file written by a newer minor revision
// still decodes as long as the format version is supported.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrSerialization indicates a payload that could not be encoded or decoded.
var ErrSerialization = errors.New("serialization error")

// Number is a field number within a message body.
type Number = protowire.Number

// Encoder appends fields to a message body.
type Encoder struct {
	buf []byte
}

// NewEncoder starts a framed payload with the given magic tag and version.
func NewEncoder(magic string, version uint64) *Encoder {
	buf := make([]byte, 0, 256)
	buf = append(buf, magic...)
	buf = protowire.AppendVarint(buf, version)
	return &Encoder{buf: buf}
}

func (e *Encoder) Text(num Number, v string) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
}

func (e *Encoder) Bytes(num Number, v []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
}

func (e *Encoder) Uint(num Number, v uint64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *Encoder) Int(num Number, v int64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, protowire.EncodeZigZag(v))
}

func (e *Encoder) Float(num Number, v float64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, math.Float64bits(v))
}

// Time writes t as nanoseconds since the Unix epoch. Zero times are omitted.
func (e *Encoder) Time(num Number, t time.Time) {
	if t.IsZero() {
		return
	}
	e.Int(num, t.UnixNano())
}

// Floats writes v as a packed run of little-endian float32 values.
func (e *Encoder) Floats(num Number, v []float32) {
	packed := make([]byte, 0, len(v)*4)
	for _, f := range v {
		packed = protowire.AppendFixed32(packed, math.Float32bits(f))
	}
	e.Bytes(num, packed)
}

// StringMap writes each pair, in key order, as a nested message with key
// field 1 and value field 2.
func (e *Encoder) StringMap(num Number, m map[string]string) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		e.Message(num, func(sub *Encoder) {
			sub.Text(1, k)
			sub.Text(2, m[k])
		})
	}
}

// Message writes a nested message built by fn.
func (e *Encoder) Message(num Number, fn func(*Encoder)) {
	sub := &Encoder{}
	fn(sub)
	e.Bytes(num, sub.buf)
}

// Finish returns the encoded payload.
func (e *Encoder) Finish() []byte {
	return e.buf
}

// Open validates the framing of data and returns its body and version.
// Versions above maxVersion are rejected.
func Open(data []byte, magic string, maxVersion uint64) ([]byte, uint64, error) {
	if !bytes.HasPrefix(data, []byte(magic)) {
		return nil, 0, fmt.Errorf("%w: missing %q header", ErrSerialization, magic)
	}
	rest := data[len(magic):]

	version, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: version: %v", ErrSerialization, protowire.ParseError(n))
	}
	if version == 0 || version > maxVersion {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrSerialization, version)
	}

	return rest[n:], version, nil
}

// Field is a single decoded field of a message body.
type Field struct {
	Num  Number
	Type protowire.Type

	varint uint64
	fixed  uint64
	bytes  []byte
}

// Range calls fn for each field of body in order. Groups are skipped.
func Range(body []byte, fn func(Field) error) error {
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return fmt.Errorf("%w: tag: %v", ErrSerialization, protowire.ParseError(n))
		}
		body = body[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(body)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(body)
			f.fixed = uint64(v)
		case protowire.Fixed64Type:
			f.fixed, n = protowire.ConsumeFixed64(body)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(body)
		default:
			n = protowire.ConsumeFieldValue(num, typ, body)
			if n >= 0 {
				body = body[n:]
				continue
			}
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrSerialization, num, protowire.ParseError(n))
		}
		body = body[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) expect(typ protowire.Type) error {
	if f.Type != typ {
		return fmt.Errorf("%w: field %d: unexpected wire type %d", ErrSerialization, f.Num, f.Type)
	}
	return nil
}

func (f Field) Text() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}
	return string(f.bytes), nil
}

// Bytes returns a copy of a length-delimited field.
func (f Field) Bytes() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return bytes.Clone(f.bytes), nil
}

func (f Field) Uint() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.varint, nil
}

func (f Field) Int() (int64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(f.varint), nil
}

func (f Field) Float() (float64, error) {
	if err := f.expect(protowire.Fixed64Type); err != nil {
		return 0, err
	}
	return math.Float64frombits(f.fixed), nil
}

// Time decodes a field written by Encoder.Time as a UTC time.
func (f Field) Time() (time.Time, error) {
	ns, err := f.Int()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, ns).UTC(), nil
}

// Floats decodes a field written by Encoder.Floats.
func (f Field) Floats() ([]float32, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	if len(f.bytes)%4 != 0 {
		return nil, fmt.Errorf("%w: field %d: packed float length %d", ErrSerialization, f.Num, len(f.bytes))
	}

	out := make([]float32, 0, len(f.bytes)/4)
	for b := f.bytes; len(b) > 0; b = b[4:] {
		v, _ := protowire.ConsumeFixed32(b)
		out = append(out, math.Float32frombits(v))
	}
	return out, nil
}

// Message returns the body of a nested message field.
func (f Field) Message() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return f.bytes, nil
}

// StringPair decodes one entry written by Encoder.StringMap.
func (f Field) StringPair() (string, string, error) {
	body, err := f.Message()
	if err != nil {
		return "", "", err
	}

	var key, value string
	err = Range(body, func(sub Field) error {
		var err error
		switch sub.Num {
		case 1:
			key, err = sub.Text()
		case 2:
			value, err = sub.Text()
		}
		return err
	})
	return key, value, err
}
