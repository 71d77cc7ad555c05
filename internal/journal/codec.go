package journal

import (
	"fmt"
	"strings"

	"github.com/golang/snappy"
	"google.golang.org/protobuf/encoding/protowire"
)

// Record wire fields. The layout is a protobuf message so that external
// tooling can decode a payload with a one-line .proto definition.
const (
	fieldSeq   protowire.Number = 1
	fieldOp    protowire.Number = 2
	fieldKey   protowire.Number = 3
	fieldValue protowire.Number = 4
)

// marshalRecord appends the wire form of r to b.
func marshalRecord(b []byte, r Record) []byte {
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Seq)
	b = protowire.AppendTag(b, fieldOp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Op))
	b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
	b = protowire.AppendString(b, r.Key)
	if r.HasValue {
		b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
		b = protowire.AppendString(b, r.Value)
	}
	return b
}

// unmarshalRecord decodes a payload produced by marshalRecord.
// Unknown fields are skipped.
func unmarshalRecord(b []byte) (Record, error) {
	var r Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			r.Seq, b = v, b[n:]
		case num == fieldOp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			r.Op, b = Op(v), b[n:]
		case num == fieldKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			r.Key, b = v, b[n:]
		case num == fieldValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			r.Value, r.HasValue, b = v, true, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Codec compresses record payloads. The codec is fixed per journal
// generation and stored in the file header.
type Codec uint8

const (
	CodecNone   Codec = 0
	CodecSnappy Codec = 1
)

// ParseCodec maps a config string to a Codec. Empty means none.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CodecNone, nil
	case "snappy":
		return CodecSnappy, nil
	default:
		return 0, fmt.Errorf("unknown journal codec %q", s)
	}
}

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

func (c Codec) valid() bool {
	return c == CodecNone || c == CodecSnappy
}

func (c Codec) encode(payload []byte) []byte {
	if c == CodecSnappy {
		return snappy.Encode(nil, payload)
	}
	return payload
}

func (c Codec) decode(stored []byte) ([]byte, error) {
	if c == CodecSnappy {
		out, err := snappy.Decode(nil, stored)
		if err != nil {
			return nil, fmt.Errorf("snappy decode: %w", err)
		}
		return out, nil
	}
	return stored, nil
}
