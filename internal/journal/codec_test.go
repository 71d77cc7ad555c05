package journal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := marshalRecord(nil, Record{Seq: 4, Op: OpPut, Key: "k", Value: "v", HasValue: true})
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendString(b, "from a newer writer")

	r, err := unmarshalRecord(b)
	require.NoError(t, err)
	require.Equal(t, Record{Seq: 4, Op: OpPut, Key: "k", Value: "v", HasValue: true}, r)
}

func TestUnmarshalRejectsPutWithoutValue(t *testing.T) {
	b := marshalRecord(nil, Record{Seq: 1, Op: OpDelete, Key: "k"})
	// Bytes are tag, seq, tag, op: rewrite the op to PUT.
	b[3] = byte(OpPut)

	_, err := unmarshalRecord(b)
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestUnmarshalTruncated(t *testing.T) {
	b := marshalRecord(nil, NewPut("key", "value"))
	_, err := unmarshalRecord(b[:len(b)-2])
	require.Error(t, err)
}

func TestParseCodec(t *testing.T) {
	for in, want := range map[string]Codec{"": CodecNone, "none": CodecNone, " Snappy ": CodecSnappy} {
		got, err := ParseCodec(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseCodec("gzip")
	require.Error(t, err)
}

func TestParseSyncMode(t *testing.T) {
	m, err := ParseSyncMode("")
	require.NoError(t, err)
	require.Equal(t, SyncAlways, m)
	m, err = ParseSyncMode("NONE")
	require.NoError(t, err)
	require.Equal(t, SyncNone, m)
	_, err = ParseSyncMode("sometimes")
	require.Error(t, err)
}

func TestSnappyCodecRejectsGarbage(t *testing.T) {
	_, err := CodecSnappy.decode([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	require.Error(t, err)
}
