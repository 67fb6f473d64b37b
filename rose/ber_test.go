package rose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLVRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		class   byte
		cons    bool
		tag     uint64
		content []byte
	}{
		{"short-integer", ClassUniversal, false, TagInteger, []byte{0x2a}},
		{"empty-null", ClassUniversal, false, TagNull, []byte{}},
		{"long-content", ClassContextSpecific, true, 1, make([]byte, 300)},
		{"high-tag", ClassContextSpecific, false, 31, []byte{1, 2, 3}},
		{"high-tag-multi-octet", ClassApplication, false, 200, []byte{0xff}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := AppendTLV(nil, c.class, c.cons, c.tag, c.content)
			got, rest, err := ReadTLV(buf)
			require.NoError(t, err)
			assert.Empty(t, rest)
			assert.Equal(t, c.class, got.Class)
			assert.Equal(t, c.cons, got.Constructed)
			assert.Equal(t, c.tag, got.Tag)
			assert.Equal(t, c.content, got.Content)
		})
	}
}

func TestIntegerRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, 128, -128, -129, 255, 256, -32768, 1 << 40, -(1 << 40)} {
		buf := AppendInteger(nil, v)
		tlv, rest, err := ReadTLV(buf)
		require.NoError(t, err)
		assert.Empty(t, rest)
		got, err := tlv.Int()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestReadTLVTruncated(t *testing.T) {
	_, _, err := ReadTLV([]byte{0x02})
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = ReadTLV([]byte{0x02, 0x05, 0x01})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReadTLVIndefiniteLengthRejected(t *testing.T) {
	// 0x80 in the length octet signals indefinite length, unsupported.
	_, _, err := ReadTLV([]byte{0x30, 0x80})
	assert.ErrorIs(t, err, ErrLength)
}
