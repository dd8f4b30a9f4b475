package delta

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runDelta is the full pipeline as it runs across the wire: signature on the
// client, delta on the server, patch back on the client.
func runDelta(t *testing.T, original, target []byte, blockSize, strongSize int) []Op {
	t.Helper()
	sig, err := BuildSignature(original, blockSize, strongSize)
	require.NoError(t, err)

	decodedSig, err := DecodeSignature(sig.Encode())
	require.NoError(t, err)

	ops, err := ComputeDelta(decodedSig, target)
	require.NoError(t, err)

	decodedOps, err := DecodeOps(EncodeOps(ops))
	require.NoError(t, err)

	patched, err := Apply(original, decodedOps)
	require.NoError(t, err)
	require.True(t, bytes.Equal(target, patched), "patched bytes differ from target")
	return ops
}

func TestComputeDelta_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randBytes := func(n int) []byte {
		b := make([]byte, n)
		rng.Read(b)
		return b
	}

	original := randBytes(64 * 1024)

	targets := map[string][]byte{
		"identical":        bytes.Clone(original),
		"empty":            {},
		"unrelated":        randBytes(32 * 1024),
		"prepended":        append(randBytes(100), original...),
		"appended":         append(bytes.Clone(original), randBytes(100)...),
		"truncated":        original[:len(original)/2],
		"middle removed":   append(bytes.Clone(original[:10000]), original[30000:]...),
		"blocks shuffled":  append(bytes.Clone(original[32*1024:]), original[:32*1024]...),
		"shorter than bs":  randBytes(100),
		"repeated content": bytes.Repeat([]byte("abc"), 10000),
	}

	for name, target := range targets {
		t.Run(name, func(t *testing.T) {
			for _, bs := range []int{128, 4096, 1 << 20} {
				runDelta(t, original, target, bs, 8)
			}
		})
	}

	t.Run("both empty", func(t *testing.T) {
		runDelta(t, nil, nil, 4096, 8)
	})

	t.Run("minimal parameters", func(t *testing.T) {
		runDelta(t, original[:1000], original[500:1500], 1, 1)
	})

	t.Run("full strong hash", func(t *testing.T) {
		runDelta(t, original[:1000], original[500:1500], 64, MaxStrongHashSize)
	})
}

func TestComputeDelta_IdentityIsAllCopy(t *testing.T) {
	const bs = 256
	data := make([]byte, 8*bs)
	rand.New(rand.NewSource(1)).Read(data)

	ops := runDelta(t, data, data, bs, 8)
	for _, op := range ops {
		assert.Equal(t, OpCopy, op.Kind)
	}
	// Contiguous copies collapse into one.
	require.Len(t, ops, 1)
	assert.EqualValues(t, 0, ops[0].Offset)
	assert.EqualValues(t, len(data), ops[0].Length)
}

func TestComputeDelta_IdentityWithPartialTail(t *testing.T) {
	const bs = 256
	data := make([]byte, 8*bs+37)
	rand.New(rand.NewSource(2)).Read(data)

	ops := runDelta(t, data, data, bs, 8)
	for _, op := range ops {
		assert.Equal(t, OpCopy, op.Kind, "partial trailing block should still match")
	}
}

func TestComputeDelta_EmptySignatureIsSingleInsert(t *testing.T) {
	target := []byte("brand new file contents")

	sig, err := BuildSignature(nil, 4096, 8)
	require.NoError(t, err)

	ops, err := ComputeDelta(sig, target)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpInsert, ops[0].Kind)
	assert.Equal(t, target, ops[0].Data)
}

func TestComputeDelta_SingleByteChangeStaysLocal(t *testing.T) {
	const bs = 512
	original := make([]byte, 2*bs)
	rand.New(rand.NewSource(3)).Read(original)

	target := bytes.Clone(original)
	target[bs/2] ^= 0xff

	ops := runDelta(t, original, target, bs, 8)

	// Only the altered first block travels as literal bytes; the rest of
	// the file is referenced by copy ops. Transfer stays O(blockSize).
	var literal int
	for _, op := range ops {
		if op.Kind == OpInsert {
			literal += len(op.Data)
		}
	}
	assert.LessOrEqual(t, literal, bs)
	assert.Greater(t, literal, 0)
}

func TestComputeDelta_PicksLowestBlockOnWeakCollision(t *testing.T) {
	// Identical blocks share both checksums; the first index must win.
	const bs = 64
	block := bytes.Repeat([]byte{0xaa}, bs)
	original := append(bytes.Clone(block), block...)

	sig, err := BuildSignature(original, bs, 8)
	require.NoError(t, err)

	ops, err := ComputeDelta(sig, block)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.EqualValues(t, 0, ops[0].Offset)
}

func TestComputeDelta_RejectsInconsistentSignature(t *testing.T) {
	sig, err := BuildSignature(bytes.Repeat([]byte("z"), 1024), 64, 8)
	require.NoError(t, err)

	t.Run("block count mismatch", func(t *testing.T) {
		bad := *sig
		bad.Blocks = bad.Blocks[:len(bad.Blocks)-1]
		_, err := ComputeDelta(&bad, []byte("target"))
		var decodeErr *DecodeError
		assert.ErrorAs(t, err, &decodeErr)
	})

	t.Run("strong checksum length mismatch", func(t *testing.T) {
		bad := *sig
		bad.Blocks = append([]BlockChecksum(nil), sig.Blocks...)
		bad.Blocks[0].Strong = []byte{1, 2}
		_, err := ComputeDelta(&bad, []byte("target"))
		var decodeErr *DecodeError
		assert.ErrorAs(t, err, &decodeErr)
	})
}

func TestDecodeOps_CorruptInput(t *testing.T) {
	valid := EncodeOps([]Op{
		{Kind: OpCopy, Offset: 0, Length: 128},
		{Kind: OpInsert, Data: []byte("literal")},
	})

	cases := map[string][]byte{
		"empty":              {},
		"bad magic":          []byte("XXXXrest"),
		"unknown tag":        append(bytes.Clone(valid), 0x7f),
		"truncated copy":     valid[:5],
		"insert past end":    append(bytes.Clone(valid[:4]), byte(OpInsert), 0xff, 0x01),
		"copy varint mangle": append(bytes.Clone(valid[:4]), byte(OpCopy), 0x80),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeOps(encoded)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestApply(t *testing.T) {
	original := []byte("0123456789")

	t.Run("copy out of bounds", func(t *testing.T) {
		_, err := Apply(original, []Op{{Kind: OpCopy, Offset: 8, Length: 4}})
		var rangeErr *RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.EqualValues(t, 8, rangeErr.Offset)
	})

	t.Run("negative copy range", func(t *testing.T) {
		_, err := Apply(original, []Op{{Kind: OpCopy, Offset: -1, Length: 2}})
		var rangeErr *RangeError
		assert.ErrorAs(t, err, &rangeErr)
	})

	t.Run("no partial output on failure", func(t *testing.T) {
		out, err := Apply(original, []Op{
			{Kind: OpInsert, Data: []byte("ok")},
			{Kind: OpCopy, Offset: 100, Length: 1},
		})
		assert.Error(t, err)
		assert.Nil(t, out)
	})

	t.Run("interleaved ops", func(t *testing.T) {
		out, err := Apply(original, []Op{
			{Kind: OpCopy, Offset: 5, Length: 5},
			{Kind: OpInsert, Data: []byte("-mid-")},
			{Kind: OpCopy, Offset: 0, Length: 5},
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("56789-mid-01234"), out)
	})

	t.Run("empty ops empty output", func(t *testing.T) {
		out, err := Apply(original, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}
