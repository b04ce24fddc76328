package reedsolomon_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/header"
	"github.com/OhanaFS/nhale/reedsolomon"
)

func randomBytes(t *testing.T, n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestEncodeLayout(t *testing.T) {
	assert := assert.New(t)

	data := []byte("Hello")
	frame, err := reedsolomon.Encode(data, &reedsolomon.Options{
		DataShards: 2, ParityShards: 1, UseChecksum: true,
	})
	assert.NoError(err)

	// 16 byte header, 3 shards of ceil(5/2) bytes.
	assert.Len(frame, 16+3*3)
	hdr := &header.RSHeader{}
	assert.NoError(hdr.UnmarshalBinary(frame))
	assert.Equal(uint32(3), hdr.ShardSize)
	assert.Equal(uint32(5), hdr.OriginalLength)
	assert.Equal(header.Checksum(data), hdr.Checksum)
	assert.Equal([]byte("Hel"), frame[16:19])
	assert.Equal([]byte{'l', 'o', 0}, frame[19:22])
}

func TestEncodeErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := reedsolomon.Encode([]byte("x"), &reedsolomon.Options{DataShards: 0, ParityShards: 1})
	assert.True(errorx.Is(err, errorx.Encoding))
	_, err = reedsolomon.Encode([]byte("x"), &reedsolomon.Options{DataShards: 2, ParityShards: 0})
	assert.True(errorx.Is(err, errorx.Encoding))
	_, err = reedsolomon.Encode(nil, nil)
	assert.True(errorx.Is(err, errorx.InvalidData))
}

func TestSmallPayloads(t *testing.T) {
	assert := assert.New(t)

	// Payload sizes that do not divide evenly into the data shards.
	for _, size := range []int{1, 2, 3, 5, 7, 11} {
		data := randomBytes(t, size)
		frame, err := reedsolomon.Encode(data, &reedsolomon.Options{
			DataShards: 2, ParityShards: 1, UseChecksum: true,
		})
		assert.NoError(err)

		res, err := reedsolomon.Decode(frame, nil)
		assert.NoError(err)
		assert.Equal(data, res.Data)
		assert.True(res.ChecksumOK)
		assert.Empty(res.Warnings)
	}
}

func TestHelloSingleShardLoss(t *testing.T) {
	assert := assert.New(t)

	data := []byte("Hello")
	frame, err := reedsolomon.Encode(data, &reedsolomon.Options{
		DataShards: 2, ParityShards: 1, UseChecksum: true,
	})
	assert.NoError(err)

	for shard := 0; shard < 3; shard++ {
		corrupted := append([]byte(nil), frame...)
		for i := 16 + shard*3; i < 16+(shard+1)*3; i++ {
			corrupted[i] ^= 0x5A
		}
		res, err := reedsolomon.Decode(corrupted, nil)
		assert.NoError(err)
		assert.Equal(data, res.Data, "shard %d", shard)
		assert.True(res.ChecksumOK)
		if shard < 2 {
			assert.Equal([]int{shard}, res.Repaired)
		}
	}
}

func TestRecoverCorruptedShards(t *testing.T) {
	assert := assert.New(t)

	data := randomBytes(t, 1000)
	frame, err := reedsolomon.Encode(data, reedsolomon.DefaultOptions())
	assert.NoError(err)

	hdr := &header.RSHeader{}
	assert.NoError(hdr.UnmarshalBinary(frame))
	size := int(hdr.ShardSize)

	corrupt := func(shards ...int) []byte {
		out := append([]byte(nil), frame...)
		for _, s := range shards {
			start := hdr.Size() + s*size
			// Zero half of the shards and garble the rest.
			if s%2 == 0 {
				copy(out[start:start+size], make([]byte, size))
			} else {
				for i := start; i < start+size; i++ {
					out[i] = ^out[i]
				}
			}
		}
		return out
	}

	for _, shards := range [][]int{
		{0},
		{13},
		{0, 5},
		{1, 2, 3},
		{0, 3, 9, 12},
		{6, 7, 8, 9},
		{10, 11, 12, 13},
	} {
		res, err := reedsolomon.Decode(corrupt(shards...), nil)
		assert.NoError(err)
		assert.Equal(data, res.Data, "shards %v", shards)
		assert.True(res.ChecksumOK)
	}
}

func TestRecoverAnyCorruption(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 512).Draw(t, "data")
		frame, err := reedsolomon.Encode(data, reedsolomon.DefaultOptions())
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		hdr := &header.RSHeader{}
		if err := hdr.UnmarshalBinary(frame); err != nil {
			t.Fatalf("header: %v", err)
		}
		size := int(hdr.ShardSize)

		shards := rapid.SliceOfNDistinct(rapid.IntRange(0, 13), 0, 4, rapid.ID[int]).Draw(t, "shards")
		for _, s := range shards {
			start := hdr.Size() + s*size
			noise := rapid.SliceOfN(rapid.Byte(), size, size).Draw(t, "noise")
			copy(frame[start:start+size], noise)
		}

		res, err := reedsolomon.Decode(frame, nil)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(data, res.Data) {
			t.Fatalf("data mismatch after corrupting shards %v", shards)
		}
	})
}

func TestTruncatedFrame(t *testing.T) {
	assert := assert.New(t)

	data := randomBytes(t, 100)
	frame, err := reedsolomon.Encode(data, reedsolomon.DefaultOptions())
	assert.NoError(err)

	hdr := &header.RSHeader{}
	assert.NoError(hdr.UnmarshalBinary(frame))
	size := int(hdr.ShardSize)

	// Cut off three parity shards and part of a fourth.
	logger, hook := test.NewNullLogger()
	res, err := reedsolomon.Decode(frame[:len(frame)-3*size-1], logger)
	assert.NoError(err)
	assert.Equal(data, res.Data)
	assert.Equal([]int{10, 11, 12, 13}, res.Missing)
	assert.Len(res.Warnings, 1)
	assert.Equal(logrus.WarnLevel, hook.LastEntry().Level)

	// Too few shards left.
	_, err = reedsolomon.Decode(frame[:len(frame)-5*size], nil)
	assert.ErrorIs(err, reedsolomon.ErrInsufficientShards)
	assert.True(errorx.Is(err, errorx.InvalidData))
}

func TestChecksumMismatchIsWarning(t *testing.T) {
	assert := assert.New(t)

	data := randomBytes(t, 64)
	frame, err := reedsolomon.Encode(data, &reedsolomon.Options{
		DataShards: 4, ParityShards: 2, UseChecksum: true,
	})
	assert.NoError(err)

	hdr := &header.RSHeader{}
	assert.NoError(hdr.UnmarshalBinary(frame))

	// Three corrupted shards exceed the parity.
	for _, s := range []int{0, 1, 2} {
		frame[hdr.Size()+s*int(hdr.ShardSize)] ^= 0xFF
	}
	res, err := reedsolomon.Decode(frame, nil)
	assert.NoError(err)
	assert.Len(res.Data, len(data))
	assert.False(res.ChecksumOK)
	assert.NotEmpty(res.Warnings)
}

func TestWithoutChecksum(t *testing.T) {
	assert := assert.New(t)

	data := randomBytes(t, 300)
	frame, err := reedsolomon.Encode(data, &reedsolomon.Options{
		DataShards: 10, ParityShards: 4,
	})
	assert.NoError(err)

	hdr := &header.RSHeader{}
	assert.NoError(hdr.UnmarshalBinary(frame))
	assert.False(hdr.HasChecksum())

	// Parity alone can locate up to half as many corrupted shards.
	for _, s := range []int{2, 11} {
		frame[hdr.Size()+s*int(hdr.ShardSize)+1] ^= 0x01
	}
	res, err := reedsolomon.Decode(frame, nil)
	assert.NoError(err)
	assert.Equal(data, res.Data)
	assert.Equal([]int{2, 11}, res.Repaired)
	assert.True(res.ChecksumOK)
}

func TestDecodeMalformedHeader(t *testing.T) {
	assert := assert.New(t)

	_, err := reedsolomon.Decode([]byte{1, 2}, nil)
	assert.True(errorx.Is(err, errorx.InvalidInput))
	assert.ErrorIs(err, header.ErrInvalidHeaderSize)

	_, err = reedsolomon.Decode([]byte{9, 2, 1, 0, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}, nil)
	assert.ErrorIs(err, header.ErrVersionMismatch)
}
