package parity_test

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/parity"
)

func TestLayout(t *testing.T) {
	assert := assert.New(t)

	frame, err := parity.Encode([]byte{1, 2, 3, 4, 5}, &parity.Options{Ratio: 2})
	assert.NoError(err)
	assert.Equal([]byte{
		2, 0, 0, 0, 0, 5,
		1, 2, 3,
		3, 4, 7,
		5, 5,
	}, frame)

	res, err := parity.Decode(frame, nil)
	assert.NoError(err)
	assert.Equal([]byte{1, 2, 3, 4, 5}, res.Data)
	assert.Empty(res.Warnings)
}

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 1024).Draw(t, "data")
		ratio := rapid.Uint8Range(1, 255).Draw(t, "ratio")

		frame, err := parity.Encode(data, &parity.Options{Ratio: ratio, UseChecksum: true})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		res, err := parity.Decode(frame, nil)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		assert.Equal(t, len(data), len(res.Data))
		assert.Equal(t, string(data), string(res.Data))
		assert.True(t, res.ChecksumOK)
	})
}

func TestCorruptionIsSoft(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 512).Draw(t, "data")
		frame, err := parity.Encode(data, parity.DefaultOptions())
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		// Flip bytes anywhere after the header.
		flips := rapid.SliceOfN(rapid.IntRange(10, len(frame)-1), 1, 8).Draw(t, "flips")
		for _, i := range flips {
			frame[i] ^= 0xFF
		}

		res, err := parity.Decode(frame, nil)
		if err != nil {
			t.Fatalf("corruption must not fail the decode: %v", err)
		}
		if len(res.Data) != len(data) {
			t.Fatalf("expected %d bytes, got %d", len(data), len(res.Data))
		}
	})
}

func TestMismatchWarnings(t *testing.T) {
	assert := assert.New(t)

	data := []byte("0123456789abcdef")
	frame, err := parity.Encode(data, parity.DefaultOptions())
	assert.NoError(err)

	// Corrupt the first data byte of the second block.
	frame[10+9] ^= 0x01

	logger, hook := test.NewNullLogger()
	res, err := parity.Decode(frame, logger)
	assert.NoError(err)
	assert.Equal([]int{1}, res.BadBlocks)
	assert.False(res.ChecksumOK)
	assert.Len(res.Warnings, 2)
	assert.Len(hook.AllEntries(), 2)
}

func TestMalformed(t *testing.T) {
	assert := assert.New(t)

	_, err := parity.Encode([]byte("x"), &parity.Options{Ratio: 0})
	assert.True(errorx.Is(err, errorx.Encoding))

	_, err = parity.Decode([]byte{8, 0, 0}, nil)
	assert.True(errorx.Is(err, errorx.InvalidInput))

	_, err = parity.Decode([]byte{0, 0, 0, 0, 0, 1, 1, 1}, nil)
	assert.True(errorx.Is(err, errorx.InvalidInput))

	// Declares 16 bytes but carries 4.
	_, err = parity.Decode([]byte{8, 0, 0, 0, 0, 16, 1, 2, 3, 4}, nil)
	assert.True(errorx.Is(err, errorx.InvalidInput))
}
