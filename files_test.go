package nhale_test

import (
	"bytes"
	"context"
	"image"
	"image/color/palette"
	"image/gif"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/OhanaFS/nhale"
	"github.com/OhanaFS/nhale/blockparity"
	"github.com/OhanaFS/nhale/envelope"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/keys"
	"github.com/OhanaFS/nhale/pdf"
)

func carriers(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	img := gradient(64, 64)
	writePNG(t, fs, "in.png", img)

	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))
	require.NoError(t, afero.WriteFile(fs, "in.bmp", buf.Bytes(), 0o644))

	buf.Reset()
	paletted := image.NewPaletted(img.Bounds(), palette.Plan9)
	for i := range paletted.Pix {
		paletted.Pix[i] = uint8(i % len(palette.Plan9))
	}
	require.NoError(t, gif.Encode(&buf, paletted, nil))
	require.NoError(t, afero.WriteFile(fs, "in.gif", buf.Bytes(), 0o644))

	buf.Reset()
	require.NoError(t, blockparity.EncodeJPEG(&buf, flatPlane(256, 256, 100)))
	require.NoError(t, afero.WriteFile(fs, "in.jpg", buf.Bytes(), 0o644))

	buf.Reset()
	require.NoError(t, pdf.WriteBlank(&buf))
	require.NoError(t, afero.WriteFile(fs, "in.pdf", buf.Bytes(), 0o644))

	require.NoError(t, afero.WriteFile(fs, "song.wav",
		[]byte("RIFF\x24\x00\x00\x00WAVEfmt "), 0o644))
	require.NoError(t, afero.WriteFile(fs, "notes.txt", []byte("just some text"), 0o644))
	return fs
}

func TestEmbedExtractFiles(t *testing.T) {
	assert := assert.New(t)
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: carriers(t)})
	payload := []byte("meet at the usual place")
	cfg := &nhale.EmbeddingConfig{
		UseEncryption: true,
		Password:      "pw",
		Parameters:    nhale.Parameters{"bit_depth": "2", "compress": "zstd", "compression": "9"},
	}

	for _, c := range []struct{ in, out string }{
		{"in.png", "out.png"},
		{"in.png", "out.bmp"},
		{"in.bmp", "out.bmp"},
		{"in.gif", "out.png"},
		{"in.png", "out"},
		{"in.pdf", "out.pdf"},
	} {
		if !assert.NoError(encoder.Embed(c.in, c.out, payload, cfg), c.in) {
			continue
		}
		out, err := encoder.Extract(c.out, cfg)
		assert.NoError(err, c.out)
		assert.Equal(payload, out, c.out)
	}
}

func TestEmbedJPEGFile(t *testing.T) {
	assert := assert.New(t)
	fs := carriers(t)
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: fs})

	require.NoError(t, encoder.Embed("in.jpg", "out.jpg", []byte("jpeg"), nil))
	data, err := afero.ReadFile(fs, "out.jpg")
	require.NoError(t, err)
	assert.Equal(nhale.FormatJPEG, nhale.DetectFormat("", data))

	out, err := encoder.Extract("out.jpg", nil)
	assert.NoError(err)
	assert.Equal([]byte("jpeg"), out)

	result, err := encoder.Verify("out.jpg", nil)
	assert.NoError(err)
	assert.Equal(nhale.FormatJPEG, result.Format)
	assert.Equal(blockparity.Capacity(256, 256), result.Capacity)
	assert.True(result.AllGood, result.Problems)

	err = encoder.Embed("in.jpg", "out.png", []byte("jpeg"), nil)
	assert.True(errorx.Is(err, errorx.InvalidInput))
}

func TestEmbedJPEGFileEncrypted(t *testing.T) {
	assert := assert.New(t)
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: carriers(t)})
	payload := []byte("secret jpeg")

	for _, c := range []struct {
		algorithm envelope.Algorithm
		erasure   string
	}{
		{envelope.AES256, nhale.ErasureReedSolomon},
		{envelope.ChaCha20, nhale.ErasureReedSolomon},
		{envelope.ChaCha20, nhale.ErasureParity},
		{envelope.AES256, nhale.ErasureNone},
	} {
		name := c.algorithm.String() + "/" + c.erasure
		cfg := &nhale.EmbeddingConfig{
			UseEncryption: true,
			Password:      "pw",
			Algorithm:     c.algorithm,
			Parameters:    nhale.Parameters{"erasure": c.erasure},
		}
		if !assert.NoError(encoder.Embed("in.jpg", "out.jpg", payload, cfg), name) {
			continue
		}
		out, err := encoder.Extract("out.jpg", cfg)
		assert.NoError(err, name)
		assert.Equal(payload, out, name)
	}
}

func TestEmbedFileErrors(t *testing.T) {
	assert := assert.New(t)
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: carriers(t)})
	payload := []byte("x")

	err := encoder.Embed("song.wav", "out.wav", payload, nil)
	assert.True(errorx.Is(err, errorx.NotImplemented))
	_, err = encoder.Extract("song.wav", nil)
	assert.True(errorx.Is(err, errorx.NotImplemented))

	err = encoder.Embed("notes.txt", "out.txt", payload, nil)
	assert.True(errorx.Is(err, errorx.InvalidInput))

	err = encoder.Embed("missing.png", "out.png", payload, nil)
	assert.True(errorx.Is(err, errorx.Io))

	err = encoder.Embed("in.png", "out.gif", payload, nil)
	assert.True(errorx.Is(err, errorx.InvalidInput))
	err = encoder.Embed("in.png", "out.jpg", payload, nil)
	assert.True(errorx.Is(err, errorx.InvalidInput))

	err = encoder.Embed("in.png", "out.png", payload, &nhale.EmbeddingConfig{MediaType: nhale.MediaPDF})
	assert.True(errorx.Is(err, errorx.InvalidInput))

	// The format parameter overrides detection.
	err = encoder.Embed("in.png", "out.png", payload, &nhale.EmbeddingConfig{
		Parameters: nhale.Parameters{"format": "pdf"},
	})
	assert.True(errorx.Is(err, errorx.InvalidInput))
}

func TestCapacity(t *testing.T) {
	assert := assert.New(t)
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: carriers(t)})

	n, err := encoder.Capacity("in.png", nil)
	assert.NoError(err)
	assert.Equal(64*64/8-4, n)

	n, err = encoder.Capacity("in.png", &nhale.EmbeddingConfig{
		UseEncryption: true,
		Password:      "pw",
		Parameters:    nhale.Parameters{"bit_depth": "4"},
	})
	assert.NoError(err)
	assert.Equal(64*64*4/8-4-44, n)

	// 1024 blocks carry 128 bytes, 124 after the prefix. Behind the 16 byte
	// header that is 14 shards of 7 bytes.
	n, err = encoder.Capacity("in.jpg", nil)
	assert.NoError(err)
	assert.Equal(70, n)
	n, err = encoder.Capacity("in.jpg", &nhale.EmbeddingConfig{
		Parameters: nhale.Parameters{"erasure": "none"},
	})
	assert.NoError(err)
	assert.Equal(124, n)
	n, err = encoder.Capacity("in.jpg", &nhale.EmbeddingConfig{
		Parameters: nhale.Parameters{"erasure": "parity"},
	})
	assert.NoError(err)
	// 114 body bytes are 12 blocks of 9 and one of 6.
	assert.Equal(101, n)

	n, err = encoder.Capacity("in.pdf", nil)
	assert.NoError(err)
	assert.Equal(nhale.MaxPayloadSize, n)

	_, err = encoder.Capacity("song.wav", nil)
	assert.True(errorx.Is(err, errorx.NotImplemented))
}

func TestCapacityFits(t *testing.T) {
	assert := assert.New(t)
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: carriers(t)})

	for _, cfg := range []*nhale.EmbeddingConfig{
		{},
		{UseEncryption: true, Password: "pw"},
		{UseEncryption: true, Password: "pw", Algorithm: envelope.ChaCha20},
		{UseEncryption: true, Password: "pw", Parameters: nhale.Parameters{"bit_depth": "3"}},
	} {
		n, err := encoder.Capacity("in.png", cfg)
		require.NoError(t, err)
		assert.NoError(encoder.Embed("in.png", "out.png", make([]byte, n), cfg), cfg.Parameters.String())
	}
}

func TestVerify(t *testing.T) {
	assert := assert.New(t)
	fs := carriers(t)
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: fs})

	result, err := encoder.Verify("in.png", nil)
	assert.NoError(err)
	assert.Equal(nhale.FormatPNG, result.Format)
	assert.Equal(512, result.Capacity)
	assert.False(result.AllGood)

	require.NoError(t, encoder.Embed("in.png", "out.png", []byte("12345"), nil))
	result, err = encoder.Verify("out.png", nil)
	assert.NoError(err)
	assert.True(result.HasPayload)
	assert.Equal(5, result.Length)
	assert.True(result.AllGood)
	assert.Empty(result.Problems)

	result, err = encoder.Verify("in.pdf", nil)
	assert.NoError(err)
	assert.False(result.HasPayload)
	assert.NotEmpty(result.Problems)

	require.NoError(t, encoder.Embed("in.pdf", "out.pdf", []byte("12345"), nil))
	result, err = encoder.Verify("out.pdf", nil)
	assert.NoError(err)
	assert.True(result.HasPayload)
	assert.True(result.IntegrityOK)
	assert.Equal(5, result.Length)

	_, err = encoder.Verify("song.wav", nil)
	assert.True(errorx.Is(err, errorx.NotImplemented))
}

func TestRotateKeys(t *testing.T) {
	assert := assert.New(t)
	provider := keys.NewMemory()
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: carriers(t), Keys: provider})
	payload := []byte("rotate me")
	alice := &nhale.EmbeddingConfig{UseEncryption: true, Algorithm: envelope.RSA, Identity: "alice"}
	bob := &nhale.EmbeddingConfig{UseEncryption: true, Algorithm: envelope.RSA, Identity: "bob"}

	for _, c := range []struct{ in, out, rotated string }{
		{"in.png", "out.png", "rotated.png"},
		{"in.pdf", "out.pdf", "rotated.pdf"},
	} {
		require.NoError(t, encoder.Embed(c.in, c.out, payload, alice))
		require.NoError(t, encoder.RotateKeys(c.out, c.rotated, alice, "bob"))

		out, err := encoder.Extract(c.rotated, bob)
		assert.NoError(err, c.rotated)
		assert.Equal(payload, out, c.rotated)

		_, err = encoder.Extract(c.rotated, alice)
		assert.True(errorx.Is(err, errorx.Encryption), c.rotated)
	}

	err := encoder.RotateKeys("out.png", "x.png", &nhale.EmbeddingConfig{UseEncryption: true, Password: "pw"}, "bob")
	assert.True(errorx.Is(err, errorx.InvalidInput))
	err = encoder.RotateKeys("out.png", "x.png", alice, "not a valid identity!")
	assert.True(errorx.Is(err, errorx.InvalidInput))
	err = nhale.NewEncoder(nil).RotateKeys("out.png", "x.png", alice, "bob")
	assert.True(errorx.Is(err, errorx.InvalidInput))
}

func TestBatch(t *testing.T) {
	assert := assert.New(t)
	encoder := nhale.NewEncoder(&nhale.EncoderOptions{Fs: carriers(t)})

	jobs := []nhale.Job{
		{ID: "a", Input: "in.png", Output: "a.png", Payload: []byte("first")},
		{Input: "in.bmp", Output: "b.bmp", Payload: []byte("second")},
		{ID: "c", Input: "song.wav", Output: "c.wav", Payload: []byte("third")},
		{ID: "d", Input: "in.pdf", Output: "d.pdf", Payload: []byte("fourth")},
	}
	results, err := encoder.EmbedBatch(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal("a", results[0].ID)
	assert.NotEmpty(results[1].ID)
	assert.NoError(results[0].Err)
	assert.NoError(results[1].Err)
	assert.True(errorx.Is(results[2].Err, errorx.NotImplemented))
	assert.NoError(results[3].Err)

	extract := []nhale.Job{
		{Input: "a.png", Output: "a.txt"},
		{Input: "b.bmp"},
		{Input: "d.pdf"},
	}
	results, err = encoder.ExtractBatch(context.Background(), extract, 0)
	require.NoError(t, err)
	assert.Equal([]byte("first"), results[0].Data)
	assert.Equal([]byte("second"), results[1].Data)
	assert.Equal([]byte("fourth"), results[2].Data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err = encoder.EmbedBatch(ctx, jobs, 1)
	require.NoError(t, err)
	for _, r := range results {
		assert.ErrorIs(r.Err, context.Canceled)
	}

	_, err = encoder.EmbedBatch(context.Background(), jobs, -1)
	assert.True(errorx.Is(err, errorx.InvalidInput))
}

func TestWatermark(t *testing.T) {
	assert := assert.New(t)
	encoder := nhale.NewEncoder(nil)

	assert.True(errorx.Is(encoder.EmbedWatermark("a.png", "b.png", "mark"), errorx.NotImplemented))
	_, err := encoder.VerifyWatermark("a.png", "mark")
	assert.True(errorx.Is(err, errorx.NotImplemented))
}
