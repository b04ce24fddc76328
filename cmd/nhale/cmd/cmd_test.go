package cmd

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/keys"
)

func writeCarrier(t *testing.T, path string) {
	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for i := 0; i < 48*48; i++ {
		img.Set(i%48, i/48, color.NRGBA{R: uint8(i), G: uint8(i >> 3), B: 7, A: 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// reset clears flag values left behind by earlier runs of rootCmd.
func reset() {
	embedData, embedMessage = "", ""
	embedOpts = embedFlags{}
	extractOpts = embedFlags{}
	keygenList = false
	watermarkInput, watermarkOutput, watermarkText = "", "", ""
	pf := rootCmd.PersistentFlags()
	pf.Set("keys-backend", "ephemeral")
	pf.Set("keys-path", "")
}

func TestEmbedExtractCommands(t *testing.T) {
	assert := assert.New(t)
	reset()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	result := filepath.Join(dir, "payload.txt")
	payload := filepath.Join(dir, "secret.txt")
	writeCarrier(t, in)
	require.NoError(t, os.WriteFile(payload, []byte("from a file"), 0o644))

	rootCmd.SetArgs([]string{"embed", "-i", in, "-o", out, "-d", payload,
		"--password", "pw", "--algorithm", "chacha20", "--bit-depth", "2", "-p", "compress=zstd"})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"extract", "-i", out, "-o", result,
		"--password", "pw", "--algorithm", "chacha20", "--bit-depth", "2", "-p", "compress=zstd"})
	require.NoError(t, rootCmd.Execute())
	data, err := os.ReadFile(result)
	require.NoError(t, err)
	assert.Equal("from a file", string(data))

	rootCmd.SetArgs([]string{"verify", "--bit-depth", "2", out})
	assert.NoError(rootCmd.Execute())
}

func TestEmbedCommandErrors(t *testing.T) {
	assert := assert.New(t)
	reset()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeCarrier(t, in)

	rootCmd.SetArgs([]string{"embed", "-i", in, "-o", filepath.Join(dir, "out.png")})
	err := rootCmd.Execute()
	assert.True(errorx.Is(err, errorx.InvalidInput))

	rootCmd.SetArgs([]string{"embed", "-i", in, "-o", filepath.Join(dir, "out.png"),
		"-m", "x", "-p", "broken"})
	err = rootCmd.Execute()
	assert.True(errorx.Is(err, errorx.InvalidInput))

	rootCmd.SetArgs([]string{"keygen", "alice"})
	err = rootCmd.Execute()
	assert.True(errorx.Is(err, errorx.InvalidInput))
}

func TestKeygenCommand(t *testing.T) {
	assert := assert.New(t)
	reset()
	defer reset()
	dir := filepath.Join(t.TempDir(), "keys")

	rootCmd.SetArgs([]string{"keygen", "--keys-backend", "dir", "--keys-path", dir, "alice", "bob"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(filepath.Join(dir, "alice.pem"))
	assert.FileExists(filepath.Join(dir, "bob.pem"))

	rootCmd.SetArgs([]string{"keygen", "--keys-backend", "dir", "--keys-path", dir, "--list"})
	assert.NoError(rootCmd.Execute())
	assert.Implements((*keys.Lister)(nil), provider)

	keygenList = false
	rootCmd.SetArgs([]string{"keygen", "--keys-backend", "dir", "--keys-path", dir})
	err := rootCmd.Execute()
	assert.True(errorx.Is(err, errorx.InvalidInput))
}

func TestWatermarkAndDetectCommands(t *testing.T) {
	assert := assert.New(t)
	reset()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	writeCarrier(t, in)

	rootCmd.SetArgs([]string{"watermark", "-i", in, "-o", out, "-t", "mark"})
	err := rootCmd.Execute()
	assert.True(errorx.Is(err, errorx.NotImplemented))

	rootCmd.SetArgs([]string{"verify-watermark", "-i", in, "-t", "mark"})
	err = rootCmd.Execute()
	assert.True(errorx.Is(err, errorx.NotImplemented))

	rootCmd.SetArgs([]string{"embed", "-i", in, "-o", out, "-m", "hello"})
	require.NoError(t, rootCmd.Execute())
	rootCmd.SetArgs([]string{"detect", out})
	assert.NoError(rootCmd.Execute())
}
