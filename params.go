package nhale

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/OhanaFS/nhale/envelope"
	"github.com/OhanaFS/nhale/errorx"
)

// Recognised parameter keys. Any other key is carried along untouched.
const (
	ParamBitDepth    = "bit_depth"
	ParamCompression = "compression"
	ParamCompress    = "compress"
	ParamErasure     = "erasure"
	ParamFormat      = "format"
)

const (
	DefaultBitDepth    = 1
	DefaultCompression = 6
)

// Erasure codes selectable for block parity carriers.
const (
	ErasureReedSolomon = "reedsolomon"
	ErasureParity      = "parity"
	ErasureNone        = "none"
)

// Parameters are free-form key=value settings of an embedding.
type Parameters map[string]string

// ParseParameter splits a "key=value" string.
func ParseParameter(s string) (string, string, error) {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return "", "", errorx.New(errorx.InvalidInput, "invalid KEY=value: no `=` found in %q", s)
	}
	return s[:i], s[i+1:], nil
}

// Merge copies other into p. Later values win.
func (p Parameters) Merge(other Parameters) Parameters {
	if p == nil {
		p = Parameters{}
	}
	for k, v := range other {
		p[k] = v
	}
	return p
}

func (p Parameters) intValue(key string, def, min, max int) (int, error) {
	s, ok := p[key]
	if !ok || s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errorx.New(errorx.InvalidInput, "%s must be an integer, got %q", key, s)
	}
	if v < min || v > max {
		return 0, errorx.New(errorx.InvalidInput, "%s must be between %d and %d, got %d", key, min, max, v)
	}
	return v, nil
}

// BitDepth returns the LSB depth, 1 to 4, default 1.
func (p Parameters) BitDepth() (int, error) {
	return p.intValue(ParamBitDepth, DefaultBitDepth, 1, 4)
}

// Compression returns the compression level, 0 to 9, default 6.
func (p Parameters) Compression() (int, error) {
	return p.intValue(ParamCompression, DefaultCompression, 0, 9)
}

// Compress reports whether payloads are zstd compressed before encryption.
func (p Parameters) Compress() (bool, error) {
	switch strings.ToLower(p[ParamCompress]) {
	case "", "none", "false", "0":
		return false, nil
	case "zstd", "true", "1":
		return true, nil
	}
	return false, errorx.New(errorx.InvalidInput, "unknown compression %q", p[ParamCompress])
}

// Erasure returns the erasure code for block parity carriers.
func (p Parameters) Erasure() (string, error) {
	switch e := strings.ToLower(p[ParamErasure]); e {
	case "":
		return ErasureReedSolomon, nil
	case ErasureReedSolomon, ErasureParity, ErasureNone:
		return e, nil
	}
	return "", errorx.New(errorx.InvalidInput, "unknown erasure code %q", p[ParamErasure])
}

func (p Parameters) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, p[k])
	}
	return strings.Join(parts, ",")
}

// EmbeddingConfig describes one embed or extract call.
type EmbeddingConfig struct {
	// MediaType must match the carrier when set.
	MediaType MediaType
	// UseEncryption wraps the payload in an envelope.
	UseEncryption bool
	// Password derives the envelope key for AES-256 and ChaCha20.
	Password string
	// Algorithm selects the envelope cipher.
	Algorithm envelope.Algorithm
	// Identity names the RSA keypair when Algorithm is RSA.
	Identity string
	// Parameters holds bit_depth, compression and pass-through settings.
	Parameters Parameters
}

func (c *EmbeddingConfig) validate() error {
	if !c.UseEncryption {
		return nil
	}
	if c.Algorithm != envelope.RSA && c.Password == "" {
		return errorx.New(errorx.InvalidInput, "a password is required for %v", c.Algorithm)
	}
	return nil
}

func (e *Encoder) envelopeConfig(c *EmbeddingConfig) *envelope.Config {
	return &envelope.Config{
		Algorithm: c.Algorithm,
		Password:  c.Password,
		Identity:  c.Identity,
		Keys:      e.opts.Keys,
	}
}
