// Package envelope implements the password-based encryption frames wrapped
// around payloads before they are hidden in a carrier.
//
// Frames are self-describing given the algorithm and password:
//
//	AES-256:  salt(16) || iv(12) || ciphertext
//	ChaCha20: salt(16) || nonce(12) || ciphertext
//	RSA:      salt(16) || key_size(4, big endian) || rsa_key || iv(12) || ciphertext
//
// The key for the symmetric algorithms is derived from the password and salt
// with DeriveKey. The RSA frame encrypts its payload with a random AES key
// that is itself encrypted with the RSA public key of an identity obtained
// from a keys.Provider.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/keys"
)

const (
	SaltSize = 16
	IVSize   = 12
	KeySize  = 32
)

// Algorithm selects the cipher of a frame.
type Algorithm int

const (
	AES256 Algorithm = iota
	ChaCha20
	RSA
)

func (a Algorithm) String() string {
	switch a {
	case AES256:
		return "aes256"
	case ChaCha20:
		return "chacha20"
	case RSA:
		return "rsa"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm parses an algorithm name as printed by Algorithm.String.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "")) {
	case "aes256", "aes":
		return AES256, nil
	case "chacha20", "chacha":
		return ChaCha20, nil
	case "rsa":
		return RSA, nil
	}
	return 0, errorx.New(errorx.InvalidInput, "unknown encryption algorithm %q", s)
}

// Config holds the parameters of an encryption or decryption call.
type Config struct {
	Algorithm Algorithm
	Password  string
	// Identity names the RSA keypair. Only used by RSA.
	Identity string
	// Keys provides the RSA keypair. A nil provider generates a new keypair
	// for every call, which means RSA frames cannot be decrypted.
	Keys keys.Provider
}

func (c *Config) provider() keys.Provider {
	if c.Keys == nil {
		return keys.Ephemeral{}
	}
	return c.Keys
}

// DeriveKey derives n bytes of key material from password and salt.
// The first 32 bytes are SHA256(password || salt); further bytes come from
// hashing that digest again.
func DeriveKey(password string, salt []byte, n int) []byte {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write(salt)
	digest := h.Sum(nil)

	out := make([]byte, 0, n)
	out = append(out, digest...)
	if n > len(out) {
		second := sha256.Sum256(digest)
		out = append(out, second[:]...)
	}
	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}

func random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to read random bytes")
	}
	return b, nil
}

// Encrypt returns data encrypted into a frame for cfg.Algorithm. A fresh
// salt and IV are drawn for every call.
func Encrypt(data []byte, cfg *Config) ([]byte, error) {
	salt, err := random(SaltSize)
	if err != nil {
		return nil, err
	}
	key := DeriveKey(cfg.Password, salt, KeySize)

	out := make([]byte, 0, SaltSize+IVSize+len(data)+aesBlockSize)
	out = append(out, salt...)

	var body []byte
	switch cfg.Algorithm {
	case AES256:
		body, err = encryptAES(data, key)
	case ChaCha20:
		body, err = encryptChaCha(data, key)
	case RSA:
		body, err = encryptRSA(data, cfg)
	default:
		return nil, errorx.New(errorx.InvalidInput, "unknown encryption algorithm %v", cfg.Algorithm)
	}
	if err != nil {
		return nil, err
	}
	return append(out, body...), nil
}

// Decrypt reverses Encrypt.
func Decrypt(frame []byte, cfg *Config) ([]byte, error) {
	if len(frame) < SaltSize+IVSize {
		return nil, errorx.New(errorx.Encryption, "encrypted frame too short: %d bytes", len(frame))
	}
	salt := frame[:SaltSize]
	key := DeriveKey(cfg.Password, salt, KeySize)
	body := frame[SaltSize:]

	switch cfg.Algorithm {
	case AES256:
		return decryptAES(body, key)
	case ChaCha20:
		return decryptChaCha(body, key)
	case RSA:
		return decryptRSA(body, cfg)
	}
	return nil, errorx.New(errorx.InvalidInput, "unknown encryption algorithm %v", cfg.Algorithm)
}
