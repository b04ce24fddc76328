package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/keys"
)

func encryptRSA(data []byte, cfg *Config) ([]byte, error) {
	pub, _, err := cfg.provider().LoadOrGenerate(cfg.Identity)
	if err != nil {
		return nil, errorx.Ensure(err, errorx.Encryption, "failed to load RSA key")
	}

	fileKey, err := random(KeySize)
	if err != nil {
		return nil, err
	}
	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, fileKey)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to encrypt key")
	}
	body, err := encryptAES(data, fileKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 4, 4+len(wrapped)+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(wrapped)))
	out = append(out, wrapped...)
	return append(out, body...), nil
}

// splitRSA separates the wrapped key from the AES frame.
func splitRSA(body []byte) (wrapped, rest []byte, err error) {
	if len(body) < 4 {
		return nil, nil, errorx.New(errorx.Encryption, "RSA frame too short")
	}
	size := binary.BigEndian.Uint32(body[:4])
	if uint64(len(body)-4) < uint64(size) {
		return nil, nil, errorx.New(errorx.Encryption, "RSA key size %d exceeds frame", size)
	}
	return body[4 : 4+size], body[4+size:], nil
}

func decryptRSA(body []byte, cfg *Config) ([]byte, error) {
	wrapped, rest, err := splitRSA(body)
	if err != nil {
		return nil, err
	}
	_, priv, err := cfg.provider().Load(cfg.Identity)
	if err != nil {
		return nil, errorx.Ensure(err, errorx.Encryption, "failed to load RSA key")
	}
	fileKey, err := rsa.DecryptPKCS1v15(rand.Reader, priv, wrapped)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to decrypt key")
	}
	return decryptAES(rest, fileKey)
}

// Rewrap moves an RSA frame from one identity to another. The wrapped key is
// decrypted with the private key of from and encrypted with the public key of
// to; the salt and the AES frame are kept as they are.
func Rewrap(frame []byte, p keys.Provider, from, to string) ([]byte, error) {
	if len(frame) < SaltSize {
		return nil, errorx.New(errorx.Encryption, "encrypted frame too short: %d bytes", len(frame))
	}
	wrapped, rest, err := splitRSA(frame[SaltSize:])
	if err != nil {
		return nil, err
	}

	_, priv, err := p.Load(from)
	if err != nil {
		return nil, errorx.Ensure(err, errorx.Encryption, "failed to load RSA key for %q", from)
	}
	fileKey, err := rsa.DecryptPKCS1v15(rand.Reader, priv, wrapped)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to decrypt key")
	}

	pub, _, err := p.LoadOrGenerate(to)
	if err != nil {
		return nil, errorx.Ensure(err, errorx.Encryption, "failed to load RSA key for %q", to)
	}
	rewrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, fileKey)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to encrypt key")
	}

	out := make([]byte, SaltSize+4, SaltSize+4+len(rewrapped)+len(rest))
	copy(out, frame[:SaltSize])
	binary.BigEndian.PutUint32(out[SaltSize:], uint32(len(rewrapped)))
	out = append(out, rewrapped...)
	return append(out, rest...), nil
}
