package envelope

import (
	"golang.org/x/crypto/chacha20"

	"github.com/OhanaFS/nhale/errorx"
)

func encryptChaCha(data, key []byte) ([]byte, error) {
	nonce, err := random(chacha20.NonceSize)
	if err != nil {
		return nil, err
	}
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to create ChaCha20 cipher")
	}

	out := make([]byte, chacha20.NonceSize+len(data))
	copy(out, nonce)
	c.XORKeyStream(out[chacha20.NonceSize:], data)
	return out, nil
}

func decryptChaCha(body, key []byte) ([]byte, error) {
	if len(body) < chacha20.NonceSize {
		return nil, errorx.New(errorx.Encryption, "ChaCha20 frame too short")
	}
	c, err := chacha20.NewUnauthenticatedCipher(key, body[:chacha20.NonceSize])
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to create ChaCha20 cipher")
	}

	out := make([]byte, len(body)-chacha20.NonceSize)
	c.XORKeyStream(out, body[chacha20.NonceSize:])
	return out, nil
}
