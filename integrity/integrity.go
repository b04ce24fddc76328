// Package integrity implements the HMAC-SHA256 envelope used for lossless
// carriers. A sealed blob is mac(32) || key(32) || payload.
//
// The key travels next to the MAC, so a blob detects corruption and naive
// tampering but does not authenticate its author.
package integrity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"

	"github.com/OhanaFS/nhale/errorx"
)

const (
	KeySize = 32
	MACSize = sha256.Size
)

// GenerateKey returns a fresh random HMAC key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errorx.Wrap(err, errorx.Integrity, "failed to generate key")
	}
	return key, nil
}

// Sign returns HMAC-SHA256(key, data).
func Sign(data, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errorx.New(errorx.Integrity, "invalid key length %d", len(key))
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

// Verify reports whether sum is the MAC of data under key.
func Verify(data, key, sum []byte) (bool, error) {
	expected, err := Sign(data, key)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, sum), nil
}

// Seal generates a key and returns mac || key || payload.
func Seal(payload []byte) ([]byte, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	sum, err := Sign(payload, key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, MACSize+KeySize+len(payload))
	out = append(out, sum...)
	out = append(out, key...)
	return append(out, payload...), nil
}

// Open checks a blob produced by Seal and returns its payload. Any mismatch
// is an Integrity error.
func Open(blob []byte) ([]byte, error) {
	if len(blob) < MACSize+KeySize {
		return nil, errorx.New(errorx.Integrity, "invalid data format: %d bytes", len(blob))
	}
	sum := blob[:MACSize]
	key := blob[MACSize : MACSize+KeySize]
	payload := blob[MACSize+KeySize:]

	ok, err := Verify(payload, key, sum)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorx.New(errorx.Integrity, "data integrity check failed")
	}
	return payload, nil
}
