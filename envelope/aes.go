package envelope

import (
	"crypto/aes"

	"github.com/OhanaFS/nhale/errorx"
)

const aesBlockSize = aes.BlockSize

// encryptAES pads data to whole blocks and encrypts each block on its own
// with the 256-bit key. The IV is written into the frame but does not take
// part in the cipher.
func encryptAES(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to create AES cipher")
	}
	iv, err := random(IVSize)
	if err != nil {
		return nil, err
	}

	padded := pad(data)
	for i := 0; i < len(padded); i += aesBlockSize {
		block.Encrypt(padded[i:i+aesBlockSize], padded[i:i+aesBlockSize])
	}

	out := make([]byte, 0, IVSize+len(padded))
	out = append(out, iv...)
	return append(out, padded...), nil
}

func decryptAES(body, key []byte) ([]byte, error) {
	if len(body) < IVSize {
		return nil, errorx.New(errorx.Encryption, "AES frame too short")
	}
	ct := body[IVSize:]
	if len(ct) == 0 || len(ct)%aesBlockSize != 0 {
		return nil, errorx.New(errorx.Encryption,
			"AES ciphertext length %d is not a multiple of %d", len(ct), aesBlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encryption, "failed to create AES cipher")
	}
	out := make([]byte, len(ct))
	for i := 0; i < len(ct); i += aesBlockSize {
		block.Decrypt(out[i:i+aesBlockSize], ct[i:i+aesBlockSize])
	}
	return unpad(out)
}

// pad appends PKCS#7 padding. A full block is added when data is already
// aligned.
func pad(data []byte) []byte {
	n := aesBlockSize - len(data)%aesBlockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n < 1 || n > aesBlockSize || n > len(data) {
		return nil, errorx.New(errorx.Encryption, "invalid padding")
	}
	return data[:len(data)-n], nil
}
