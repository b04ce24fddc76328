package util

import (
	"io"
	"math/rand"
)

// RandomReader is an io.Reader that returns Size pseudo-random bytes. Readers
// with the same seed return the same bytes. Not for security purposes.
type RandomReader struct {
	// Size is the number of bytes left.
	Size int64
	rng  *rand.Rand
}

var _ io.Reader = &RandomReader{}

func NewRandomReader(size, seed int64) *RandomReader {
	return &RandomReader{Size: size, rng: rand.New(rand.NewSource(seed))}
}

// Read implements io.Reader
func (r *RandomReader) Read(p []byte) (n int, err error) {
	if r.Size <= 0 {
		return 0, io.EOF
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(0))
	}
	n = len(p)
	if r.Size < int64(n) {
		n = int(r.Size)
	}
	r.Size -= int64(n)
	return r.rng.Read(p[:n])
}

// RandomBytes returns n bytes from a RandomReader seeded with seed.
func RandomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	_, _ = io.ReadFull(NewRandomReader(int64(n), seed), b)
	return b
}
