// Package lsb hides data in the low bits of the colour channels of an image.
//
// The embedded stream is a 4 byte big-endian length followed by the data,
// read most significant bit first in slices of depth bits. Slice s replaces
// the low depth bits of channel s%3 (red, green, blue) of pixel s/3, with
// pixels numbered row by row. Alpha is never touched.
//
// Every slice gets a channel of its own. Carriers written by tools that
// derive the pixel from the byte index and the channel from the bit index
// place several bits in the same channel and cannot be read by this package,
// nor can they read its carriers.
package lsb

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/draw"

	"github.com/icza/bitio"

	"github.com/OhanaFS/nhale/errorx"
)

const (
	MinDepth = 1
	MaxDepth = 4

	// PrefixSize is the size of the length prefix.
	PrefixSize = 4
)

// Capacity returns the number of stream bytes an image of w by h pixels can
// carry at the given depth, length prefix included.
func Capacity(w, h, depth int) int {
	return w * h * depth / 8
}

// ValidateDepth checks that depth is between MinDepth and MaxDepth.
func ValidateDepth(depth int) error {
	if depth < MinDepth || depth > MaxDepth {
		return errorx.New(errorx.InvalidInput,
			"bit depth %d out of range [%d, %d]", depth, MinDepth, MaxDepth)
	}
	return nil
}

// NRGBA returns a copy of img as an NRGBA image with its origin at (0, 0).
func NRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Embed returns a copy of img carrying data. img is not modified.
func Embed(img image.Image, data []byte, depth int) (*image.NRGBA, error) {
	if err := ValidateDepth(depth); err != nil {
		return nil, err
	}
	b := img.Bounds()
	capacity := Capacity(b.Dx(), b.Dy(), depth)
	if len(data)+PrefixSize > capacity {
		return nil, errorx.New(errorx.InvalidInput,
			"data too large: %d bytes plus %d byte prefix exceeds capacity of %d bytes",
			len(data), PrefixSize, capacity)
	}

	out := NRGBA(img)

	// One trailing zero byte completes the last slice.
	stream := make([]byte, PrefixSize, PrefixSize+len(data)+1)
	binary.BigEndian.PutUint32(stream, uint32(len(data)))
	stream = append(stream, data...)
	slices := ((len(stream))*8 + depth - 1) / depth
	stream = append(stream, 0)

	r := bitio.NewReader(bytes.NewReader(stream))
	mask := byte(1<<depth) - 1
	for s := 0; s < slices; s++ {
		v, err := r.ReadBits(uint8(depth))
		if err != nil {
			return nil, errorx.Wrap(err, errorx.Encoding, "failed to read bit stream")
		}
		i := offset(out, s)
		out.Pix[i] = out.Pix[i]&^mask | byte(v)
	}
	return out, nil
}

// Extract reads data embedded by Embed with the same depth.
func Extract(img image.Image, depth int) ([]byte, error) {
	if err := ValidateDepth(depth); err != nil {
		return nil, err
	}
	src, ok := img.(*image.NRGBA)
	if !ok || src.Rect.Min != (image.Point{}) {
		src = NRGBA(img)
	}
	capacity := Capacity(src.Rect.Dx(), src.Rect.Dy(), depth)
	if capacity < PrefixSize {
		return nil, errorx.New(errorx.InvalidData,
			"image too small to hold a length prefix at depth %d", depth)
	}

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	mask := byte(1<<depth) - 1
	slice := 0
	readSlices := func(n int) error {
		for ; slice < n; slice++ {
			v := src.Pix[offset(src, slice)] & mask
			if err := w.WriteBits(uint64(v), uint8(depth)); err != nil {
				return errorx.Wrap(err, errorx.Encoding, "failed to write bit stream")
			}
		}
		return nil
	}

	if err := readSlices((PrefixSize*8 + depth - 1) / depth); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(buf.Bytes()[:PrefixSize])
	if length == 0 {
		return nil, errorx.New(errorx.InvalidData, "no embedded data")
	}
	if uint64(length) > uint64(capacity-PrefixSize) {
		return nil, errorx.New(errorx.InvalidData,
			"declared length %d exceeds capacity of %d bytes", length, capacity-PrefixSize)
	}

	total := PrefixSize + int(length)
	if err := readSlices((total*8 + depth - 1) / depth); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to flush bit stream")
	}
	return buf.Bytes()[PrefixSize:total], nil
}

// offset returns the index in img.Pix of the channel that holds slice s.
func offset(img *image.NRGBA, s int) int {
	p := s / 3
	w := img.Rect.Dx()
	return img.PixOffset(p%w, p/w) + s%3
}
