// Package blockparity hides one bit in every 8x8 block of an image as the
// parity of the block's mean blue sample. Spreading each bit over a whole
// block lets it survive mild recompression, which makes this the codec used
// for JPEG carriers.
//
// The embedded stream is a 4 byte big-endian length followed by the data,
// one bit per block, blocks in row-major order, most significant bit first.
package blockparity

import (
	"bytes"
	"encoding/binary"

	"github.com/icza/bitio"

	"github.com/OhanaFS/nhale/errorx"
)

const (
	// BlockSize is the edge length of a block in pixels.
	BlockSize = 8
	// PrefixSize is the size of the length prefix.
	PrefixSize = 4

	// blue is the channel index carrying the bits.
	blue = 2
	// maxNudge is the largest per-sample adjustment tried to flip a block.
	maxNudge = 3
)

// Plane is an interleaved 8-bit sample buffer: RGB24 when Channels is 3,
// CMYK32 when Channels is 4.
type Plane struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height, channels int) *Plane {
	return &Plane{
		Pix:      make([]byte, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// Clone returns a deep copy of p.
func (p *Plane) Clone() *Plane {
	c := *p
	c.Pix = append([]byte(nil), p.Pix...)
	return &c
}

// Validate checks the pixel format and buffer size.
func (p *Plane) Validate() error {
	if p.Channels != 3 && p.Channels != 4 {
		return errorx.New(errorx.InvalidInput,
			"unsupported pixel format with %d channels, only RGB24 and CMYK32 are supported",
			p.Channels)
	}
	if p.Width <= 0 || p.Height <= 0 || len(p.Pix) < p.Width*p.Height*p.Channels {
		return errorx.New(errorx.InvalidInput,
			"plane buffer of %d bytes does not hold %dx%d pixels", len(p.Pix), p.Width, p.Height)
	}
	return nil
}

// Capacity returns the number of stream bytes a w by h image can carry,
// length prefix included.
func Capacity(w, h int) int {
	return (w / BlockSize) * (h / BlockSize) / 8
}

// Embed returns a copy of p carrying data.
func Embed(p *Plane, data []byte) (*Plane, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	capacity := Capacity(p.Width, p.Height)
	if len(data)+PrefixSize > capacity {
		return nil, errorx.New(errorx.InvalidInput,
			"data too large: %d bytes plus %d byte prefix exceeds capacity of %d bytes",
			len(data), PrefixSize, capacity)
	}

	bits, err := streamBits(data)
	if err != nil {
		return nil, err
	}

	out := p.Clone()
	blocksX := p.Width / BlockSize
	for n, bit := range bits {
		bx, by := n%blocksX, n/blocksX
		if !out.setParity(bx, by, bit) {
			return nil, errorx.New(errorx.Encoding,
				"unable to set parity of block (%d, %d)", bx, by)
		}
	}
	return out, nil
}

// Extract reads data embedded by Embed.
func Extract(p *Plane) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	capacity := Capacity(p.Width, p.Height)
	if capacity < PrefixSize {
		return nil, errorx.New(errorx.InvalidData, "image too small to hold a length prefix")
	}

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	blocksX := p.Width / BlockSize
	read := func(from, to int) error {
		for n := from; n < to; n++ {
			if err := w.WriteBool(p.mean(n%blocksX, n/blocksX)%2 == 1); err != nil {
				return errorx.Wrap(err, errorx.Encoding, "failed to write bit stream")
			}
		}
		return nil
	}

	if err := read(0, PrefixSize*8); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(buf.Bytes()[:PrefixSize])
	if length == 0 {
		return nil, errorx.New(errorx.InvalidData, "no embedded data")
	}
	if uint64(length)+PrefixSize > uint64(capacity) {
		return nil, errorx.New(errorx.InvalidData,
			"declared length %d exceeds capacity of %d bytes", length, capacity-PrefixSize)
	}

	total := PrefixSize + int(length)
	if err := read(PrefixSize*8, total*8); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to flush bit stream")
	}
	return buf.Bytes()[PrefixSize:total], nil
}

// streamBits returns the length prefix and data as one bit per block,
// most significant bit first.
func streamBits(data []byte) ([]bool, error) {
	stream := make([]byte, PrefixSize, PrefixSize+len(data))
	binary.BigEndian.PutUint32(stream, uint32(len(data)))
	stream = append(stream, data...)

	bits := make([]bool, len(stream)*8)
	r := bitio.NewReader(bytes.NewReader(stream))
	for n := range bits {
		bit, err := r.ReadBool()
		if err != nil {
			return nil, errorx.Wrap(err, errorx.Encoding, "failed to read bit stream")
		}
		bits[n] = bit
	}
	return bits, nil
}

// mean returns the integer mean of the blue samples in block (bx, by).
func (p *Plane) mean(bx, by int) int {
	sum, count := 0, 0
	p.each(bx, by, func(i int) {
		sum += int(p.Pix[i])
		count++
	})
	return sum / count
}

func (p *Plane) each(bx, by int, fn func(i int)) {
	for y := by * BlockSize; y < (by+1)*BlockSize && y < p.Height; y++ {
		for x := bx * BlockSize; x < (bx+1)*BlockSize && x < p.Width; x++ {
			fn((y*p.Width+x)*p.Channels + blue)
		}
	}
}

// setParity makes the mean of block (bx, by) odd when bit is set and even
// otherwise. Every blue sample of the block is moved by the same amount,
// trying +1 first when the mean is even and -1 first when it is odd, then
// the other direction, then larger steps if clamping got in the way.
func (p *Plane) setParity(bx, by int, bit bool) bool {
	target := 0
	if bit {
		target = 1
	}
	m := p.mean(bx, by)
	if m%2 == target {
		return true
	}

	var orig []byte
	p.each(bx, by, func(i int) { orig = append(orig, p.Pix[i]) })
	apply := func(delta int) {
		j := 0
		p.each(bx, by, func(i int) {
			p.Pix[i] = clamp(int(orig[j]) + delta)
			j++
		})
	}

	dir := 1
	if m%2 == 1 {
		dir = -1
	}
	for step := 1; step <= maxNudge; step += 2 {
		for _, delta := range []int{dir * step, -dir * step} {
			apply(delta)
			if p.mean(bx, by)%2 == target {
				return true
			}
		}
	}
	apply(0)
	return false
}

// shift sets the blue samples of block (bx, by) to those of orig moved by
// delta, clamped to [0, 255].
func (p *Plane) shift(orig *Plane, bx, by, delta int) {
	p.each(bx, by, func(i int) { p.Pix[i] = clamp(int(orig.Pix[i]) + delta) })
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
