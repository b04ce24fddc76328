package blockparity

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math/rand"

	"github.com/OhanaFS/nhale/errorx"
)

// Quality is the JPEG quality used when writing carriers.
const Quality = 95

const (
	// unitSize is the edge length of a 4:2:0 minimum coded unit. The encoder
	// transforms and quantizes every unit independently of the others.
	unitSize = 16
	// maxSettleNudge bounds the per-sample shift tried while settling.
	maxSettleNudge = 8
	// maxSettleRounds bounds the encode and decode passes per unit.
	maxSettleRounds = 512
)

// FromImage converts a decoded image to a plane. CMYK images become CMYK32
// planes and colour images RGB24 planes. Grayscale and other formats are
// rejected.
func FromImage(img image.Image) (*Plane, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.CMYK:
		p := NewPlane(w, h, 4)
		for y := 0; y < h; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(p.Pix[y*w*4:(y+1)*w*4], row[:w*4])
		}
		return p, nil
	case *image.YCbCr, *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		p := NewPlane(w, h, 3)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				p.Pix[i], p.Pix[i+1], p.Pix[i+2] = c.R, c.G, c.B
				i += 3
			}
		}
		return p, nil
	}
	return nil, errorx.New(errorx.InvalidInput,
		"unsupported pixel format %T, only RGB24 and CMYK32 are supported", img)
}

// RGB returns a copy of p with three channels. CMYK planes are converted.
func (p *Plane) RGB() (*Plane, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Channels == 3 {
		return p.Clone(), nil
	}
	out := NewPlane(p.Width, p.Height, 3)
	for i, j := 0, 0; i < p.Width*p.Height*4; i, j = i+4, j+3 {
		out.Pix[j], out.Pix[j+1], out.Pix[j+2] =
			color.CMYKToRGB(p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3])
	}
	return out, nil
}

// Image returns p as an image.Image sharing no memory with p.
func (p *Plane) Image() (image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r := image.Rect(0, 0, p.Width, p.Height)
	if p.Channels == 4 {
		img := image.NewCMYK(r)
		copy(img.Pix, p.Pix)
		return img, nil
	}
	img := image.NewRGBA(r)
	for i, j := 0, 0; i < p.Width*p.Height*3; i, j = i+3, j+4 {
		img.Pix[j] = p.Pix[i]
		img.Pix[j+1] = p.Pix[i+1]
		img.Pix[j+2] = p.Pix[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img, nil
}

// DecodeJPEG reads a JPEG into a plane.
func DecodeJPEG(r io.Reader) (*Plane, error) {
	img, err := jpeg.Decode(r)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to decode JPEG image")
	}
	return FromImage(img)
}

// EncodeJPEG writes p as a JPEG at Quality.
func EncodeJPEG(w io.Writer, p *Plane) error {
	img, err := p.Image()
	if err != nil {
		return err
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: Quality}); err != nil {
		return errorx.Wrap(err, errorx.Io, "failed to encode JPEG image")
	}
	return nil
}

// EmbedJPEG hides data in p and writes the carrier to w as a JPEG at
// Quality. p is not modified.
//
// Chroma subsampling and quantization move block means by about a sample,
// so the parity set by Embed does not survive encoding on its own. Every
// coded unit holding stream bits is therefore encoded and decoded by itself,
// and its blocks are shifted until they decode with the wanted parity. The
// whole image is decoded once more at the end and must give back data.
func EmbedJPEG(w io.Writer, p *Plane, data []byte) error {
	src, err := p.RGB()
	if err != nil {
		return err
	}
	out, err := Embed(src, data)
	if err != nil {
		return err
	}
	bits, err := streamBits(data)
	if err != nil {
		return err
	}

	var order []image.Point
	units := make(map[image.Point][]target)
	blocksX := src.Width / BlockSize
	for n, bit := range bits {
		bx, by := n%blocksX, n/blocksX
		u := image.Pt(bx*BlockSize/unitSize, by*BlockSize/unitSize)
		if _, ok := units[u]; !ok {
			order = append(order, u)
		}
		units[u] = append(units[u], target{bx: bx, by: by, bit: bit})
	}
	for _, u := range order {
		if err := out.settle(src, u, units[u]); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, out); err != nil {
		return err
	}
	decoded, err := DecodeJPEG(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}
	if got, err := Extract(decoded); err != nil || !bytes.Equal(got, data) {
		return errorx.New(errorx.Encoding, "embedded data did not survive JPEG encoding")
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return errorx.Wrap(err, errorx.Io, "failed to write JPEG image")
	}
	return nil
}

// target is a block and the bit it must decode to.
type target struct {
	bx, by int
	bit    bool
}

// nudges lists the block shifts tried while settling, smallest first.
var nudges = func() []int {
	n := []int{0}
	for d := 1; d <= maxSettleNudge; d++ {
		n = append(n, d, -d)
	}
	return n
}()

// settle shifts the blocks of coded unit u away from orig until each of
// targets decodes to its bit. Failing blocks first walk through nudges in
// order, then draw them at random, because moving one block also moves the
// chroma of the other blocks in the unit.
func (p *Plane) settle(orig *Plane, u image.Point, targets []target) error {
	r := image.Rect(u.X*unitSize, u.Y*unitSize, (u.X+1)*unitSize, (u.Y+1)*unitSize).
		Intersect(image.Rect(0, 0, p.Width, p.Height))
	rng := rand.New(rand.NewSource(int64(u.Y)<<32 | int64(u.X)))
	next := make([]int, len(targets))

	for round := 0; round < maxSettleRounds; round++ {
		tile, err := p.encodeTile(r)
		if err != nil {
			return err
		}
		settled := true
		for i, t := range targets {
			lx, ly := t.bx-r.Min.X/BlockSize, t.by-r.Min.Y/BlockSize
			if (tile.mean(lx, ly)%2 == 1) == t.bit {
				continue
			}
			settled = false
			n := next[i]
			if n >= len(nudges) {
				n = rng.Intn(len(nudges))
			}
			next[i]++
			p.shift(orig, t.bx, t.by, nudges[n])
		}
		if settled {
			return nil
		}
	}
	return errorx.New(errorx.Encoding,
		"unable to settle blocks of coded unit (%d, %d)", u.X, u.Y)
}

// encodeTile returns rectangle r of p as it reads back after a JPEG round
// trip.
func (p *Plane) encodeTile(r image.Rectangle) (*Plane, error) {
	tile := NewPlane(r.Dx(), r.Dy(), p.Channels)
	row := r.Dx() * p.Channels
	for y := 0; y < r.Dy(); y++ {
		start := ((r.Min.Y+y)*p.Width + r.Min.X) * p.Channels
		copy(tile.Pix[y*row:(y+1)*row], p.Pix[start:start+row])
	}

	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, tile); err != nil {
		return nil, err
	}
	return DecodeJPEG(&buf)
}
