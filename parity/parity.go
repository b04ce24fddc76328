// Package parity implements the lightweight XOR parity frame. Every Ratio data
// bytes are followed by one byte holding their XOR. The frame detects
// corruption but cannot repair it.
package parity

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/header"
	"github.com/OhanaFS/nhale/logging"
)

// Options specifies the layout of an encoded frame.
type Options struct {
	// Ratio is the number of data bytes per parity byte.
	Ratio uint8
	// UseChecksum stores a CRC-32 of the data in the header.
	UseChecksum bool
}

// DefaultOptions returns one parity byte per 8 data bytes with a checksum.
func DefaultOptions() *Options {
	return &Options{Ratio: 8, UseChecksum: true}
}

// Decoded is the result of decoding a frame.
type Decoded struct {
	// Data is the data with its parity bytes removed.
	Data []byte
	// BadBlocks lists the blocks whose parity did not match.
	BadBlocks []int
	// ChecksumOK is true when the frame had no checksum or it matches.
	ChecksumOK bool
	// Warnings describes every mismatch found.
	Warnings []string
}

// Encode returns data framed with XOR parity.
func Encode(data []byte, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Ratio == 0 {
		return nil, errorx.Wrap(header.ErrInvalidRatio, errorx.Encoding, "failed to encode parity frame")
	}

	hdr := header.NewParityHeader(data, opts.Ratio, opts.UseChecksum)
	frame, err := hdr.MarshalBinary()
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Encoding, "failed to encode header")
	}

	ratio := int(opts.Ratio)
	out := make([]byte, 0, len(frame)+hdr.BodySize())
	out = append(out, frame...)
	for start := 0; start < len(data); start += ratio {
		end := start + ratio
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[start:end]...)
		out = append(out, xor(data[start:end]))
	}
	return out, nil
}

// Decode strips the parity bytes from frame. Parity and checksum mismatches
// are reported on the result and to log. Only a malformed header or a body
// shorter than the header declares is an error.
func Decode(frame []byte, log logrus.FieldLogger) (*Decoded, error) {
	log = logging.Or(log)

	hdr := &header.ParityHeader{}
	if err := hdr.UnmarshalBinary(frame); err != nil {
		return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to parse parity header")
	}
	body := frame[hdr.Size():]
	if len(body) < hdr.BodySize() {
		return nil, errorx.New(errorx.InvalidInput,
			"parity frame too short: need %d bytes, have %d", hdr.BodySize(), len(body))
	}

	res := &Decoded{
		Data:       make([]byte, 0, hdr.OriginalLength),
		ChecksumOK: true,
	}
	warn := func(fields logrus.Fields, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		res.Warnings = append(res.Warnings, msg)
		log.WithFields(fields).Warn(msg)
	}

	ratio := int(hdr.Ratio)
	remaining := int(hdr.OriginalLength)
	for block, off := 0, 0; remaining > 0; block++ {
		n := ratio
		if remaining < n {
			n = remaining
		}
		chunk := body[off : off+n]
		if xor(chunk) != body[off+n] {
			res.BadBlocks = append(res.BadBlocks, block)
		}
		res.Data = append(res.Data, chunk...)
		off += n + 1
		remaining -= n
	}

	if len(res.BadBlocks) > 0 {
		warn(logrus.Fields{"blocks": res.BadBlocks},
			"parity mismatch in %d blocks", len(res.BadBlocks))
	}
	if hdr.HasChecksum() {
		if actual := header.Checksum(res.Data); actual != hdr.Checksum {
			res.ChecksumOK = false
			warn(logrus.Fields{"expected": hdr.Checksum, "actual": actual},
				"checksum mismatch")
		}
	}
	return res, nil
}

func xor(b []byte) byte {
	var p byte
	for _, c := range b {
		p ^= c
	}
	return p
}
