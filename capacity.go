package nhale

import (
	"bytes"
	"image"

	"github.com/OhanaFS/nhale/blockparity"
	"github.com/OhanaFS/nhale/envelope"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/header"
	"github.com/OhanaFS/nhale/keys"
	"github.com/OhanaFS/nhale/lsb"
)

// aesPadding is the most PKCS#7 padding a frame can add.
const aesPadding = 16

// Capacity returns the largest payload, before compression and encryption,
// the carrier at input can hold. PDF carriers are unbounded and report
// MaxPayloadSize.
func (e *Encoder) Capacity(input string, cfg *EmbeddingConfig) (int, error) {
	cfg = orDefault(cfg)
	carrier, format, err := e.readCarrier(input, cfg)
	if err != nil {
		return 0, err
	}

	var n int
	switch format {
	case FormatPNG, FormatBMP, FormatGIF, FormatJPEG:
		c, _, err := image.DecodeConfig(bytes.NewReader(carrier))
		if err != nil {
			return 0, errorx.Wrap(err, errorx.InvalidInput, "failed to decode %v header", format)
		}
		if format == FormatJPEG {
			n = blockparity.Capacity(c.Width, c.Height) - blockparity.PrefixSize
			n, err = e.frameCapacity(n, cfg.Parameters)
			if err != nil {
				return 0, err
			}
		} else {
			depth, err := cfg.Parameters.BitDepth()
			if err != nil {
				return 0, err
			}
			n = lsbCapacity(c.Width, c.Height, depth)
		}
	case FormatPDF:
		return MaxPayloadSize, nil
	default:
		return 0, unsupported(format)
	}

	if cfg.UseEncryption {
		n -= envelopeOverhead(cfg)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

func lsbCapacity(w, h, depth int) int {
	return lsb.Capacity(w, h, depth) - lsb.PrefixSize
}

// frameCapacity returns the largest body that fits in n bytes once framed
// with the erasure code selected by params.
func (e *Encoder) frameCapacity(n int, params Parameters) (int, error) {
	erasure, err := params.Erasure()
	if err != nil {
		return 0, err
	}

	switch erasure {
	case ErasureNone:
		return n, nil
	case ErasureParity:
		hdr := &header.ParityHeader{Ratio: e.opts.Parity.Ratio}
		if e.opts.Parity.UseChecksum {
			hdr.Flags = header.FlagChecksum
		}
		body := n - hdr.Size()
		if body <= 0 {
			return 0, nil
		}
		block := int(e.opts.Parity.Ratio) + 1
		size := body / block * int(e.opts.Parity.Ratio)
		if rem := body % block; rem > 1 {
			size += rem - 1
		}
		return size, nil
	}

	rs := e.opts.ReedSolomon
	hdr := &header.RSHeader{DataShards: rs.DataShards, ParityShards: rs.ParityShards}
	if rs.UseChecksum {
		hdr.Flags = header.FlagChecksum
	}
	body := n - hdr.Size()
	if body <= 0 || hdr.TotalShards() == 0 {
		return 0, nil
	}
	return body / hdr.TotalShards() * int(rs.DataShards), nil
}

// envelopeOverhead is the most bytes encryption adds to a payload.
func envelopeOverhead(cfg *EmbeddingConfig) int {
	switch cfg.Algorithm {
	case envelope.ChaCha20:
		return envelope.SaltSize + envelope.IVSize
	case envelope.RSA:
		return envelope.SaltSize + 4 + keys.KeySize/8 + envelope.IVSize + aesPadding
	}
	return envelope.SaltSize + envelope.IVSize + aesPadding
}
