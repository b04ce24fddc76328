package nhale

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/bmp"

	"github.com/OhanaFS/nhale/blockparity"
	"github.com/OhanaFS/nhale/envelope"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/integrity"
	"github.com/OhanaFS/nhale/lsb"
	"github.com/OhanaFS/nhale/parity"
	"github.com/OhanaFS/nhale/pdf"
	"github.com/OhanaFS/nhale/reedsolomon"
)

// seal validates the payload and applies the compression and encryption
// stages configured in cfg. The result is what a carrier codec stores.
func (e *Encoder) seal(payload []byte, cfg *EmbeddingConfig) ([]byte, error) {
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	data := payload
	useZstd, err := cfg.Parameters.Compress()
	if err != nil {
		return nil, err
	}
	if useZstd {
		level, err := cfg.Parameters.Compression()
		if err != nil {
			return nil, err
		}
		if data, err = compress(data, level); err != nil {
			return nil, err
		}
	}

	if cfg.UseEncryption {
		if data, err = envelope.Encrypt(data, e.envelopeConfig(cfg)); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// frame applies the erasure code selected by the "erasure" parameter.
func (e *Encoder) frame(data []byte, params Parameters) ([]byte, error) {
	erasure, err := params.Erasure()
	if err != nil {
		return nil, err
	}
	switch erasure {
	case ErasureParity:
		return parity.Encode(data, e.opts.Parity)
	case ErasureNone:
		return data, nil
	}
	return reedsolomon.Encode(data, e.opts.ReedSolomon)
}

// EmbedImage hides payload in the low bits of img and returns the carrier.
// img is not modified.
func (e *Encoder) EmbedImage(img image.Image, payload []byte, cfg *EmbeddingConfig) (*image.NRGBA, error) {
	cfg = orDefault(cfg)
	depth, err := cfg.Parameters.BitDepth()
	if err != nil {
		return nil, err
	}
	data, err := e.seal(payload, cfg)
	if err != nil {
		return nil, err
	}
	return lsb.Embed(img, data, depth)
}

// EmbedBlocks hides payload in the block parity of p. The payload is framed
// with an erasure code first so it survives JPEG recompression.
func (e *Encoder) EmbedBlocks(p *blockparity.Plane, payload []byte, cfg *EmbeddingConfig) (*blockparity.Plane, error) {
	framed, err := e.blockStream(payload, orDefault(cfg))
	if err != nil {
		return nil, err
	}
	return blockparity.Embed(p, framed)
}

// blockStream seals payload and frames it for a block parity carrier.
func (e *Encoder) blockStream(payload []byte, cfg *EmbeddingConfig) ([]byte, error) {
	data, err := e.seal(payload, cfg)
	if err != nil {
		return nil, err
	}
	return e.frame(data, cfg.Parameters)
}

// EmbedPDF stores payload in s behind an HMAC integrity envelope.
func (e *Encoder) EmbedPDF(s pdf.Store, payload []byte, cfg *EmbeddingConfig) error {
	cfg = orDefault(cfg)
	data, err := e.seal(payload, cfg)
	if err != nil {
		return err
	}
	blob, err := integrity.Seal(data)
	if err != nil {
		return err
	}
	return s.PutBlob(blob)
}

// Embed reads the carrier at input, hides payload in it and writes the
// result to output. The carrier codec is chosen from the input format.
func (e *Encoder) Embed(input, output string, payload []byte, cfg *EmbeddingConfig) error {
	cfg = orDefault(cfg)
	carrier, format, err := e.readCarrier(input, cfg)
	if err != nil {
		return err
	}
	log := e.log.WithField("input", input).WithField("format", format.String())

	var out []byte
	switch format {
	case FormatPNG, FormatBMP, FormatGIF:
		img, _, err := image.Decode(bytes.NewReader(carrier))
		if err != nil {
			return errorx.Wrap(err, errorx.InvalidInput, "failed to decode %v image", format)
		}
		stego, err := e.EmbedImage(img, payload, cfg)
		if err != nil {
			return err
		}
		if out, err = encodeImage(stego, output, cfg.Parameters); err != nil {
			return err
		}

	case FormatJPEG:
		if f := FormatFromPath(output); f != FormatUnknown && f != FormatJPEG {
			return errorx.New(errorx.InvalidInput, "a JPEG carrier can only be written as JPEG, not %v", f)
		}
		plane, err := blockparity.DecodeJPEG(bytes.NewReader(carrier))
		if err != nil {
			return err
		}
		framed, err := e.blockStream(payload, cfg)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := blockparity.EmbedJPEG(&buf, plane, framed); err != nil {
			return err
		}
		out = buf.Bytes()

	case FormatPDF:
		doc, err := pdf.Load(bytes.NewReader(carrier))
		if err != nil {
			return err
		}
		if err := e.EmbedPDF(doc, payload, cfg); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := doc.Write(&buf); err != nil {
			return err
		}
		out = buf.Bytes()

	default:
		return unsupported(format)
	}

	if err := e.writeFile(output, out); err != nil {
		return err
	}
	log.WithField("output", output).WithField("payload_size", len(payload)).
		Debug("payload embedded")
	return nil
}

// encodeImage writes an LSB carrier in the format implied by path. Unknown
// extensions get PNG. Lossy and palette formats would destroy the low bits
// and are refused.
func encodeImage(img image.Image, path string, params Parameters) ([]byte, error) {
	var buf bytes.Buffer
	switch f := FormatFromPath(path); f {
	case FormatBMP:
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, errorx.Wrap(err, errorx.Io, "failed to encode BMP image")
		}
	case FormatPNG, FormatUnknown:
		level, err := params.Compression()
		if err != nil {
			return nil, err
		}
		enc := &png.Encoder{CompressionLevel: pngLevel(level)}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, errorx.Wrap(err, errorx.Io, "failed to encode PNG image")
		}
	default:
		return nil, errorx.New(errorx.InvalidInput,
			"cannot write a pixel carrier as %v, use png or bmp", f)
	}
	return buf.Bytes(), nil
}

func orDefault(cfg *EmbeddingConfig) *EmbeddingConfig {
	if cfg == nil {
		return &EmbeddingConfig{}
	}
	return cfg
}
