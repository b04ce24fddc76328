package nhale

import (
	"bytes"
	"image"

	"github.com/OhanaFS/nhale/blockparity"
	"github.com/OhanaFS/nhale/envelope"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/integrity"
	"github.com/OhanaFS/nhale/keys"
	"github.com/OhanaFS/nhale/lsb"
	"github.com/OhanaFS/nhale/pdf"
)

// RotateKeys reads the RSA envelope hidden in the carrier at input, wraps
// its file key for newIdentity instead of cfg.Identity and writes the
// carrier, re-embedded, to output. The payload itself is never decrypted.
//
// The encoder must have a persistent key provider that knows both
// identities.
func (e *Encoder) RotateKeys(input, output string, cfg *EmbeddingConfig, newIdentity string) error {
	cfg = orDefault(cfg)
	if !cfg.UseEncryption || cfg.Algorithm != envelope.RSA {
		return errorx.New(errorx.InvalidInput, "key rotation requires an RSA envelope")
	}
	if e.opts.Keys == nil {
		return errorx.New(errorx.InvalidInput, "key rotation requires a key provider")
	}
	if err := keys.ValidateIdentity(newIdentity); err != nil {
		return errorx.Wrap(err, errorx.InvalidInput, "invalid new identity")
	}

	carrier, format, err := e.readCarrier(input, cfg)
	if err != nil {
		return err
	}
	rewrap := func(frame []byte) ([]byte, error) {
		return envelope.Rewrap(frame, e.opts.Keys, cfg.Identity, newIdentity)
	}

	var out []byte
	switch format {
	case FormatPNG, FormatBMP, FormatGIF:
		depth, err := cfg.Parameters.BitDepth()
		if err != nil {
			return err
		}
		img, _, err := image.Decode(bytes.NewReader(carrier))
		if err != nil {
			return errorx.Wrap(err, errorx.InvalidInput, "failed to decode %v image", format)
		}
		frame, err := lsb.Extract(img, depth)
		if err != nil {
			return err
		}
		if frame, err = rewrap(frame); err != nil {
			return err
		}
		stego, err := lsb.Embed(img, frame, depth)
		if err != nil {
			return err
		}
		if out, err = encodeImage(stego, output, cfg.Parameters); err != nil {
			return err
		}

	case FormatJPEG:
		plane, err := blockparity.DecodeJPEG(bytes.NewReader(carrier))
		if err != nil {
			return err
		}
		rec, err := e.blockFrame(plane, cfg.Parameters)
		if err != nil {
			return err
		}
		frame, err := rewrap(rec.Data)
		if err != nil {
			return err
		}
		if frame, err = e.frame(frame, cfg.Parameters); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := blockparity.EmbedJPEG(&buf, plane, frame); err != nil {
			return err
		}
		out = buf.Bytes()

	case FormatPDF:
		doc, err := pdf.Load(bytes.NewReader(carrier))
		if err != nil {
			return err
		}
		blob, err := doc.GetBlob()
		if err != nil {
			return err
		}
		frame, err := integrity.Open(blob)
		if err != nil {
			return err
		}
		if frame, err = rewrap(frame); err != nil {
			return err
		}
		if blob, err = integrity.Seal(frame); err != nil {
			return err
		}
		if err := doc.PutBlob(blob); err != nil {
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

	return e.writeFile(output, out)
}
