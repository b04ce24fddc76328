package nhale

import (
	"bytes"
	"image"

	"github.com/OhanaFS/nhale/blockparity"
	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/integrity"
	"github.com/OhanaFS/nhale/lsb"
	"github.com/OhanaFS/nhale/pdf"
)

type VerificationResult struct {
	// Format is the carrier format.
	Format Format
	// Capacity is the number of bytes the carrier can hold, length prefix
	// included. Zero for PDF carriers.
	Capacity int
	// HasPayload specifies whether a plausible payload was found.
	HasPayload bool
	// Length is the size of the stored frame as declared by the carrier.
	Length int
	// Frame describes the erasure decode of a block parity carrier.
	Frame *Recovered
	// IntegrityOK specifies whether the HMAC of a PDF carrier matched.
	IntegrityOK bool
	// AllGood specifies whether a payload was found and no problem was
	// detected reading it.
	AllGood bool
	// Problems lists everything that went wrong.
	Problems []string
}

func (r *VerificationResult) problem(err error) {
	r.Problems = append(r.Problems, err.Error())
}

// Verify inspects the carrier at input without decrypting the payload. Only
// unreadable or unsupported carriers are errors; problems with the hidden
// payload are reported on the result.
func (e *Encoder) Verify(input string, cfg *EmbeddingConfig) (*VerificationResult, error) {
	cfg = orDefault(cfg)
	carrier, format, err := e.readCarrier(input, cfg)
	if err != nil {
		return nil, err
	}
	result := &VerificationResult{Format: format, Problems: []string{}}

	switch format {
	case FormatPNG, FormatBMP, FormatGIF:
		depth, err := cfg.Parameters.BitDepth()
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(carrier))
		if err != nil {
			return nil, errorx.Wrap(err, errorx.InvalidInput, "failed to decode %v image", format)
		}
		b := img.Bounds()
		result.Capacity = lsb.Capacity(b.Dx(), b.Dy(), depth)
		data, err := lsb.Extract(img, depth)
		if err != nil {
			result.problem(err)
			break
		}
		result.HasPayload = true
		result.Length = len(data)
		result.AllGood = true

	case FormatJPEG:
		plane, err := blockparity.DecodeJPEG(bytes.NewReader(carrier))
		if err != nil {
			return nil, err
		}
		result.Capacity = blockparity.Capacity(plane.Width, plane.Height)
		rec, err := e.blockFrame(plane, cfg.Parameters)
		if err != nil {
			result.problem(err)
			break
		}
		result.HasPayload = true
		result.Length = len(rec.Data)
		result.Frame = rec
		result.Problems = append(result.Problems, rec.Warnings...)
		result.AllGood = rec.Layer != LayerRaw && rec.ChecksumOK && len(rec.Warnings) == 0

	case FormatPDF:
		doc, err := pdf.Load(bytes.NewReader(carrier))
		if err != nil {
			return nil, err
		}
		blob, err := doc.GetBlob()
		if err != nil {
			result.problem(err)
			break
		}
		result.HasPayload = true
		data, err := integrity.Open(blob)
		if err != nil {
			result.Length = len(blob)
			result.problem(err)
			break
		}
		result.Length = len(data)
		result.IntegrityOK = true
		result.AllGood = true

	default:
		return nil, unsupported(format)
	}

	return result, nil
}
