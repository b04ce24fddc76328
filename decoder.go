package nhale

import (
	"image"

	"github.com/sirupsen/logrus"

	"github.com/OhanaFS/nhale/blockparity"
	"github.com/OhanaFS/nhale/envelope"
	"github.com/OhanaFS/nhale/integrity"
	"github.com/OhanaFS/nhale/lsb"
	"github.com/OhanaFS/nhale/parity"
	"github.com/OhanaFS/nhale/pdf"
	"github.com/OhanaFS/nhale/reedsolomon"
)

// Layer is the erasure code that produced a recovered frame.
type Layer int

const (
	LayerReedSolomon Layer = iota
	LayerParity
	LayerRaw
)

func (l Layer) String() string {
	switch l {
	case LayerReedSolomon:
		return "reedsolomon"
	case LayerParity:
		return "parity"
	}
	return "raw"
}

// Recovered is the outcome of decoding a frame read from a carrier.
type Recovered struct {
	// Data is the decoded frame body.
	Data []byte
	// Layer is the decoder that accepted the frame.
	Layer Layer
	// Missing and Repaired are the Reed-Solomon shard indices that were cut
	// off or rebuilt.
	Missing  []int
	Repaired []int
	// BadBlocks are the XOR parity blocks that failed their check.
	BadBlocks []int
	// ChecksumOK is false when the frame checksum did not match or no
	// decoder accepted the frame.
	ChecksumOK bool
	Warnings   []string
}

// Recover decodes a frame, trying Reed-Solomon, then XOR parity, then
// falling back to the raw bytes. It never fails: degraded results carry
// warnings instead.
func (e *Encoder) Recover(frame []byte) *Recovered {
	rsd, rsErr := reedsolomon.Decode(frame, e.log)
	if rsErr == nil {
		return &Recovered{
			Data:       rsd.Data,
			Layer:      LayerReedSolomon,
			Missing:    rsd.Missing,
			Repaired:   rsd.Repaired,
			ChecksumOK: rsd.ChecksumOK,
			Warnings:   rsd.Warnings,
		}
	}
	e.log.WithError(rsErr).Debug("Reed-Solomon decode failed, trying XOR parity")

	pd, pErr := parity.Decode(frame, e.log)
	if pErr == nil {
		return &Recovered{
			Data:       pd.Data,
			Layer:      LayerParity,
			BadBlocks:  pd.BadBlocks,
			ChecksumOK: pd.ChecksumOK,
			Warnings:   pd.Warnings,
		}
	}

	e.log.WithFields(logrus.Fields{
		"reedsolomon": rsErr.Error(),
		"parity":      pErr.Error(),
	}).Warn("no erasure decoder accepted the frame, using raw bytes")
	return &Recovered{
		Data:  frame,
		Layer: LayerRaw,
		Warnings: []string{
			"Reed-Solomon decode failed: " + rsErr.Error(),
			"XOR parity decode failed: " + pErr.Error(),
		},
	}
}

// unseal reverses seal.
func (e *Encoder) unseal(data []byte, cfg *EmbeddingConfig) ([]byte, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	useZstd, err := cfg.Parameters.Compress()
	if err != nil {
		return nil, err
	}

	if cfg.UseEncryption {
		if data, err = envelope.Decrypt(data, e.envelopeConfig(cfg)); err != nil {
			return nil, err
		}
	}
	if useZstd {
		if data, err = decompress(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// ExtractImage reads a payload hidden by EmbedImage.
func (e *Encoder) ExtractImage(img image.Image, cfg *EmbeddingConfig) ([]byte, error) {
	cfg = orDefault(cfg)
	depth, err := cfg.Parameters.BitDepth()
	if err != nil {
		return nil, err
	}
	data, err := lsb.Extract(img, depth)
	if err != nil {
		return nil, err
	}
	return e.unseal(data, cfg)
}

// blockFrame reads the frame body of a block parity carrier.
func (e *Encoder) blockFrame(p *blockparity.Plane, params Parameters) (*Recovered, error) {
	erasure, err := params.Erasure()
	if err != nil {
		return nil, err
	}
	raw, err := blockparity.Extract(p)
	if err != nil {
		return nil, err
	}
	if erasure == ErasureNone {
		return &Recovered{Data: raw, Layer: LayerRaw, ChecksumOK: true}, nil
	}
	return e.Recover(raw), nil
}

// ExtractBlocks reads a payload hidden by EmbedBlocks.
func (e *Encoder) ExtractBlocks(p *blockparity.Plane, cfg *EmbeddingConfig) ([]byte, error) {
	cfg = orDefault(cfg)
	rec, err := e.blockFrame(p, cfg.Parameters)
	if err != nil {
		return nil, err
	}
	return e.unseal(rec.Data, cfg)
}

// ExtractPDF reads a payload stored by EmbedPDF. A failed integrity check is
// an error.
func (e *Encoder) ExtractPDF(s pdf.Store, cfg *EmbeddingConfig) ([]byte, error) {
	cfg = orDefault(cfg)
	blob, err := s.GetBlob()
	if err != nil {
		return nil, err
	}
	data, err := integrity.Open(blob)
	if err != nil {
		return nil, err
	}
	return e.unseal(data, cfg)
}
