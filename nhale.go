// Nhale hides data inside ordinary media files. A payload is optionally
// compressed and encrypted, framed for the carrier, and embedded:
//
//   - PNG, BMP and GIF images carry it in the low bits of their pixels.
//   - JPEG images carry it Reed-Solomon protected, one bit per 8x8 block.
//   - PDF documents carry it in an HMAC checked stream object.
//
// Audio and video carriers are recognised but not implemented.
package nhale

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/keys"
	"github.com/OhanaFS/nhale/logging"
	"github.com/OhanaFS/nhale/parity"
	"github.com/OhanaFS/nhale/reedsolomon"
)

// MaxPayloadSize is the largest payload accepted, 100 MiB.
const MaxPayloadSize = 100 * 1024 * 1024

// MediaType is the broad class of a carrier.
type MediaType int

const (
	// MediaUnknown lets the carrier format decide.
	MediaUnknown MediaType = iota
	MediaImage
	MediaAudio
	MediaVideo
	MediaPDF
)

func (m MediaType) String() string {
	switch m {
	case MediaImage:
		return "image"
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	case MediaPDF:
		return "pdf"
	}
	return "unknown"
}

// ValidatePayload checks the payload size bounds.
func ValidatePayload(data []byte) error {
	if len(data) == 0 {
		return errorx.New(errorx.InvalidData, "data cannot be empty")
	}
	if len(data) > MaxPayloadSize {
		return errorx.New(errorx.InvalidData,
			"data size %d exceeds maximum allowed size of %d MiB",
			len(data), MaxPayloadSize/(1024*1024))
	}
	return nil
}

// EncoderOptions specifies options for the Encoder.
type EncoderOptions struct {
	// Logger receives warnings about degraded extractions. Nil discards them.
	Logger logrus.FieldLogger
	// Keys provides RSA keypairs. Nil generates a throwaway keypair per call.
	Keys keys.Provider
	// Fs is used by the file level operations. Nil means the OS filesystem.
	Fs afero.Fs
	// ReedSolomon is the frame layout for lossy carriers. Nil means
	// reedsolomon.DefaultOptions().
	ReedSolomon *reedsolomon.Options
	// Parity is the XOR parity layout used when the "erasure" parameter is
	// "parity". Nil means parity.DefaultOptions().
	Parity *parity.Options
}

// Encoder embeds payloads into carriers and extracts them again. It holds no
// per-call state and is safe for concurrent use.
type Encoder struct {
	opts *EncoderOptions
	log  logrus.FieldLogger
	fs   afero.Fs
}

func NewEncoder(opts *EncoderOptions) *Encoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	o := *opts
	if o.ReedSolomon == nil {
		o.ReedSolomon = reedsolomon.DefaultOptions()
	}
	if o.Parity == nil {
		o.Parity = parity.DefaultOptions()
	}
	fs := o.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Encoder{
		opts: &o,
		log:  logging.Or(o.Logger),
		fs:   fs,
	}
}
