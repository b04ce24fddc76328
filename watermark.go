package nhale

import (
	"github.com/OhanaFS/nhale/errorx"
)

// EmbedWatermark would add a visible or invisible watermark to the carrier
// at input.
func (e *Encoder) EmbedWatermark(input, output, text string) error {
	return errorx.New(errorx.NotImplemented, "watermarking not yet implemented")
}

// VerifyWatermark would check the carrier at input for a watermark.
func (e *Encoder) VerifyWatermark(input, text string) (bool, error) {
	return false, errorx.New(errorx.NotImplemented, "watermark verification not yet implemented")
}
